package assistant

import (
	"fmt"
	"strings"
)

// PolicyError reports why a query was rejected before touching the
// database.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// deniedKeywords blocks mutating and administrative statements. The
// check is a plain substring match on the upper-cased query: conservative
// on purpose, and only a guard against a careless model, not a hostile
// one.
var deniedKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "ALTER", "CREATE",
	"INSERT", "UPDATE", "GRANT", "REVOKE", "EXEC",
}

// ValidateQuery applies the read-only policy: no denied keyword anywhere
// in the query, and the trimmed query must start with SELECT.
func ValidateQuery(query string) error {
	upper := strings.ToUpper(query)

	for _, kw := range deniedKeywords {
		if strings.Contains(upper, kw) {
			return &PolicyError{Reason: fmt.Sprintf("operation not allowed: %s", kw)}
		}
	}

	if !strings.HasPrefix(strings.TrimSpace(upper), "SELECT") {
		return &PolicyError{Reason: "only SELECT queries are allowed"}
	}
	return nil
}
