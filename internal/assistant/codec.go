package assistant

import (
	"strconv"
	"strings"
	"time"
)

// numericTypeNames are driver column types whose []byte representation
// carries a number, not text. MySQL hands DECIMAL columns back as bytes.
var numericTypeNames = map[string]bool{
	"DECIMAL": true,
	"NUMERIC": true,
	"FLOAT":   true,
	"DOUBLE":  true,
}

// EncodeValue maps one scanned column value to a JSON-safe value:
// nil passes through, timestamps become ISO-8601 strings, decimals
// become float64 (precision loss accepted), raw bytes become best-effort
// UTF-8 text, everything else passes through unchanged.
func EncodeValue(dbTypeName string, v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		if numericTypeNames[strings.ToUpper(dbTypeName)] {
			if f, err := strconv.ParseFloat(string(val), 64); err == nil {
				return f
			}
		}
		return strings.ToValidUTF8(string(val), "")
	default:
		return v
	}
}
