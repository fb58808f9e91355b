package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

const analyzeInstruction = "Now analyze this data and provide the requested report. " +
	"DO NOT request more data; this information is sufficient."

// RenderFeedback builds the user turn fed back to the model after a
// successful query. At most limit rows are rendered, but the reported
// total is always the true row count.
func RenderFeedback(cols []string, rows []RowData, limit int) string {
	total := len(rows)
	if total == 0 {
		return "The query returned no results (0 rows).\n\n" + analyzeInstruction
	}

	sample := rows
	if limit > 0 && total > limit {
		sample = rows[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Data retrieved (%d rows in total):\n", total)
	b.WriteString(marshalRows(cols, sample))
	if limit > 0 && total > limit {
		fmt.Fprintf(&b, "\n\n(Showing only the first %d of %d rows)", limit, total)
	}
	b.WriteString("\n\n")
	b.WriteString(analyzeInstruction)
	return b.String()
}

// marshalRows renders rows as indented JSON preserving column order,
// which encoding/json would lose on plain maps.
func marshalRows(cols []string, rows []RowData) string {
	var b strings.Builder
	b.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  {")
		for j, col := range cols {
			if j > 0 {
				b.WriteString(",")
			}
			name, _ := json.Marshal(col)
			val, err := json.Marshal(row[col])
			if err != nil {
				val = []byte("null")
			}
			fmt.Fprintf(&b, "\n    %s: %s", name, val)
		}
		b.WriteString("\n  }")
	}
	b.WriteString("\n]")
	return b.String()
}
