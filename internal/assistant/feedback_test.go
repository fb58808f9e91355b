package assistant

import (
	"fmt"
	"strings"
	"testing"
)

func TestRenderFeedback_ZeroRows(t *testing.T) {
	out := RenderFeedback([]string{"id"}, nil, 20)
	if !strings.Contains(out, "0 rows") {
		t.Fatalf("zero-row feedback should state the count: %q", out)
	}
	if !strings.Contains(out, "DO NOT request more data") {
		t.Fatalf("feedback should carry the analyze instruction: %q", out)
	}
}

func TestRenderFeedback_RendersColumnsInOrder(t *testing.T) {
	rows := []RowData{
		{"id": int64(1), "name": "Ada", "balance": 10.5},
	}
	out := RenderFeedback([]string{"id", "name", "balance"}, rows, 20)

	want := "Data retrieved (1 rows in total):\n" +
		"[\n" +
		"  {\n" +
		"    \"id\": 1,\n" +
		"    \"name\": \"Ada\",\n" +
		"    \"balance\": 10.5\n" +
		"  }\n" +
		"]\n\n" +
		"Now analyze this data and provide the requested report. " +
		"DO NOT request more data; this information is sufficient."
	if out != want {
		t.Fatalf("unexpected feedback:\n%s\nwant:\n%s", out, want)
	}
}

func TestRenderFeedback_TruncatesButReportsTrueTotal(t *testing.T) {
	rows := make([]RowData, 35)
	for i := range rows {
		rows[i] = RowData{"n": int64(i)}
	}
	out := RenderFeedback([]string{"n"}, rows, 20)

	if !strings.Contains(out, "(35 rows in total)") {
		t.Fatalf("true total missing: %q", out)
	}
	if !strings.Contains(out, "Showing only the first 20 of 35 rows") {
		t.Fatalf("truncation note missing: %q", out)
	}
	if strings.Contains(out, `"n": 20`) {
		t.Fatalf("rows beyond the cap should not be rendered: %q", out)
	}
	if !strings.Contains(out, `"n": 19`) {
		t.Fatalf("last row inside the cap should be rendered: %q", out)
	}
}

func TestRenderFeedback_NoTruncationNoteUnderLimit(t *testing.T) {
	rows := []RowData{{"n": int64(0)}, {"n": int64(1)}}
	out := RenderFeedback([]string{"n"}, rows, 20)
	if strings.Contains(out, "Showing only") {
		t.Fatalf("no truncation note expected: %q", out)
	}
	for i := 0; i < 2; i++ {
		if !strings.Contains(out, fmt.Sprintf(`"n": %d`, i)) {
			t.Fatalf("row %d missing: %q", i, out)
		}
	}
}
