package assistant

import (
	"testing"
	"time"
)

func TestEncodeValue(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	cases := []struct {
		name   string
		dbType string
		in     any
		want   any
	}{
		{"nil passthrough", "VARCHAR", nil, nil},
		{"timestamp to iso8601", "DATETIME", ts, "2025-03-14T09:26:53Z"},
		{"decimal bytes to float", "DECIMAL", []byte("1234.50"), 1234.5},
		{"numeric bytes to float", "NUMERIC", []byte("-7.25"), -7.25},
		{"text bytes to string", "VARCHAR", []byte("hello"), "hello"},
		{"non-numeric decimal falls back to text", "DECIMAL", []byte("n/a"), "n/a"},
		{"int passthrough", "BIGINT", int64(42), int64(42)},
		{"float passthrough", "DOUBLE", 3.5, 3.5},
		{"string passthrough", "TEXT", "plain", "plain"},
		{"bool passthrough", "BOOLEAN", true, true},
	}
	for _, tc := range cases {
		got := EncodeValue(tc.dbType, tc.in)
		if got != tc.want {
			t.Fatalf("%s: EncodeValue(%q, %v) = %v (%T), want %v (%T)",
				tc.name, tc.dbType, tc.in, got, got, tc.want, tc.want)
		}
	}
}

func TestEncodeValue_InvalidUTF8Bytes(t *testing.T) {
	got := EncodeValue("BLOB", []byte{'o', 'k', 0xff, 0xfe})
	s, ok := got.(string)
	if !ok {
		t.Fatalf("expected string, got %T", got)
	}
	if s == "" || s[:2] != "ok" {
		t.Fatalf("expected best-effort decode starting with ok, got %q", s)
	}
}
