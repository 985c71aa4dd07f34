package formatter

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	tab := NewTable(&buf, Column{Header: "ID"}, Column{Header: "STATUS"})
	tab.Row("feat-1", "pending")
	tab.Row("feat-long-name", "in_progress")
	if err := tab.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + separator + 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "--") {
		t.Errorf("separator line = %q", lines[1])
	}
	// tabwriter pads so STATUS starts at the same offset in every line.
	off := strings.Index(lines[0], "STATUS")
	if idx := strings.Index(lines[2], "pending"); idx != off {
		t.Errorf("row 1 status at %d, header at %d:\n%s", idx, off, buf.String())
	}
}

func TestTableClipsWideCells(t *testing.T) {
	var buf bytes.Buffer
	tab := NewTable(&buf, Column{Header: "ERR", MaxWidth: 10})
	tab.Row("this error message is far too long")
	if err := tab.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !strings.Contains(buf.String(), "this er...") {
		t.Errorf("expected clipped cell, got:\n%s", buf.String())
	}
}

func TestTableMissingAndExtraCells(t *testing.T) {
	var buf bytes.Buffer
	tab := NewTable(&buf, Column{Header: "A"}, Column{Header: "B"})
	tab.Row("only-a")
	tab.Row("a", "b", "dropped")
	if err := tab.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("extra cell leaked into output:\n%s", buf.String())
	}
	if tab.Rows() != 2 {
		t.Errorf("Rows() = %d, want 2", tab.Rows())
	}
}

func TestAge(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{-5 * time.Second, "0s"},
		{45 * time.Second, "45s"},
		{3*time.Minute + 12*time.Second, "3m12s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
		{28 * time.Hour, "1d4h"},
	}
	for _, tc := range cases {
		if got := Age(tc.d); got != tc.want {
			t.Errorf("Age(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
