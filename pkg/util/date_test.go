package util

import (
	"testing"
	"time"
)

func TestLoadLocationDefault(t *testing.T) {
	if got := LoadLocationDefault("Not/AZone"); got != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", got)
	}
	if got := LoadLocationDefault(""); got != time.UTC {
		t.Fatalf("expected UTC for empty name, got %v", got)
	}
}

func TestReportStamp(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)
	date, clock := ReportStamp(ts, time.UTC)
	if date != "2025-03-14 (Friday)" {
		t.Fatalf("unexpected date %q", date)
	}
	if clock != "09:05 UTC" {
		t.Fatalf("unexpected clock %q", clock)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := SplitAndTrim(" a, ,b ,c,", ",")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected split %v", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := Truncate("طلا gold", 3); got != "طلا" {
		t.Fatalf("unexpected truncate %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("unexpected truncate %q", got)
	}
}

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("9090", 1); got != 9090 {
		t.Fatalf("unexpected int %d", got)
	}
	if got := ParseIntDefault("x", 7); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
}
