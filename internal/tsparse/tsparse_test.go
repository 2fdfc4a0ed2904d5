package tsparse

import (
	"testing"
	"time"
)

func TestNumberToTimeSeconds(t *testing.T) {
	got := NumberToTime(1700000000)
	want := time.Unix(1700000000, 0).UTC()
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNumberToTimeMillis(t *testing.T) {
	got := NumberToTime(1700000000123)
	want := time.UnixMilli(1700000000123).UTC()
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseTimeSpecNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := ParseTimeSpec("now", now)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(now) {
		t.Errorf("expected %v, got %v", now, got)
	}
}

func TestParseTimeSpecRelative(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := ParseTimeSpec("1h-ago", now)
	if err != nil {
		t.Fatal(err)
	}
	want := now.Add(-time.Hour)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseTimeSpecISO8601(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := ParseTimeSpec("2025-06-15T10:00:00Z", now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseTimeSpecInvalid(t *testing.T) {
	if _, err := ParseTimeSpec("not-a-time", time.Now()); err == nil {
		t.Errorf("expected error for unrecognized spec")
	}
}
