package date

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSON(t *testing.T) {
	d := New(2026, time.March, 9)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2026-03-09"` {
		t.Fatalf("marshal = %s", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip = %v, want %v", back, d)
	}

	var empty Date
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !empty.IsZero() {
		t.Fatalf("empty string should decode to zero date")
	}
}

func TestDateSetRejectsGarbage(t *testing.T) {
	var d Date
	if err := d.Set("tomorrow"); err == nil {
		t.Fatalf("expected error for non-date input")
	}
	if err := d.Set("2026-01-31"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if d.String() != "2026-01-31" {
		t.Fatalf("String = %q", d.String())
	}
}

func TestDaysFrom(t *testing.T) {
	now := time.Date(2026, time.May, 10, 17, 30, 0, 0, time.UTC)
	tests := []struct {
		due  Date
		want int
	}{
		{New(2026, time.May, 10), 0},
		{New(2026, time.May, 12), 2},
		{New(2026, time.May, 7), -3},
	}
	for _, tt := range tests {
		if got := tt.due.DaysFrom(now); got != tt.want {
			t.Errorf("DaysFrom(%s) = %d, want %d", tt.due, got, tt.want)
		}
	}
}
