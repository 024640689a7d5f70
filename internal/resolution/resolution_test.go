package resolution

import (
	"errors"
	"testing"
	"time"
)

func TestResolve_KnownLabels(t *testing.T) {
	cases := []struct {
		label    string
		points   int
		interval time.Duration
	}{
		{"1h", 60, time.Minute},
		{"6h", 72, 5 * time.Minute},
		{"12h", 72, 10 * time.Minute},
		{"24h", 96, 15 * time.Minute},
		{"7d", 84, 2 * time.Hour},
		{"30d", 90, 8 * time.Hour},
	}

	for _, tc := range cases {
		spec, err := Resolve(tc.label)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", tc.label, err)
		}
		if spec.PointCount != tc.points {
			t.Errorf("Resolve(%q): expected %d points, got %d", tc.label, tc.points, spec.PointCount)
		}
		if spec.Interval != tc.interval {
			t.Errorf("Resolve(%q): expected interval %v, got %v", tc.label, tc.interval, spec.Interval)
		}
		if spec.IntervalMS != tc.interval.Milliseconds() {
			t.Errorf("Resolve(%q): interval_ms %d does not match interval %v", tc.label, spec.IntervalMS, tc.interval)
		}
	}
}

func TestResolve_OneHourMillis(t *testing.T) {
	spec, err := Resolve("1h")
	if err != nil {
		t.Fatal(err)
	}
	if spec.PointCount != 60 || spec.IntervalMS != 60000 {
		t.Errorf("expected {60, 60000}, got {%d, %d}", spec.PointCount, spec.IntervalMS)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	for _, label := range Labels() {
		first, err := Resolve(label)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", label, err)
		}
		for i := 0; i < 10; i++ {
			again, err := Resolve(label)
			if err != nil {
				t.Fatalf("Resolve(%q) call %d: %v", label, i, err)
			}
			if again != first {
				t.Errorf("Resolve(%q) not deterministic: %+v vs %+v", label, first, again)
			}
		}
	}
}

func TestResolve_InvalidLabels(t *testing.T) {
	for _, label := range []string{"", "2h", "1H", "1 h", "90m", "forever"} {
		_, err := Resolve(label)
		if !errors.Is(err, ErrInvalidRangeLabel) {
			t.Errorf("Resolve(%q): expected ErrInvalidRangeLabel, got %v", label, err)
		}
		if Valid(label) {
			t.Errorf("Valid(%q): expected false", label)
		}
	}
}

func TestLabels_CopyIsIsolated(t *testing.T) {
	labels := Labels()
	labels[0] = "tampered"
	if Labels()[0] != "1h" {
		t.Error("Labels() should return a copy, not the internal slice")
	}
}
