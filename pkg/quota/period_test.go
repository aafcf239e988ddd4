package quota

import (
	"testing"
	"time"
)

func TestPeriodBounds(t *testing.T) {
	tests := []struct {
		name       string
		periodType string
		at         time.Time
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name:       "daily mid-afternoon",
			periodType: PeriodDaily,
			at:         time.Date(2026, 3, 15, 14, 30, 12, 0, time.UTC),
			wantStart:  time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "daily exactly at midnight",
			periodType: PeriodDaily,
			at:         time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			wantStart:  time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "monthly mid-month",
			periodType: PeriodMonthly,
			at:         time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC),
			wantStart:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "monthly december rolls into next year",
			periodType: PeriodMonthly,
			at:         time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
			wantStart:  time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "non-utc input normalized to utc boundaries",
			periodType: PeriodDaily,
			at:         time.Date(2026, 3, 15, 1, 0, 0, 0, time.FixedZone("east", 3*3600)),
			wantStart:  time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			wantEnd:    time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := PeriodBounds(tt.periodType, tt.at)
			if err != nil {
				t.Fatalf("PeriodBounds: %v", err)
			}
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

func TestPeriodBounds_UnknownType(t *testing.T) {
	if _, _, err := PeriodBounds("weekly", time.Now()); err == nil {
		t.Fatal("expected error for unknown period type")
	}
}

// Two instants in the same UTC day or month must land on identical
// boundaries, so repeated tracking accumulates into one record.
func TestPeriodBounds_Deterministic(t *testing.T) {
	morning := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)

	s1, e1, _ := PeriodBounds(PeriodDaily, morning)
	s2, e2, _ := PeriodBounds(PeriodDaily, evening)
	if !s1.Equal(s2) || !e1.Equal(e2) {
		t.Errorf("daily bounds differ within one day: [%v, %v) vs [%v, %v)", s1, e1, s2, e2)
	}

	s1, e1, _ = PeriodBounds(PeriodMonthly, morning)
	s2, e2, _ = PeriodBounds(PeriodMonthly, evening.AddDate(0, 0, 10))
	if !s1.Equal(s2) || !e1.Equal(e2) {
		t.Errorf("monthly bounds differ within one month: [%v, %v) vs [%v, %v)", s1, e1, s2, e2)
	}
}
