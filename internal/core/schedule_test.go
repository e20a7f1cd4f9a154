package core

import (
	"testing"
	"time"
)

func TestNextPaymentDate(t *testing.T) {
	tests := []struct {
		name   string
		day    Whole
		now    time.Time
		want   time.Time
		wantOK bool
	}{
		{
			name:   "later this month",
			day:    WholeOf(20),
			now:    time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "due today",
			day:    WholeOf(15),
			now:    time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC),
			want:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "already passed rolls to next month",
			day:    WholeOf(5),
			now:    time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "day 31 clamped in leap february",
			day:    WholeOf(31),
			now:    time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "day 31 in a long month",
			day:    WholeOf(31),
			now:    time.Date(2023, 3, 31, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "passed day clamped in next short month",
			day:    WholeOf(30),
			now:    time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "december rolls into january",
			day:    WholeOf(1),
			now:    time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "out of range day clamps to month end",
			day:    WholeOf(45),
			now:    time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name: "absent day",
			day:  Whole{},
			now:  time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "zero day",
			day:  WholeOf(0),
			now:  time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextPaymentDate(tt.day, tt.now)
			if ok != tt.wantOK {
				t.Fatalf("NextPaymentDate() ok = %v, want %v", ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextPaymentDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2024, 1, 30, 18, 0, 0, 0, time.UTC)
	if got := DaysUntil(WholeOf(30), now); got != 0 {
		t.Errorf("DaysUntil(today) = %d", got)
	}
	if got := DaysUntil(WholeOf(31), now); got != 1 {
		t.Errorf("DaysUntil(tomorrow) = %d", got)
	}
	if got := DaysUntil(WholeOf(1), now); got != 2 {
		t.Errorf("DaysUntil(next month) = %d", got)
	}
	if got := DaysUntil(Whole{}, now); got != -1 {
		t.Errorf("DaysUntil(absent) = %d", got)
	}
}
