package freshness

import (
	"testing"
	"time"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func kickoffIn(hours float64) time.Time {
	return now.Add(time.Duration(hours * float64(time.Hour)))
}

func TestComputePriority_LiveAlwaysCritical(t *testing.T) {
	for _, hours := range []float64{-5, -0.5, 0, 1.5, 10, 100} {
		if got := ComputePriority(StatusLive, kickoffIn(hours), now); got != PriorityCritical {
			t.Errorf("live kickoff %+.1fh: priority = %s, want critical", hours, got)
		}
	}
}

func TestComputeExpiry_Live(t *testing.T) {
	got := ComputeExpiry(StatusLive, kickoffIn(0), now)
	if want := now.Add(2 * time.Minute); !got.Equal(want) {
		t.Errorf("live expiry = %v, want %v", got, want)
	}
}

func TestScheduledBuckets(t *testing.T) {
	tests := []struct {
		hours    float64
		ttl      time.Duration
		priority Priority
	}{
		{1.5, 5 * time.Minute, PriorityHigh},
		{10, 30 * time.Minute, PriorityMedium},
		{100, 60 * time.Minute, PriorityLow},
		{23.9, 30 * time.Minute, PriorityMedium},
		{24, 60 * time.Minute, PriorityLow},
	}
	for _, tt := range tests {
		kickoff := kickoffIn(tt.hours)
		if got := ComputeExpiry(StatusScheduled, kickoff, now); !got.Equal(now.Add(tt.ttl)) {
			t.Errorf("scheduled %+.1fh: expiry = %v, want now+%v", tt.hours, got, tt.ttl)
		}
		if got := ComputePriority(StatusScheduled, kickoff, now); got != tt.priority {
			t.Errorf("scheduled %+.1fh: priority = %s, want %s", tt.hours, got, tt.priority)
		}
	}
}

func TestScheduledKickoffPassed(t *testing.T) {
	// Status lagging behind reality: kickoff in the past but still "scheduled".
	kickoff := kickoffIn(-1)
	if got := ComputePriority(StatusScheduled, kickoff, now); got != PriorityLow {
		t.Errorf("priority = %s, want low", got)
	}
	if got := ComputeExpiry(StatusScheduled, kickoff, now); !got.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("expiry = %v, want now+5m", got)
	}
}

func TestSettledStatuses(t *testing.T) {
	for _, s := range []Status{StatusFinished, StatusPostponed, StatusCancelled} {
		if got := ComputeExpiry(s, kickoffIn(-3), now); !got.Equal(now.Add(24 * time.Hour)) {
			t.Errorf("%s: expiry = %v, want now+24h", s, got)
		}
		if got := ComputePriority(s, kickoffIn(-3), now); got != PriorityLow {
			t.Errorf("%s: priority = %s, want low", s, got)
		}
		if !s.Settled() {
			t.Errorf("%s: Settled() = false", s)
		}
	}
}

func TestUnknownStatusDefaults(t *testing.T) {
	if got := ComputeExpiry(Status("weird"), kickoffIn(50), now); !got.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("unknown status expiry = %v, want now+30m", got)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		short string
		want  Status
	}{
		{"NS", StatusScheduled},
		{"TBD", StatusScheduled},
		{"1H", StatusLive},
		{"HT", StatusLive},
		{"2H", StatusLive},
		{"ET", StatusLive},
		{"P", StatusLive},
		{"SUSP", StatusLive},
		{"FT", StatusFinished},
		{"AET", StatusFinished},
		{"PEN", StatusFinished},
		{"PST", StatusPostponed},
		{"CANC", StatusCancelled},
		{"ABD", StatusCancelled},
		{"WO", StatusFinished},
		// Unmapped codes must fall back, never leak through.
		{"XYZ", StatusScheduled},
		{"", StatusScheduled},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.short); got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.short, got, tt.want)
		}
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	order := []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() <= order[i].Rank() {
			t.Errorf("rank(%s) should exceed rank(%s)", order[i-1], order[i])
		}
	}
}
