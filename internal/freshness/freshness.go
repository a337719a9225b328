// Package freshness decides how long cached fixture data stays valid and
// how urgently it should be refreshed. All functions are pure — callers
// inject `now`, so the policy is testable without a clock mock.
package freshness

import "time"

// --------------------------------------------------------------------------
// Match status
// --------------------------------------------------------------------------

// Status is the internal match state driving the freshness policy.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusFinished  Status = "finished"
	StatusPostponed Status = "postponed"
	StatusCancelled Status = "cancelled"
)

// shortCodes maps upstream short status codes to internal statuses.
// Covers the full API-Football status table.
var shortCodes = map[string]Status{
	// Scheduled
	"TBD": StatusScheduled,
	"NS":  StatusScheduled,

	// In play
	"1H":   StatusLive,
	"HT":   StatusLive,
	"2H":   StatusLive,
	"ET":   StatusLive,
	"BT":   StatusLive,
	"P":    StatusLive,
	"INT":  StatusLive,
	"LIVE": StatusLive,
	"SUSP": StatusLive,

	// Settled
	"FT":  StatusFinished,
	"AET": StatusFinished,
	"PEN": StatusFinished,
	"AWD": StatusFinished,
	"WO":  StatusFinished,

	// Not played
	"PST":  StatusPostponed,
	"CANC": StatusCancelled,
	"ABD":  StatusCancelled,
}

// ParseStatus maps an upstream short code to an internal Status.
// Unknown codes fall back to StatusScheduled rather than leaking an
// unexpected string into the cache.
func ParseStatus(short string) Status {
	if s, ok := shortCodes[short]; ok {
		return s
	}
	return StatusScheduled
}

// ShortCode returns a representative upstream short code for a status,
// the inverse of ParseStatus up to code granularity.
func (s Status) ShortCode() string {
	switch s {
	case StatusLive:
		return "LIVE"
	case StatusFinished:
		return "FT"
	case StatusPostponed:
		return "PST"
	case StatusCancelled:
		return "CANC"
	default:
		return "NS"
	}
}

// Settled reports whether a status means the match will not change again.
func (s Status) Settled() bool {
	return s == StatusFinished || s == StatusPostponed || s == StatusCancelled
}

// --------------------------------------------------------------------------
// Priority
// --------------------------------------------------------------------------

// Priority orders refresh work. It never gates correctness — only which
// fixture gets the next upstream call.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns a numeric weight for sorting (higher = refresh sooner).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// --------------------------------------------------------------------------
// Policy
// --------------------------------------------------------------------------

// TTL buckets. Live data turns over fastest; settled matches are kept for
// a long but bounded horizon so they are not re-fetched.
const (
	ttlLive     = 2 * time.Minute
	ttlImminent = 5 * time.Minute
	ttlSameDay  = 30 * time.Minute
	ttlDistant  = 60 * time.Minute
	ttlSettled  = 24 * time.Hour
	ttlDefault  = 30 * time.Minute
)

const (
	imminentHorizon = 2.0  // hours to kickoff below which data is hot
	sameDayHorizon  = 24.0 // hours to kickoff below which data is warm
)

// ComputeExpiry returns the instant at which cached data for a fixture in
// the given state stops being valid.
func ComputeExpiry(status Status, matchDate, now time.Time) time.Time {
	switch status {
	case StatusLive:
		return now.Add(ttlLive)
	case StatusScheduled:
		h := matchDate.Sub(now).Hours()
		switch {
		case h < imminentHorizon:
			return now.Add(ttlImminent)
		case h < sameDayHorizon:
			return now.Add(ttlSameDay)
		default:
			return now.Add(ttlDistant)
		}
	case StatusFinished, StatusPostponed, StatusCancelled:
		return now.Add(ttlSettled)
	default:
		return now.Add(ttlDefault)
	}
}

// ComputePriority returns the refresh tier for a fixture. Live is always
// critical regardless of kickoff time.
func ComputePriority(status Status, matchDate, now time.Time) Priority {
	switch status {
	case StatusLive:
		return PriorityCritical
	case StatusScheduled:
		h := matchDate.Sub(now).Hours()
		switch {
		case h < 0:
			// Kickoff passed but upstream status not updated yet.
			return PriorityLow
		case h < imminentHorizon:
			return PriorityHigh
		case h < sameDayHorizon:
			return PriorityMedium
		default:
			return PriorityLow
		}
	default:
		return PriorityLow
	}
}
