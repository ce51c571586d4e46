// Package policy decides whether an inbound message gets answered at all.
// It is pure: it reads a usage snapshot and never mutates anything.
package policy

import (
	"math"
	"time"

	"github.com/softreply/sophia/internal/conversation"
)

// Verdict is the outcome class of a policy evaluation.
type Verdict string

const (
	Allowed       Verdict = "allowed"
	QuotaExceeded Verdict = "quota_exceeded"
	RateLimited   Verdict = "rate_limited"
)

// Decision is the gate result for one inbound message. SecondsRemaining is
// only meaningful for RateLimited.
type Decision struct {
	Verdict          Verdict
	SecondsRemaining int
}

// Evaluate applies the quota check, then the rate check. The quota check wins
// ties: a quota-exhausted user sees the quota refusal even when also inside
// the rate window. Paid users skip the quota check but not the rate check.
func Evaluate(usage conversation.Usage, now time.Time, freeLimit int, minInterval time.Duration) Decision {
	if !usage.Paid && usage.MessageCount >= freeLimit {
		return Decision{Verdict: QuotaExceeded}
	}
	if minInterval > 0 && !usage.LastMessageAt.IsZero() {
		elapsed := now.Sub(usage.LastMessageAt)
		if elapsed < minInterval {
			remaining := (minInterval - elapsed).Seconds()
			return Decision{
				Verdict:          RateLimited,
				SecondsRemaining: int(math.Ceil(remaining)),
			}
		}
	}
	return Decision{Verdict: Allowed}
}
