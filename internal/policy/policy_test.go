package policy

import (
	"testing"
	"time"

	"github.com/softreply/sophia/internal/conversation"
)

func TestEvaluateQuotaExceededAfterFreeLimit(t *testing.T) {
	now := time.Now()
	usage := conversation.Usage{MessageCount: 4, LastMessageAt: now.Add(-time.Hour)}
	d := Evaluate(usage, now, 4, 3*time.Second)
	if d.Verdict != QuotaExceeded {
		t.Fatalf("Verdict = %q, want %q", d.Verdict, QuotaExceeded)
	}
}

func TestEvaluateAllowedUnderLimit(t *testing.T) {
	now := time.Now()
	usage := conversation.Usage{MessageCount: 3, LastMessageAt: now.Add(-time.Minute)}
	d := Evaluate(usage, now, 4, 3*time.Second)
	if d.Verdict != Allowed {
		t.Fatalf("Verdict = %q, want %q", d.Verdict, Allowed)
	}
}

func TestEvaluateRateLimitedWithCeilSeconds(t *testing.T) {
	now := time.Now()
	usage := conversation.Usage{MessageCount: 1, LastMessageAt: now.Add(-time.Second)}
	d := Evaluate(usage, now, 4, 3*time.Second)
	if d.Verdict != RateLimited {
		t.Fatalf("Verdict = %q, want %q", d.Verdict, RateLimited)
	}
	if d.SecondsRemaining != 2 {
		t.Fatalf("SecondsRemaining = %d, want 2", d.SecondsRemaining)
	}
}

func TestEvaluateRateLimitFractionRoundsUp(t *testing.T) {
	now := time.Now()
	usage := conversation.Usage{LastMessageAt: now.Add(-1500 * time.Millisecond)}
	d := Evaluate(usage, now, 4, 3*time.Second)
	if d.Verdict != RateLimited {
		t.Fatalf("Verdict = %q, want %q", d.Verdict, RateLimited)
	}
	if d.SecondsRemaining != 2 {
		t.Fatalf("SecondsRemaining = %d, want 2 (ceil of 1.5)", d.SecondsRemaining)
	}
}

func TestEvaluateQuotaWinsOverRateLimit(t *testing.T) {
	now := time.Now()
	usage := conversation.Usage{MessageCount: 4, LastMessageAt: now.Add(-time.Second)}
	d := Evaluate(usage, now, 4, 3*time.Second)
	if d.Verdict != QuotaExceeded {
		t.Fatalf("Verdict = %q, want %q (quota takes precedence)", d.Verdict, QuotaExceeded)
	}
}

func TestEvaluatePaidUserSkipsQuotaNotRate(t *testing.T) {
	now := time.Now()
	usage := conversation.Usage{MessageCount: 1000, Paid: true, LastMessageAt: now.Add(-time.Hour)}
	if d := Evaluate(usage, now, 4, 3*time.Second); d.Verdict != Allowed {
		t.Fatalf("paid user Verdict = %q, want %q", d.Verdict, Allowed)
	}

	usage.LastMessageAt = now.Add(-time.Second)
	if d := Evaluate(usage, now, 4, 3*time.Second); d.Verdict != RateLimited {
		t.Fatalf("paid user inside rate window Verdict = %q, want %q", d.Verdict, RateLimited)
	}
}

func TestEvaluateFirstMessageNeverRateLimited(t *testing.T) {
	d := Evaluate(conversation.Usage{}, time.Now(), 4, 3*time.Second)
	if d.Verdict != Allowed {
		t.Fatalf("Verdict = %q, want %q (no prior message)", d.Verdict, Allowed)
	}
}
