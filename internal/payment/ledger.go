package payment

import (
	"log"
	"strconv"
	"strings"

	"github.com/softreply/sophia/internal/observability"
)

// Event types that unlock a user. The provider may add new kinds at any time;
// anything else is dropped without comment.
const (
	EventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
)

// Event is the slice of a provider webhook payload the ledger cares about.
// Captures carry custom_id on the resource itself; approved orders carry it
// inside purchase_units.
type Event struct {
	EventType string `json:"event_type"`
	Resource  struct {
		CustomID      string `json:"custom_id"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

func (e Event) customID() string {
	if id := strings.TrimSpace(e.Resource.CustomID); id != "" {
		return id
	}
	for _, pu := range e.Resource.PurchaseUnits {
		if id := strings.TrimSpace(pu.CustomID); id != "" {
			return id
		}
	}
	return ""
}

// Marker is the store mutation the ledger needs.
type Marker interface {
	MarkPaid(userID int64)
}

// Ledger translates provider confirmation events into paid-flag updates.
type Ledger struct {
	store   Marker
	metrics *observability.Metrics
}

func NewLedger(store Marker, metrics *observability.Metrics) *Ledger {
	return &Ledger{store: store, metrics: metrics}
}

// ApplyEvent applies one webhook event. It never fails: malformed events are
// logged and dropped, unknown event types are dropped silently.
func (l *Ledger) ApplyEvent(evt Event) {
	switch evt.EventType {
	case EventOrderApproved, EventCaptureCompleted:
	default:
		l.count(evt.EventType, "ignored")
		return
	}

	raw := evt.customID()
	if raw == "" {
		log.Printf("payment event %s dropped: missing custom_id", evt.EventType)
		l.count(evt.EventType, "dropped")
		return
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("payment event %s dropped: custom_id %q is not a user id", evt.EventType, raw)
		l.count(evt.EventType, "dropped")
		return
	}

	l.store.MarkPaid(userID)
	log.Printf("payment event %s: user %d marked paid", evt.EventType, userID)
	l.count(evt.EventType, "applied")
}

func (l *Ledger) count(eventType, result string) {
	if l.metrics == nil {
		return
	}
	l.metrics.PaymentEvents.WithLabelValues(eventType, result).Inc()
}
