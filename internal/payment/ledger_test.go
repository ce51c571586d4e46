package payment

import (
	"encoding/json"
	"testing"
)

type markerRecorder struct {
	marked []int64
}

func (m *markerRecorder) MarkPaid(userID int64) {
	m.marked = append(m.marked, userID)
}

func eventFromJSON(t *testing.T, raw string) Event {
	t.Helper()
	var evt Event
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return evt
}

func TestApplyEventCaptureCompleted(t *testing.T) {
	rec := &markerRecorder{}
	l := NewLedger(rec, nil)

	l.ApplyEvent(eventFromJSON(t, `{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {"custom_id": "42"}
	}`))

	if len(rec.marked) != 1 || rec.marked[0] != 42 {
		t.Fatalf("marked = %v, want [42]", rec.marked)
	}
}

func TestApplyEventOrderApprovedReadsPurchaseUnits(t *testing.T) {
	rec := &markerRecorder{}
	l := NewLedger(rec, nil)

	l.ApplyEvent(eventFromJSON(t, `{
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"resource": {"purchase_units": [{"custom_id": "7"}]}
	}`))

	if len(rec.marked) != 1 || rec.marked[0] != 7 {
		t.Fatalf("marked = %v, want [7]", rec.marked)
	}
}

func TestApplyEventMissingCustomIDDropped(t *testing.T) {
	rec := &markerRecorder{}
	l := NewLedger(rec, nil)

	l.ApplyEvent(eventFromJSON(t, `{"event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {}}`))

	if len(rec.marked) != 0 {
		t.Fatalf("marked = %v, want none for missing custom_id", rec.marked)
	}
}

func TestApplyEventUnparsableCustomIDDropped(t *testing.T) {
	rec := &markerRecorder{}
	l := NewLedger(rec, nil)

	l.ApplyEvent(eventFromJSON(t, `{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {"custom_id": "not-a-number"}
	}`))

	if len(rec.marked) != 0 {
		t.Fatalf("marked = %v, want none for bad custom_id", rec.marked)
	}
}

func TestApplyEventUnknownTypeIgnored(t *testing.T) {
	rec := &markerRecorder{}
	l := NewLedger(rec, nil)

	l.ApplyEvent(eventFromJSON(t, `{
		"event_type": "BILLING.SUBSCRIPTION.CANCELLED",
		"resource": {"custom_id": "42"}
	}`))

	if len(rec.marked) != 0 {
		t.Fatalf("marked = %v, unknown event types must not mutate state", rec.marked)
	}
}

func TestApplyEventIdempotentForDuplicates(t *testing.T) {
	rec := &markerRecorder{}
	l := NewLedger(rec, nil)
	evt := eventFromJSON(t, `{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {"custom_id": "42"}
	}`)

	l.ApplyEvent(evt)
	l.ApplyEvent(evt)

	// MarkPaid itself is idempotent; the ledger just forwards both.
	if len(rec.marked) != 2 || rec.marked[0] != 42 || rec.marked[1] != 42 {
		t.Fatalf("marked = %v, want [42 42]", rec.marked)
	}
}
