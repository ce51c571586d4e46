package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHistoryLazyInitSeedsPersona(t *testing.T) {
	s := NewStore("persona text", 50)
	h := s.History(7)
	if len(h) != 1 {
		t.Fatalf("History() length = %d, want 1", len(h))
	}
	if h[0].Role != RoleSystem || h[0].Content != "persona text" {
		t.Fatalf("unexpected seed turn: %+v", h[0])
	}
}

func TestAppendTurnKeepsSystemTurnPinned(t *testing.T) {
	const window = 10
	s := NewStore("persona", window)
	for i := 0; i < 40; i++ {
		s.AppendTurn(1, UserTurn(fmt.Sprintf("msg %d", i)))
		s.AppendTurn(1, AssistantTurn(fmt.Sprintf("reply %d", i)))
	}

	h := s.History(1)
	if len(h) != window {
		t.Fatalf("history length = %d, want %d", len(h), window)
	}
	if h[0].Role != RoleSystem {
		t.Fatalf("index 0 role = %q, want system", h[0].Role)
	}
	if h[len(h)-1].Content != "reply 39" {
		t.Fatalf("newest turn = %q, want %q", h[len(h)-1].Content, "reply 39")
	}
	// Oldest non-system turns are what got dropped.
	if h[1].Content == "msg 0" {
		t.Fatalf("oldest user turn should have been evicted")
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewStore("persona", 50)
	h := s.History(1)
	h[0].Content = "mutated"
	if got := s.History(1)[0].Content; got != "persona" {
		t.Fatalf("stored system turn = %q, want %q", got, "persona")
	}
}

func TestIncrementMessageCountSkipsPaidUsers(t *testing.T) {
	s := NewStore("persona", 50)
	s.IncrementMessageCount(1)
	s.IncrementMessageCount(1)
	if got := s.Usage(1).MessageCount; got != 2 {
		t.Fatalf("MessageCount = %d, want 2", got)
	}

	s.MarkPaid(1)
	s.IncrementMessageCount(1)
	if got := s.Usage(1).MessageCount; got != 2 {
		t.Fatalf("MessageCount after MarkPaid = %d, want 2", got)
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	s := NewStore("persona", 50)
	s.MarkPaid(42)
	s.MarkPaid(42)
	u := s.Usage(42)
	if !u.Paid {
		t.Fatalf("Paid = false, want true")
	}
	if u.MessageCount != 0 {
		t.Fatalf("MessageCount = %d, want 0", u.MessageCount)
	}
}

func TestUsageZeroValueForUnknownUser(t *testing.T) {
	s := NewStore("persona", 50)
	u := s.Usage(99)
	if u.MessageCount != 0 || u.Paid || !u.LastMessageAt.IsZero() {
		t.Fatalf("unexpected zero usage: %+v", u)
	}
}

func TestClearRemovesAllUserState(t *testing.T) {
	s := NewStore("persona", 50)
	s.AppendTurn(1, UserTurn("hello"))
	s.IncrementMessageCount(1)
	s.RecordMessageTime(1, time.Now())

	s.Clear(1)

	if got := s.Usage(1).MessageCount; got != 0 {
		t.Fatalf("MessageCount after Clear = %d, want 0", got)
	}
	if got := len(s.History(1)); got != 1 {
		t.Fatalf("history length after Clear = %d, want 1 (fresh seed)", got)
	}
}

func TestKnownUsers(t *testing.T) {
	s := NewStore("persona", 50)
	s.IncrementMessageCount(1)
	_ = s.History(2)
	s.MarkPaid(3)
	if got := s.KnownUsers(); got != 3 {
		t.Fatalf("KnownUsers() = %d, want 3", got)
	}
}

func TestLockSerializesPerUser(t *testing.T) {
	s := NewStore("persona", 50)

	unlock := s.Lock(1)
	acquired := make(chan struct{})
	go func() {
		u := s.Lock(1)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second Lock(1) acquired while first still held")
	case <-time.After(30 * time.Millisecond):
	}

	// A different user must not be blocked.
	done := make(chan struct{})
	go func() {
		u := s.Lock(2)
		u()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Lock(2) blocked by Lock(1)")
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second Lock(1) never acquired after unlock")
	}
}

func TestConcurrentAppendsStayWithinWindow(t *testing.T) {
	const window = 20
	s := NewStore("persona", window)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.AppendTurn(5, UserTurn(fmt.Sprintf("g%d-%d", g, i)))
			}
		}(g)
	}
	wg.Wait()

	h := s.History(5)
	if len(h) != window {
		t.Fatalf("history length = %d, want %d", len(h), window)
	}
	if h[0].Role != RoleSystem {
		t.Fatalf("index 0 role = %q, want system", h[0].Role)
	}
}
