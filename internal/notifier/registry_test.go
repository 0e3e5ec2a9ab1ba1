package notifier

import (
	"errors"
	"testing"
)

// stubNotifier records sent events.
type stubNotifier struct {
	name string
	sent []Event
	err  error
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) Send(e Event) error {
	s.sent = append(s.sent, e)
	return s.err
}

func TestRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&stubNotifier{name: "a"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&stubNotifier{name: "a"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}

	n, err := r.Get("a")
	if err != nil || n.Name() != "a" {
		t.Errorf("Get(a) = %v, %v", n, err)
	}
	if _, err := r.Get("missing"); err == nil {
		t.Error("Get(missing) should fail")
	}
	if len(r.All()) != 1 {
		t.Errorf("All() = %d notifiers, want 1", len(r.All()))
	}
}

func TestNotifyAll(t *testing.T) {
	r := NewRegistry()
	good := &stubNotifier{name: "good"}
	bad := &stubNotifier{name: "bad", err: errors.New("boom")}
	r.Register(good)
	r.Register(bad)

	errs := r.NotifyAll(Event{Type: EventTradeOpened, Symbol: "AAPL"})

	if len(good.sent) != 1 || good.sent[0].Symbol != "AAPL" {
		t.Errorf("good notifier did not receive the event: %+v", good.sent)
	}
	if len(errs) != 1 || errs["bad"] == nil {
		t.Errorf("expected one failure from bad, got %v", errs)
	}
}
