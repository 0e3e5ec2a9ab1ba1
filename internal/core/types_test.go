package core

import (
	"testing"
	"time"
)

func TestBar_IsValid(t *testing.T) {
	valid := Bar{Symbol: "AAPL", Close: 187.5, Time: time.Now()}
	if !valid.IsValid() {
		t.Error("expected bar to be valid")
	}

	invalid := []Bar{
		{Close: 187.5, Time: time.Now()},           // no symbol
		{Symbol: "AAPL", Time: time.Now()},         // no close
		{Symbol: "AAPL", Close: 187.5},             // no time
		{Symbol: "AAPL", Close: -1, Time: time.Now()}, // negative close
	}
	for i, b := range invalid {
		if b.IsValid() {
			t.Errorf("bar %d should be invalid", i)
		}
	}
}

func TestBar_TypicalPrice(t *testing.T) {
	b := Bar{High: 12, Low: 9, Close: 10.5}
	if got := b.TypicalPrice(); got != 10.5 {
		t.Errorf("typical price = %f, want 10.5", got)
	}
}

func TestAction_IsValid(t *testing.T) {
	for _, a := range []Action{ActionBuy, ActionSell, ActionExitAll} {
		if !a.IsValid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if Action("SHORT").IsValid() {
		t.Error("SHORT should not be a valid action")
	}
}
