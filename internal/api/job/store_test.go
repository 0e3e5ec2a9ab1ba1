package job

import (
	"errors"
	"testing"
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore(10, time.Hour)

	j := s.Create("backtest")
	if j.ID == "" || j.Status != StatusPending {
		t.Fatalf("unexpected job: %+v", j)
	}

	got, err := s.Get(j.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Type != "backtest" {
		t.Errorf("type = %s", got.Type)
	}

	if _, err := s.Get("missing"); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	s := NewStore(10, time.Hour)
	j := s.Create("backtest")

	err := s.Update(j.ID, func(j *Job) {
		j.Status = StatusComplete
		j.Result = "done"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := s.Get(j.ID)
	if got.Status != StatusComplete || got.Result != "done" {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("UpdatedAt not touched")
	}

	if err := s.Update("missing", func(*Job) {}); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCapacityEviction(t *testing.T) {
	s := NewStore(2, time.Hour)

	first := s.Create("backtest")
	s.Create("backtest")
	s.Create("backtest") // evicts first

	if _, err := s.Get(first.ID); !errors.Is(err, core.ErrJobNotFound) {
		t.Error("oldest job should have been evicted")
	}
	if len(s.List()) != 2 {
		t.Errorf("store size = %d, want 2", len(s.List()))
	}
}

func TestTTLEviction(t *testing.T) {
	s := NewStore(10, time.Millisecond)

	old := s.Create("backtest")
	time.Sleep(5 * time.Millisecond)
	s.Create("backtest") // prunes expired jobs

	if _, err := s.Get(old.ID); !errors.Is(err, core.ErrJobNotFound) {
		t.Error("expired job should have been pruned")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewStore(10, time.Hour)
	j := s.Create("backtest")

	got, _ := s.Get(j.ID)
	got.Status = StatusFailed

	again, _ := s.Get(j.ID)
	if again.Status != StatusPending {
		t.Error("caller mutation leaked into the store")
	}
}
