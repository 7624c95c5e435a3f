package scheduler

import (
	"context"
	"testing"
	"time"

	"FluxFeed/pkg/logger"
)

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(logger.NewNop())
	if err := s.Register("bad", "every now and then", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
	// five-field specs are rejected because seconds are required
	if err := s.Register("short", "*/5 * * * *", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for spec without seconds")
	}
}

func TestSchedulerRunsTask(t *testing.T) {
	s := New(logger.NewNop())
	ran := make(chan struct{}, 4)
	if err := s.Register("tick", "* * * * * *", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("task did not run")
	}
}
