package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopJob(name, spec string) Job {
	return &FuncJob{
		JobName: name,
		Spec:    spec,
		Fn:      func(context.Context) error { return nil },
	}
}

func TestRegister_DuplicateName(t *testing.T) {
	t.Parallel()

	s := New(testLogger())
	if err := s.Register(noopJob("recheck", "*/10 * * * *")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := s.Register(noopJob("recheck", "0 * * * *")); err == nil {
		t.Fatalf("duplicate name accepted")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := New(testLogger())
	if err := s.Register(noopJob("broken", "not a schedule")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("invalid schedule accepted")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := New(testLogger())
	if err := s.Register(noopJob("recheck", "*/10 * * * *")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStop_BeforeStart(t *testing.T) {
	t.Parallel()

	s := New(testLogger())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on idle scheduler: %v", err)
	}
}
