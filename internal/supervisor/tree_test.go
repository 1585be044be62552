// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// waitFor polls cond until it holds or a second elapses.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDefaultTreeConfig(t *testing.T) {
	config := DefaultTreeConfig()

	if config.Name != "tripsync" {
		t.Errorf("expected Name tripsync, got %q", config.Name)
	}
	if config.FailureThreshold != 5.0 {
		t.Errorf("expected FailureThreshold 5.0, got %f", config.FailureThreshold)
	}
	if config.FailureDecay != 30.0 {
		t.Errorf("expected FailureDecay 30.0, got %f", config.FailureDecay)
	}
	if config.FailureBackoff != 15*time.Second {
		t.Errorf("expected FailureBackoff 15s, got %v", config.FailureBackoff)
	}
	if config.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected ShutdownTimeout 10s, got %v", config.ShutdownTimeout)
	}
}

func TestNewSupervisorTree(t *testing.T) {
	t.Run("applies defaults for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("NewSupervisorTree: %v", err)
		}
		if tree.Root() == nil {
			t.Fatal("root supervisor should not be nil")
		}
		if got := tree.Config(); got != DefaultTreeConfig() {
			t.Errorf("Config() = %+v, want %+v", got, DefaultTreeConfig())
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
			Name:            "relay-test",
			FailureBackoff:  time.Second,
			ShutdownTimeout: 2 * time.Second,
		})
		if err != nil {
			t.Fatalf("NewSupervisorTree: %v", err)
		}
		cfg := tree.Config()
		if cfg.Name != "relay-test" || cfg.FailureBackoff != time.Second || cfg.ShutdownTimeout != 2*time.Second {
			t.Errorf("explicit values overwritten: %+v", cfg)
		}
		if cfg.FailureThreshold != 5.0 {
			t.Errorf("zero FailureThreshold should default, got %f", cfg.FailureThreshold)
		}
	})

	t.Run("rejects nil logger", func(t *testing.T) {
		if _, err := NewSupervisorTree(nil, TreeConfig{}); !errors.Is(err, ErrNilLogger) {
			t.Errorf("expected ErrNilLogger, got %v", err)
		}
	})
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	t.Run("starts both layers and stops on cancel", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

		hub := newMockService("websocket-hub")
		server := newMockService("http-server")
		tree.AddMessagingService(hub)
		tree.AddAPIService(server)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := tree.ServeBackground(ctx)

		waitFor(t, "services to start", func() bool {
			return hub.starts() >= 1 && server.starts() >= 1
		})
		cancel()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("tree did not shut down")
		}

		if hub.stops() != hub.starts() || server.stops() != server.starts() {
			t.Error("every started service should have returned")
		}

		report, err := tree.UnstoppedServiceReport()
		if err != nil {
			t.Fatalf("UnstoppedServiceReport: %v", err)
		}
		if len(report) != 0 {
			t.Errorf("expected no unstopped services, got %v", report)
		}
	})

	t.Run("empty tree stops at deadline", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: 500 * time.Millisecond})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		select {
		case err := <-tree.ServeBackground(ctx):
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("tree did not shut down")
		}
	})
}

func TestSupervisorTreeFailureIsolation(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  500 * time.Millisecond,
	})

	hub := newMockService("websocket-hub")
	hub.setFailCount(2)
	server := newMockService("http-server")

	tree.AddMessagingService(hub)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	defer func() {
		cancel()
		<-errCh
	}()

	waitFor(t, "hub restarts", func() bool { return hub.starts() >= 3 })

	// The listener keeps its first run while the hub is restarted.
	if got := server.starts(); got != 1 {
		t.Errorf("http server should start exactly once, got %d", got)
	}
}

func TestSupervisorTreeDoNotRestart(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: 500 * time.Millisecond,
	})

	oneShot := newMockService("one-shot")
	oneShot.setError(suture.ErrDoNotRestart)
	tree.AddAPIService(oneShot)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, "one-shot to run", func() bool { return oneShot.starts() >= 1 })
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-errCh

	if got := oneShot.starts(); got != 1 {
		t.Errorf("ErrDoNotRestart service should start once, got %d", got)
	}
}

func TestSupervisorTreeRemove(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: 500 * time.Millisecond})

	hub := newMockService("websocket-hub")
	server := newMockService("http-server")
	hubToken := tree.AddMessagingService(hub)
	serverToken := tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	defer func() {
		cancel()
		<-errCh
	}()

	waitFor(t, "services to start", func() bool {
		return hub.starts() >= 1 && server.starts() >= 1
	})

	if err := tree.RemoveMessagingService(hubToken); err != nil {
		t.Fatalf("RemoveMessagingService: %v", err)
	}
	if err := tree.RemoveAPIService(serverToken); err != nil {
		t.Fatalf("RemoveAPIService: %v", err)
	}

	waitFor(t, "removed services to stop", func() bool {
		return hub.stops() >= 1 && server.stops() >= 1
	})
}
