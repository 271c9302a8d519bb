//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/gantry-oss/gantry/internal/agent"
	"github.com/gantry-oss/gantry/internal/archive"
	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/session"
	"github.com/gantry-oss/gantry/internal/testutil"
)

func TestTurnFlow(t *testing.T) {
	h := testutil.NewHarness(t)

	sess, err := h.Core.Sessions.Create("/work")
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.Core.Loop.Submit(context.Background(), sess.ID, "ship the release notes", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Result != "[general-purpose] ship the release notes" {
		t.Errorf("Result = %q", res.Result)
	}

	h.AssertEventEmitted(event.AgentStarted)
	h.AssertEventEmitted(event.AgentCompleted)
	h.AssertNoEvent(event.AgentError)

	// The archive recorded the same trail.
	archived, err := h.Core.Archive.Events(archive.Filter{SessionID: sess.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 2 {
		t.Errorf("archived events = %d, want 2", len(archived))
	}
}

func TestTurnFlow_QueueAndDrain(t *testing.T) {
	h := testutil.NewHarness(t)

	runner := &testutil.MockRunner{Delay: 50 * time.Millisecond}
	loop := agent.NewLoop(h.Core.Queues, h.Core.Sessions, h.Core.Bus, runner, h.Logger, h.Core.Metrics)

	sess, err := h.Core.Sessions.Create("/work")
	if err != nil {
		t.Fatal(err)
	}

	type outcome struct {
		res *agent.TurnResult
		err error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := loop.Submit(context.Background(), sess.ID, "first", nil)
		firstDone <- outcome{res, err}
	}()

	// Wait until the first turn holds the session.
	deadline := time.Now().Add(2 * time.Second)
	for !h.Core.Queues.IsBusy(sess.ID) {
		if time.Now().After(deadline) {
			t.Fatal("first turn never started")
		}
		time.Sleep(time.Millisecond)
	}

	second, err := loop.Submit(context.Background(), sess.ID, "second", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !second.Queued || second.MessageID == "" {
		t.Fatalf("expected second prompt to queue, got %+v", second)
	}

	first := <-firstDone
	if first.err != nil {
		t.Fatalf("first turn error = %v", first.err)
	}
	if first.res.Drained != 1 {
		t.Errorf("Drained = %d, want 1", first.res.Drained)
	}

	if got := runner.CallCount(); got != 2 {
		t.Errorf("CallCount() = %d, want 2", got)
	}
	if n := h.Core.Queues.QueuedCount(sess.ID); n != 0 {
		t.Errorf("QueuedCount() = %d, want 0", n)
	}
	if got := h.EventCount(event.AgentCompleted); got != 2 {
		t.Errorf("agent.completed count = %d, want 2", got)
	}
}

func TestTurnFlow_RunnerFailure(t *testing.T) {
	h := testutil.NewHarness(t)

	runner := &testutil.MockRunner{ShouldFail: true}
	loop := agent.NewLoop(h.Core.Queues, h.Core.Sessions, h.Core.Bus, runner, h.Logger, h.Core.Metrics)

	sess, err := h.Core.Sessions.Create("/work")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := loop.Submit(context.Background(), sess.ID, "doomed", nil); err == nil {
		t.Fatal("Submit() error = nil, want failure")
	}

	h.AssertEventEmitted(event.AgentError)
	h.AssertNoEvent(event.AgentCompleted)

	// The session is usable again after the failure.
	state, err := h.Core.Sessions.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != session.StatusIdle {
		t.Errorf("Status = %q, want idle", state.Status)
	}
	if h.Core.Queues.IsBusy(sess.ID) {
		t.Error("session still marked busy after failed turn")
	}
}
