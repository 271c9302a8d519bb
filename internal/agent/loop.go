package agent

import (
	"context"
	"time"

	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/queue"
	"github.com/gantry-oss/gantry/internal/session"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

// TurnResult reports what Submit did with a prompt: either it was
// queued behind an active turn, or it ran and Result holds the
// response. Drained counts backlog turns run after the submitted one.
type TurnResult struct {
	Queued    bool   `json:"queued"`
	MessageID string `json:"message_id,omitempty"`
	Result    string `json:"result,omitempty"`
	Drained   int    `json:"drained"`
}

// Loop drives turns through the runner. It owns the drain contract:
// a session runs at most one turn at a time, prompts that arrive while
// a turn is active are queued, and the active turn drains the backlog
// before giving the session up.
type Loop struct {
	queues   *queue.Manager
	sessions *session.Manager
	bus      *event.Bus
	runner   Runner
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
}

// NewLoop wires a turn loop. A nil metrics falls back to a private
// collector so callers without telemetry stay safe.
func NewLoop(queues *queue.Manager, sessions *session.Manager, bus *event.Bus, runner Runner, logger *telemetry.Logger, metrics *telemetry.Metrics) *Loop {
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	return &Loop{
		queues:   queues,
		sessions: sessions,
		bus:      bus,
		runner:   runner,
		logger:   logger,
		metrics:  metrics,
	}
}

// Submit routes one prompt into the session. If the session is mid-turn
// the prompt is queued and Submit returns immediately with Queued set.
// Otherwise Submit runs the turn, then drains any prompts that queued
// up behind it, and reports the first turn's result.
func (l *Loop) Submit(ctx context.Context, sessionID, prompt string, attachments []string, opts ...queue.MessageOption) (*TurnResult, error) {
	if _, err := l.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	ctx = telemetry.ContextWithTrace(ctx, telemetry.NewTraceContext(sessionID))

	drained := 0
	result, queued, err := l.queues.RunWithQueue(ctx, sessionID, prompt, attachments,
		func(ctx context.Context, prompt string, attachments []string) (string, error) {
			l.setStatus(sessionID, session.StatusBusy)
			defer l.setStatus(sessionID, session.StatusIdle)

			res, runErr := l.runTurn(ctx, sessionID, prompt, attachments)
			drained = l.drain(ctx, sessionID)
			return res, runErr
		}, opts...)

	if queued != nil {
		l.metrics.IncTurnsQueued()
		l.logger.Debug("Turn queued behind active turn",
			"session_id", sessionID,
			"message_id", queued.ID,
			"priority", queued.Priority.String(),
		)
		return &TurnResult{Queued: true, MessageID: queued.ID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &TurnResult{Result: result, Drained: drained}, nil
}

// runTurn executes one turn and emits its lifecycle events. Each turn
// runs in its own span so log lines from concurrent sessions correlate.
func (l *Loop) runTurn(ctx context.Context, sessionID, prompt string, attachments []string) (string, error) {
	if tc := telemetry.TraceFromContext(ctx); tc != nil {
		ctx = telemetry.ContextWithTrace(ctx, tc.ChildSpan())
	} else {
		ctx = telemetry.ContextWithTrace(ctx, telemetry.NewTraceContext(sessionID))
	}
	log := l.logger.WithTrace(ctx)

	start := time.Now()
	l.metrics.IncTurnsStarted()
	l.emit(ctx, event.AgentStarted, sessionID, map[string]interface{}{
		"prompt": prompt,
	})

	result, err := l.runner.RunTurn(ctx, TurnRequest{
		SessionID:   sessionID,
		AgentType:   GeneralPurpose,
		Prompt:      prompt,
		Attachments: attachments,
	})
	if err != nil {
		l.metrics.IncTurnsFailed()
		log.Warn("Turn failed", "error", err)
		l.emit(ctx, event.AgentError, sessionID, map[string]interface{}{
			"prompt": prompt,
			"error":  err.Error(),
		})
		return "", err
	}

	l.metrics.IncTurnsCompleted()
	l.metrics.RecordTurnDuration(time.Since(start))
	log.Debug("Turn completed", "duration_ms", time.Since(start).Milliseconds())
	l.emit(ctx, event.AgentCompleted, sessionID, map[string]interface{}{
		"prompt": prompt,
		"result": result,
	})
	return result, nil
}

// drain runs queued prompts until the backlog is empty or the context
// is done. Failures are logged and do not stop the drain.
func (l *Loop) drain(ctx context.Context, sessionID string) int {
	count := 0
	for {
		if ctx.Err() != nil {
			if n := l.queues.QueuedCount(sessionID); n > 0 {
				l.logger.Warn("Drain interrupted with prompts left", "session_id", sessionID, "remaining", n)
			}
			return count
		}

		msg := l.queues.Dequeue(sessionID)
		if msg == nil {
			return count
		}

		if _, err := l.runTurn(ctx, sessionID, msg.Prompt, msg.Attachments); err != nil {
			l.logger.Warn("Queued turn failed",
				"session_id", sessionID,
				"message_id", msg.ID,
				"error", err,
			)
		}
		count++
	}
}

func (l *Loop) setStatus(sessionID string, status session.Status) {
	if err := l.sessions.SetStatus(sessionID, status); err != nil {
		// The session may have been deleted mid-turn.
		l.logger.Debug("Status update skipped", "session_id", sessionID, "error", err)
	}
}

func (l *Loop) emit(ctx context.Context, t event.EventType, sessionID string, data map[string]interface{}) {
	if l.bus == nil {
		return
	}
	ev := event.NewSessionEvent(t, sessionID, data)
	ev.Source = "loop"
	if err := l.bus.Emit(ctx, ev); err != nil {
		l.logger.Debug("Event emit aborted", "type", string(t), "error", err)
	}
}
