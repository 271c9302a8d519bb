package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gantry-oss/gantry/internal/archive"
	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/queue"
	"github.com/gantry-oss/gantry/internal/task"
)

// --- Helpers ---

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}

// codedError maps a coded runtime error to an HTTP status and includes
// the code and suggestion in the body when present.
func codedError(w http.ResponseWriter, err error) {
	code := errors.AsCode(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.CodeSessionLimit:
		status = http.StatusTooManyRequests
	case errors.CodeSessionNotFound, errors.CodeTaskNotFound, errors.CodeToolNotFound:
		status = http.StatusNotFound
	case errors.CodeAgentNotFound, errors.CodeConfigInvalid:
		status = http.StatusBadRequest
	}

	body := map[string]string{"error": err.Error()}
	if code != "" {
		body["code"] = code
	}
	if suggestion := errors.Suggestion(err); suggestion != "" {
		body["suggestion"] = suggestion
	}
	jsonResponse(w, status, body)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Health and stats ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"name":    s.core.Config.Name,
		"version": s.core.Config.Version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"bus":   s.core.Bus.Stats(),
		"tasks": s.core.Tasks.Stats(),
		"sessions": map[string]int{
			"count":    s.core.Sessions.Count(),
			"capacity": s.core.Sessions.Capacity(),
		},
		"queues":  s.core.Queues.Overview(),
		"metrics": s.core.Metrics.GetSummary(),
	})
}

// --- Agents ---

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.core.Registry.List())
}

// --- Sessions ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cwd string `json:"cwd"`
	}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	sess, err := s.core.Sessions.Create(body.Cwd)
	if err != nil {
		codedError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.core.Sessions.List())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.core.Sessions.Get(r.PathValue("id"))
	if err != nil {
		codedError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.core.Sessions.Delete(id); err != nil {
		codedError(w, err)
		return
	}
	s.core.Queues.Remove(id)
	removed := s.core.Bus.ClearSession(id)

	s.logger.Debug("Session deleted", "session_id", id, "handlers_removed", removed)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Prompt      string   `json:"prompt"`
		Priority    string   `json:"priority"`
		Attachments []string `json:"attachments"`
	}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Prompt == "" {
		jsonError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	priority, err := event.ParsePriority(body.Priority)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.core.Loop.Submit(r.Context(), id, body.Prompt, body.Attachments,
		queue.WithPriority(priority))
	if err != nil {
		codedError(w, err)
		return
	}
	if result.Queued {
		jsonResponse(w, http.StatusAccepted, result)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleSessionQueue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.core.Sessions.Has(id) {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
		return
	}
	jsonResponse(w, http.StatusOK, s.core.Queues.Status(id))
}

func (s *Server) handleAllQueues(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.core.Queues.Overview())
}

// --- Tasks ---

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description     string `json:"description"`
		AgentType       string `json:"agent_type"`
		Priority        string `json:"priority"`
		ParentSessionID string `json:"parent_session_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Description == "" {
		jsonError(w, http.StatusBadRequest, "description is required")
		return
	}
	if body.AgentType == "" {
		jsonError(w, http.StatusBadRequest, "agent_type is required")
		return
	}
	priority, err := event.ParsePriority(body.Priority)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []task.CreateOption{task.WithPriority(priority)}
	if body.ParentSessionID != "" {
		opts = append(opts, task.WithParentSession(body.ParentSessionID))
	}

	created, err := s.core.Tasks.Create(r.Context(), body.Description, body.AgentType, opts...)
	if err != nil {
		codedError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	f := task.Filter{ParentSessionID: r.URL.Query().Get("session")}
	if state := r.URL.Query().Get("state"); state != "" {
		f.State = task.State(state)
		if !f.State.Valid() {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("unknown task state: %s", state))
			return
		}
	}
	jsonResponse(w, http.StatusOK, s.core.Tasks.List(f))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.core.Tasks.Get(r.PathValue("id"))
	if err != nil {
		codedError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.core.Tasks.Cancel(r.PathValue("id"))
	if err != nil {
		codedError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

func (s *Server) handleTaskStats(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.core.Tasks.Stats())
}

// --- Tools ---

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.core.Tools.List())
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		SessionID string          `json:"session_id"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := s.core.Tools.Execute(r.Context(), body.SessionID, name, body.Arguments)
	if err != nil {
		codedError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"result": result})
}

// --- Events ---

func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	f := event.HistoryFilter{
		Type:      event.EventType(r.URL.Query().Get("type")),
		SessionID: r.URL.Query().Get("session_id"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		f.Limit = limit
	}
	jsonResponse(w, http.StatusOK, s.core.Bus.History(f))
}

func (s *Server) handleEventArchive(w http.ResponseWriter, r *http.Request) {
	if s.core.Archive == nil {
		jsonError(w, http.StatusNotFound, "event archive is disabled")
		return
	}

	f := archive.Filter{
		Type:      event.EventType(r.URL.Query().Get("type")),
		SessionID: r.URL.Query().Get("session_id"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		f.Limit = limit
	}

	events, err := s.core.Archive.Events(f)
	if err != nil {
		codedError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, events)
}

// handleEventStream serves the live SSE feed. Query parameters narrow
// the stream: types is a comma-separated event type list, session_id
// pins it to one session.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var types []event.EventType
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				types = append(types, event.EventType(part))
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := s.broker.Subscribe(r.Context(), r.URL.Query().Get("session_id"), types)

	data, _ := json.Marshal(map[string]string{"type": "connected", "client_id": client.ID})
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case ev, open := <-client.Events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
