package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/event"
)

func archEvent(typ event.EventType, sessionID string, ts time.Time) event.Event {
	ev := event.NewSessionEvent(typ, sessionID, map[string]interface{}{"k": "v"})
	ev.Timestamp = ts
	return ev
}

func TestNewStore_Drivers(t *testing.T) {
	tests := []struct {
		driver  string
		wantNil bool
		wantErr bool
	}{
		{"memory", false, false},
		{"", false, false},
		{"off", true, false},
		{"postgres", true, true},
	}
	for _, tt := range tests {
		t.Run("driver="+tt.driver, func(t *testing.T) {
			store, err := NewStore(tt.driver, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore(%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
			if tt.wantErr && !errors.HasCode(err, errors.CodeArchiveError) {
				t.Errorf("error = %v, want ARCHIVE_ERROR", err)
			}
			if (store == nil) != tt.wantNil {
				t.Errorf("store = %v, wantNil %v", store, tt.wantNil)
			}
			if store != nil {
				store.Close()
			}
		})
	}
}

func TestStore_SaveAndQuery(t *testing.T) {
	base := time.Now().Add(-time.Minute).Round(time.Second)

	drivers := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
		{"sqlite", func(t *testing.T) Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"))
			if err != nil {
				t.Fatalf("failed to open sqlite store: %v", err)
			}
			return store
		}},
	}

	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			store := d.open(t)
			defer store.Close()

			seed := []event.Event{
				archEvent(event.AgentStarted, "session-1", base),
				archEvent(event.AgentCompleted, "session-1", base.Add(1*time.Second)),
				archEvent(event.TaskStarted, "session-2", base.Add(2*time.Second)),
				archEvent(event.TaskCompleted, "session-2", base.Add(3*time.Second)),
			}
			for _, ev := range seed {
				if err := store.SaveEvent(ev); err != nil {
					t.Fatalf("SaveEvent error: %v", err)
				}
			}

			all, err := store.Events(Filter{})
			if err != nil {
				t.Fatalf("Events error: %v", err)
			}
			if len(all) != 4 {
				t.Fatalf("got %d events, want 4", len(all))
			}
			if all[0].Type != event.TaskCompleted || all[3].Type != event.AgentStarted {
				t.Errorf("not newest-first: %s .. %s", all[0].Type, all[3].Type)
			}

			byType, _ := store.Events(Filter{Type: event.TaskStarted})
			if len(byType) != 1 || byType[0].Type != event.TaskStarted {
				t.Errorf("type filter returned %v", byType)
			}

			bySession, _ := store.Events(Filter{SessionID: "session-1"})
			if len(bySession) != 2 {
				t.Errorf("session filter returned %d events, want 2", len(bySession))
			}
			for _, ev := range bySession {
				if ev.SessionID != "session-1" {
					t.Errorf("session filter leaked %s", ev.SessionID)
				}
			}

			combined, _ := store.Events(Filter{Type: event.AgentStarted, SessionID: "session-2"})
			if len(combined) != 0 {
				t.Errorf("ANDed filters returned %d events, want 0", len(combined))
			}

			limited, _ := store.Events(Filter{Limit: 2})
			if len(limited) != 2 {
				t.Fatalf("limit returned %d events, want 2", len(limited))
			}
			if limited[0].Type != event.TaskCompleted || limited[1].Type != event.TaskStarted {
				t.Errorf("limit did not keep the newest: %s, %s", limited[0].Type, limited[1].Type)
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "archive.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ev := archEvent(event.TaskCompleted, "session-9", time.Now().Round(time.Second))
	if err := store.SaveEvent(ev); err != nil {
		t.Fatalf("SaveEvent error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.Events(Filter{})
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events after reopen, want 1", len(events))
	}
	if events[0].ID != ev.ID || events[0].SessionID != "session-9" {
		t.Errorf("event round-trip mismatch: %+v", events[0])
	}
	if events[0].Data["k"] != "v" {
		t.Errorf("data not preserved: %v", events[0].Data)
	}
}

func TestSQLiteStore_SameIDOverwrites(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ev := archEvent(event.Custom, "", time.Now().Round(time.Second))
	if err := store.SaveEvent(ev); err != nil {
		t.Fatalf("first save: %v", err)
	}
	ev.Data = map[string]interface{}{"k": "updated"}
	if err := store.SaveEvent(ev); err != nil {
		t.Fatalf("second save: %v", err)
	}

	events, _ := store.Events(Filter{})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Data["k"] != "updated" {
		t.Errorf("data = %v, want the replacement", events[0].Data)
	}
}
