package store

import (
	"testing"

	"github.com/google/uuid"

	"github.com/lazypower/ghostkg/internal/cache"
	"github.com/lazypower/ghostkg/internal/fsrs"
)

func TestLogInteractionRedactsContent(t *testing.T) {
	s := testStore(t) // StoreLogContent defaults to false
	at := wallAt(t, 0)

	ref, err := s.LogInteraction("alice", "statement", at, "coffee is great", nil)
	if err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}
	if _, err := uuid.Parse(ref); err != nil {
		t.Errorf("returned reference %q is not a UUID: %v", ref, err)
	}

	logs, err := s.GetLogs("alice", 0)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].Content == "coffee is great" {
		t.Error("raw content was stored despite redaction")
	}
	if logs[0].Content != ref || logs[0].ContentUUID != ref {
		t.Errorf("stored reference mismatch: content %q, uuid %q, want %q",
			logs[0].Content, logs[0].ContentUUID, ref)
	}
}

func TestLogInteractionStoresContent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()
	s := New(db, cache.New(64, 0), fsrs.NewScheduler(), Options{StoreLogContent: true})
	at := wallAt(t, 0)

	ref, err := s.LogInteraction("alice", "statement", at, "coffee is great", map[string]any{"speaker": "bob"})
	if err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}
	if ref != "coffee is great" {
		t.Errorf("reference = %q, want the raw content", ref)
	}

	logs, err := s.GetLogs("alice", 0)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if logs[0].Content != "coffee is great" {
		t.Errorf("Content = %q", logs[0].Content)
	}
	if logs[0].ContentUUID != "" {
		t.Errorf("ContentUUID = %q, want empty when content is stored", logs[0].ContentUUID)
	}
	if logs[0].Annotations["speaker"] != "bob" {
		t.Errorf("Annotations = %+v", logs[0].Annotations)
	}
}

func TestGetLogsOrderAndLimit(t *testing.T) {
	s := testStore(t)

	for day := 0; day < 5; day++ {
		if _, err := s.LogInteraction("alice", "statement", wallAt(t, day), "x", nil); err != nil {
			t.Fatalf("LogInteraction day %d: %v", day, err)
		}
	}

	logs, err := s.GetLogs("alice", 3)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].At.Key() > logs[i-1].At.Key() {
			t.Errorf("logs not newest first: %d before %d", logs[i-1].At.Key(), logs[i].At.Key())
		}
	}
}

func TestGetLogsUnknownOwner(t *testing.T) {
	s := testStore(t)

	logs, err := s.GetLogs("nobody", 0)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if logs != nil {
		t.Errorf("got %+v, want nil", logs)
	}
}
