package sessions

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fieldhand/fieldhand/pkg/models"
)

func storeUnderTest(t *testing.T, name string) Store {
	t.Helper()
	switch name {
	case "memory":
		return NewMemoryStore()
	case "sqlite":
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	default:
		t.Fatalf("unknown store %q", name)
		return nil
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := storeUnderTest(t, backend)

			session := &models.Session{
				Key:          "user-1:web",
				Title:        "Field check-in",
				Capabilities: models.NewCapabilitySet("equipment", "weather"),
			}
			if err := store.Create(ctx, session); err != nil {
				t.Fatalf("create: %v", err)
			}
			if session.ID == "" {
				t.Fatal("create should assign an id")
			}

			got, err := store.Get(ctx, session.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !got.Capabilities.Has("weather") {
				t.Error("capabilities lost on round trip")
			}

			got, err = store.GetByKey(ctx, "user-1:web")
			if err != nil || got.ID != session.ID {
				t.Fatalf("get by key: %v, %v", got, err)
			}

			got.Capabilities.Disable("weather")
			got.Title = "Renamed"
			if err := store.Update(ctx, got); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, err = store.Get(ctx, session.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Capabilities.Has("weather") || got.Title != "Renamed" {
				t.Errorf("update not persisted: %+v", got)
			}

			if err := store.Delete(ctx, session.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := store.Get(ctx, session.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("get after delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_GetOrCreate(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := storeUnderTest(t, backend)

			first, err := store.GetOrCreate(ctx, "user-1:web")
			if err != nil {
				t.Fatalf("get or create: %v", err)
			}
			second, err := store.GetOrCreate(ctx, "user-1:web")
			if err != nil {
				t.Fatalf("get or create again: %v", err)
			}
			if first.ID != second.ID {
				t.Errorf("same key produced different sessions: %s vs %s", first.ID, second.ID)
			}
		})
	}
}

func TestStore_MessageHistory(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := storeUnderTest(t, backend)

			session, err := store.GetOrCreate(ctx, "user-1:web")
			if err != nil {
				t.Fatal(err)
			}

			msgs := []*models.Message{
				{Role: models.RoleUser, Content: "what fields do I have?"},
				{
					Role: models.RoleAssistant,
					ToolCalls: []models.ToolCall{
						{ID: "call-1", Name: "getFields", Input: []byte(`{}`)},
					},
				},
				{Role: models.RoleAssistant, Content: "You have 3 fields."},
			}
			for _, msg := range msgs {
				if err := store.AppendMessage(ctx, session.ID, msg); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			history, err := store.GetHistory(ctx, session.ID, 0)
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			if len(history) != 3 {
				t.Fatalf("history length = %d, want 3", len(history))
			}
			if history[0].Content != "what fields do I have?" {
				t.Errorf("history out of order: first = %q", history[0].Content)
			}
			if len(history[1].ToolCalls) != 1 || history[1].ToolCalls[0].Name != "getFields" {
				t.Errorf("tool calls lost on round trip: %+v", history[1])
			}

			recent, err := store.GetHistory(ctx, session.ID, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(recent) != 2 || recent[1].Content != "You have 3 fields." {
				t.Errorf("limited history wrong: %+v", recent)
			}
		})
	}
}

func TestStore_HistoryForUnknownSession(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			store := storeUnderTest(t, backend)
			_, err := store.GetHistory(context.Background(), "ghost", 0)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}
