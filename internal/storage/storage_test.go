package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/config"
)

func setupTestStorage(t *testing.T, driver string) *Storage {
	t.Helper()

	cfg := &config.Storage{Driver: driver}
	switch driver {
	case "sqlite":
		cfg.Path = filepath.Join(t.TempDir(), "events.db")
	case "badger":
		cfg.Path = filepath.Join(t.TempDir(), "events")
	}

	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func signedEvent(t *testing.T, sk string, kind int, content string, ts nostr.Timestamp) *nostr.Event {
	t.Helper()

	evt := &nostr.Event{
		CreatedAt: ts,
		Kind:      kind,
		Tags:      nostr.Tags{},
		Content:   content,
	}
	if err := evt.Sign(sk); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return evt
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Storage
		wantErr bool
	}{
		{name: "memory", cfg: &config.Storage{Driver: "memory"}},
		{name: "sqlite", cfg: &config.Storage{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}},
		{name: "badger", cfg: &config.Storage{Driver: "badger", Path: filepath.Join(t.TempDir(), "badger")}},
		{name: "unsupported driver", cfg: &config.Storage{Driver: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if s != nil {
				defer s.Close()
				if s.Relay() == nil {
					t.Error("Expected a relay handler chain")
				}
			}
		})
	}
}

func TestSaveAndQueryEvents(t *testing.T) {
	for _, driver := range []string{"memory", "sqlite", "badger"} {
		t.Run(driver, func(t *testing.T) {
			s := setupTestStorage(t, driver)
			ctx := context.Background()
			sk := nostr.GeneratePrivateKey()

			event := signedEvent(t, sk, 1, "Hello, Nostr!", 1000)
			if err := s.SaveEvent(ctx, event); err != nil {
				t.Fatalf("SaveEvent() error = %v", err)
			}
			// saving twice is fine
			if err := s.SaveEvent(ctx, event); err != nil {
				t.Fatalf("SaveEvent() duplicate error = %v", err)
			}

			events, err := s.QueryEvents(ctx, nostr.Filter{IDs: []string{event.ID}})
			if err != nil {
				t.Fatalf("QueryEvents() error = %v", err)
			}
			if len(events) != 1 || events[0].Content != "Hello, Nostr!" {
				t.Fatalf("Expected the stored event, got %v", events)
			}

			exists, err := s.EventExists(ctx, event.ID)
			if err != nil || !exists {
				t.Errorf("EventExists() = (%v, %v), want (true, nil)", exists, err)
			}

			if err := s.DeleteEvent(ctx, event.ID); err != nil {
				t.Fatalf("DeleteEvent() error = %v", err)
			}
			if exists, _ := s.EventExists(ctx, event.ID); exists {
				t.Error("Expected event to be deleted")
			}
			if err := s.DeleteEvent(ctx, event.ID); err != nil {
				t.Errorf("Deleting a missing event should be a no-op, got %v", err)
			}
		})
	}
}

func TestSaveReplaceableKeepsNewest(t *testing.T) {
	s := setupTestStorage(t, "memory")
	ctx := context.Background()
	sk := nostr.GeneratePrivateKey()

	older := signedEvent(t, sk, 3, "", 1000)
	newer := signedEvent(t, sk, 3, "", 2000)

	if err := s.SaveEvent(ctx, newer); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}
	if err := s.SaveEvent(ctx, older); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}

	events, err := s.QueryEvents(ctx, nostr.Filter{Kinds: []int{3}})
	if err != nil {
		t.Fatalf("QueryEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].ID != newer.ID {
		t.Errorf("Expected only the newest contact list, got %v", events)
	}
}

type snapshotDoc struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

func TestSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "account.yaml")
	f := NewSnapshotFile(path)

	var missing snapshotDoc
	found, err := f.Load(&missing)
	if err != nil || found {
		t.Fatalf("Load() on missing file = (%v, %v), want (false, nil)", found, err)
	}

	if err := f.Save(snapshotDoc{Name: "first", Items: []string{"a"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := f.Save(snapshotDoc{Name: "second", Items: []string{"a", "b"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got snapshotDoc
	found, err = f.Load(&got)
	if err != nil || !found {
		t.Fatalf("Load() = (%v, %v), want (true, nil)", found, err)
	}
	if got.Name != "second" || len(got.Items) != 2 {
		t.Errorf("Unexpected snapshot: %+v", got)
	}
}
