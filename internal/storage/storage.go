package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fiatjaf/eventstore"
	"github.com/fiatjaf/eventstore/badger"
	"github.com/fiatjaf/eventstore/slicestore"
	"github.com/fiatjaf/eventstore/sqlite3"
	"github.com/fiatjaf/khatru"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/config"
)

// replayLimit caps how many events a single query returns
const replayLimit = 100000

// Storage persists events through a khatru relay's handler chain backed by
// an eventstore backend
type Storage struct {
	relay  *khatru.Relay
	store  eventstore.Store
	config *config.Storage
}

// New creates a new Storage instance with the given configuration
func New(ctx context.Context, cfg *config.Storage) (*Storage, error) {
	store, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Driver, err)
	}

	relay := khatru.NewRelay()
	relay.StoreEvent = append(relay.StoreEvent, store.SaveEvent)
	relay.QueryEvents = append(relay.QueryEvents, store.QueryEvents)
	relay.DeleteEvent = append(relay.DeleteEvent, store.DeleteEvent)
	relay.ReplaceEvent = append(relay.ReplaceEvent, store.ReplaceEvent)

	return &Storage{
		relay:  relay,
		store:  store,
		config: cfg,
	}, nil
}

func newBackend(cfg *config.Storage) (eventstore.Store, error) {
	switch cfg.Driver {
	case "memory":
		return &slicestore.SliceStore{MaxLimit: replayLimit}, nil
	case "badger":
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		return &badger.BadgerBackend{Path: cfg.Path, MaxLimit: replayLimit}, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		return &sqlite3.SQLite3Backend{DatabaseURL: cfg.Path, QueryLimit: replayLimit}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// Relay returns the underlying Khatru relay instance
func (s *Storage) Relay() *khatru.Relay {
	return s.relay
}

// SaveEvent stores an event. Replaceable kinds go through the replace
// handlers so only the newest version per author is kept. Storing an event
// twice is not an error.
func (s *Storage) SaveEvent(ctx context.Context, event *nostr.Event) error {
	handlers := s.relay.StoreEvent
	if nostr.IsReplaceableKind(event.Kind) {
		handlers = s.relay.ReplaceEvent
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil && !errors.Is(err, eventstore.ErrDupEvent) {
			return fmt.Errorf("failed to store event: %w", err)
		}
	}

	return nil
}

// EventExists checks if an event already exists in storage
func (s *Storage) EventExists(ctx context.Context, eventID string) (bool, error) {
	events, err := s.QueryEvents(ctx, nostr.Filter{IDs: []string{eventID}, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}

// DeleteEvent deletes an event by ID
func (s *Storage) DeleteEvent(ctx context.Context, eventID string) error {
	events, err := s.QueryEvents(ctx, nostr.Filter{IDs: []string{eventID}, Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to query event before delete: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	for _, handler := range s.relay.DeleteEvent {
		if err := handler(ctx, events[0]); err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
	}

	return nil
}

// QueryEvents queries events using Nostr filters, newest first
func (s *Storage) QueryEvents(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	if len(s.relay.QueryEvents) == 0 {
		return nil, fmt.Errorf("no query handlers configured")
	}

	ch, err := s.relay.QueryEvents[0](ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var events []*nostr.Event
	for event := range ch {
		events = append(events, event)
	}

	return events, nil
}

// Close closes the backend
func (s *Storage) Close() error {
	s.store.Close()
	return nil
}
