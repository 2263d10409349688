// Package cache holds the in-memory object graph of users, notes and
// channels built from consumed events.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/identity"
	"github.com/sandwichfarm/nostrum/internal/ops"
)

// ErrInvalidEvent is returned by Consume for events whose id or signature
// does not verify
var ErrInvalidEvent = errors.New("event failed verification")

// Store persists consumed events and replays them on Load
type Store interface {
	SaveEvent(ctx context.Context, evt *nostr.Event) error
	QueryEvents(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
}

// Cache is the object graph. All methods are safe for concurrent use.
type Cache struct {
	users    *xsync.MapOf[string, *User]
	notes    *xsync.MapOf[string, *Note]
	channels *xsync.MapOf[string, *Channel]
	deleted  *xsync.MapOf[string, string] // event id -> pubkey that deleted it

	antiSpam *AntiSpam
	store    Store
	logger   *ops.Logger

	listenersMu sync.RWMutex
	listeners   map[int]func(*User)
	nextID      int
}

// New creates an empty cache. store may be nil for a memory-only cache.
func New(store Store, quiet time.Duration, logger *ops.Logger) *Cache {
	if logger == nil {
		logger = ops.Default()
	}
	return &Cache{
		users:     xsync.NewMapOf[string, *User](),
		notes:     xsync.NewMapOf[string, *Note](),
		channels:  xsync.NewMapOf[string, *Channel](),
		deleted:   xsync.NewMapOf[string, string](),
		antiSpam:  NewAntiSpam(quiet),
		store:     store,
		logger:    logger.WithComponent("cache"),
		listeners: make(map[int]func(*User)),
	}
}

// AntiSpam returns the spam tracker fed by consumed messages
func (c *Cache) AntiSpam() *AntiSpam {
	return c.antiSpam
}

// GetOrCreateUser resolves a user, creating an empty one if needed
func (c *Cache) GetOrCreateUser(pubkey string) *User {
	u, _ := c.users.LoadOrCompute(pubkey, func() *User { return newUser(pubkey) })
	return u
}

// User returns a known user
func (c *Cache) User(pubkey string) (*User, bool) {
	return c.users.Load(pubkey)
}

// GetOrCreateNote resolves a note, creating a placeholder if needed
func (c *Cache) GetOrCreateNote(id string) *Note {
	n, _ := c.notes.LoadOrCompute(id, func() *Note { return newNote(id) })
	return n
}

// Note returns a known note
func (c *Cache) Note(id string) (*Note, bool) {
	return c.notes.Load(id)
}

// GetOrCreateChannel resolves a channel by its creation event id
func (c *Cache) GetOrCreateChannel(id string) *Channel {
	ch, _ := c.channels.LoadOrCompute(id, func() *Channel { return newChannel(id) })
	return ch
}

// OnContactList registers fn to run whenever a user's latest contact list
// changes. fn runs on the consuming goroutine and must not block.
func (c *Cache) OnContactList(fn func(*User)) (unsubscribe func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Cache) notifyContactList(u *User) {
	c.listenersMu.RLock()
	fns := make([]func(*User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Consume verifies evt, indexes it and persists it. It reports whether the
// event changed the graph.
func (c *Cache) Consume(ctx context.Context, evt *nostr.Event) (bool, error) {
	if !identity.Verify(evt) {
		return false, fmt.Errorf("%w: %s", ErrInvalidEvent, evt.ID)
	}

	changed := c.index(evt)
	if changed && c.store != nil {
		start := time.Now()
		err := c.store.SaveEvent(ctx, evt)
		c.logger.LogStorageOperation("save_event", time.Since(start), err)
		if err != nil {
			return true, fmt.Errorf("failed to persist event: %w", err)
		}
	}
	return changed, nil
}

// Load replays every stored event into the graph. Deletions are applied
// last so they find their targets.
func (c *Cache) Load(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	stored, err := c.store.QueryEvents(ctx, nostr.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to load stored events: %w", err)
	}

	loaded := 0
	var deletions []*nostr.Event
	for _, evt := range stored {
		if evt.Kind == int(events.KindDeletion) {
			deletions = append(deletions, evt)
			continue
		}
		if c.index(evt) {
			loaded++
		}
	}
	for _, evt := range deletions {
		if c.index(evt) {
			loaded++
		}
	}

	c.logger.Info("cache loaded from storage", "events", loaded, "stored", len(stored))
	return loaded, nil
}

func (c *Cache) index(evt *nostr.Event) bool {
	if by, ok := c.deleted.Load(evt.ID); ok && by == evt.PubKey {
		return false
	}

	kind, known := events.KindOf(evt.Kind)
	if !known {
		return false
	}

	switch kind {
	case events.KindMetadata:
		return c.GetOrCreateUser(evt.PubKey).setMetadata(evt)
	case events.KindContactList:
		return c.consumeContactList(evt)
	case events.KindRelayList:
		return c.consumeRelayList(evt)
	case events.KindTextNote:
		return c.consumeTextNote(evt)
	case events.KindEncryptedDM:
		return c.consumeNote(evt, c.notesFor(events.ReferencedEventIDs(evt)), "")
	case events.KindDeletion:
		return c.consumeDeletion(evt)
	case events.KindRepost:
		return c.consumeRepost(evt)
	case events.KindReaction:
		return c.consumeReaction(evt)
	case events.KindChannelCreate:
		return c.GetOrCreateChannel(evt.ID).update(evt)
	case events.KindChannelMetadata:
		return c.consumeChannelMetadata(evt)
	case events.KindChannelMessage:
		return c.consumeChannelMessage(evt)
	case events.KindReport:
		return c.consumeReport(evt)
	case events.KindZapRequest:
		// zap requests are handed to lightning services, not indexed
		return false
	default:
		return false
	}
}

func (c *Cache) consumeNote(evt *nostr.Event, replyTo []*Note, channel string) bool {
	note := c.GetOrCreateNote(evt.ID)
	return note.load(evt, c.GetOrCreateUser(evt.PubKey), replyTo, channel)
}

func (c *Cache) notesFor(ids []string) []*Note {
	notes := make([]*Note, 0, len(ids))
	for _, id := range ids {
		notes = append(notes, c.GetOrCreateNote(id))
	}
	return notes
}
