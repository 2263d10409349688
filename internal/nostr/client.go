package nostr

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sandwichfarm/nostrum/internal/config"
	"github.com/sandwichfarm/nostrum/internal/ops"
	"github.com/sandwichfarm/nostrum/internal/relays"
)

// ErrNoWriteRelays is returned by Send when no connected relay accepts writes
var ErrNoWriteRelays = errors.New("no write relays connected")

// DataSource is a feed the client keeps a live subscription for. Filter is
// asked again every time the client restarts its subscriptions; returning
// false skips the source for that round.
type DataSource interface {
	Feed() relays.FeedSet
	Filter() (nostr.Filter, bool)
	Handle(ctx context.Context, evt *nostr.Event)
}

// Client is the relay transport: it owns the connection pool, publishes
// signed events to write relays and feeds registered data sources
type Client struct {
	pool    *nostr.SimplePool
	timeout time.Duration
	logger  *ops.Logger

	sources *xsync.MapOf[string, DataSource]

	mu           sync.Mutex
	current      []relays.Relay
	searchRelays []string
	connected    map[string]*nostr.Relay
	stopWatching context.CancelFunc
}

// New creates a new Nostr client with the given configuration
func New(ctx context.Context, policy *config.RelayPolicy, logger *ops.Logger) *Client {
	if logger == nil {
		logger = ops.Default()
	}

	timeout := 30 * time.Second
	if policy != nil && policy.ConnectTimeoutMs > 0 {
		timeout = time.Duration(policy.ConnectTimeoutMs) * time.Millisecond
	}

	return &Client{
		pool:      nostr.NewSimplePool(ctx),
		timeout:   timeout,
		logger:    logger.WithComponent("transport"),
		sources:   xsync.NewMapOf[string, DataSource](),
		connected: make(map[string]*nostr.Relay),
	}
}

// Pool returns the underlying SimplePool for advanced operations
func (c *Client) Pool() *nostr.SimplePool {
	return c.pool
}

// Timeout returns the per-request timeout used for fetches
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Register adds a data source and returns the id to unregister it with.
// The source is picked up on the next RequestAndWatch.
func (c *Client) Register(src DataSource) string {
	id := uuid.NewString()
	c.sources.Store(id, src)
	return id
}

// Unregister removes a data source
func (c *Client) Unregister(id string) {
	c.sources.Delete(id)
}

// Relays returns the relay set the client is configured for
func (c *Client) Relays() []relays.Relay {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]relays.Relay(nil), c.current...)
}

// IsSameRelaySetConfig reports whether desired matches the connected set
func (c *Client) IsSameRelaySetConfig(desired []relays.Relay) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return relays.SameRelaySet(c.current, desired)
}

// Connect opens connections to every relay in the set. Relays that fail to
// connect are logged and skipped; an error is returned only when none of
// them could be reached. The set is recorded only once at least one relay
// connected, so a failed Connect leaves IsSameRelaySetConfig false and the
// next reconcile retries.
func (c *Client) Connect(ctx context.Context, set []relays.Relay, searchRelays []string) error {
	urls := append(relays.URLs(set, nil), searchRelays...)
	var lastErr error
	ok := 0
	for _, url := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relay, err := c.pool.EnsureRelay(url)
		c.logger.LogRelayConnection(url, err == nil, err)
		if err != nil {
			lastErr = err
			continue
		}

		c.mu.Lock()
		c.connected[nostr.NormalizeURL(url)] = relay
		c.mu.Unlock()
		ok++
	}

	if ok == 0 && lastErr != nil {
		return fmt.Errorf("failed to connect to any relay: %w", lastErr)
	}

	c.mu.Lock()
	c.current = append([]relays.Relay(nil), set...)
	c.searchRelays = append([]string(nil), searchRelays...)
	c.mu.Unlock()
	return nil
}

// Disconnect stops all subscriptions and closes every open connection
func (c *Client) Disconnect() {
	c.mu.Lock()
	stop := c.stopWatching
	c.stopWatching = nil
	connected := c.connected
	c.connected = make(map[string]*nostr.Relay)
	c.current = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	for url, relay := range connected {
		if err := relay.Close(); err != nil {
			c.logger.Debug("relay close failed", "relay", url, "error", err)
		}
		c.logger.LogRelayConnection(url, false, nil)
	}
}

// RequestAndWatch (re)starts one subscription per registered data source on
// the read relays serving its feed
func (c *Client) RequestAndWatch(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.stopWatching != nil {
		c.stopWatching()
	}
	c.stopWatching = cancel
	current := append([]relays.Relay(nil), c.current...)
	search := append([]string(nil), c.searchRelays...)
	c.mu.Unlock()

	c.sources.Range(func(id string, src DataSource) bool {
		filter, ok := src.Filter()
		if !ok {
			return true
		}

		feed := src.Feed()
		urls := relays.URLs(current, func(r relays.Relay) bool { return r.Read && r.Feeds.Has(feed) })
		if src.Feed().Has(relays.FeedSearch) {
			urls = append(urls, search...)
		}
		if len(urls) == 0 {
			c.logger.Debug("no relays for data source", "source", id, "feeds", src.Feed().Names())
			return true
		}

		go c.watch(watchCtx, id, src, urls, filter)
		return true
	})
}

func (c *Client) watch(ctx context.Context, id string, src DataSource, urls []string, filter nostr.Filter) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields("source", id).LogPanic(r, string(debug.Stack()))
		}
	}()

	for ie := range c.pool.SubscribeMany(ctx, urls, filter) {
		if ie.Event != nil {
			src.Handle(ctx, ie.Event)
		}
	}
}

// Send publishes the event to every connected write relay. It succeeds when
// at least one relay accepts the event.
func (c *Client) Send(ctx context.Context, evt *nostr.Event) error {
	c.mu.Lock()
	urls := relays.WriteURLs(c.current)
	c.mu.Unlock()

	if len(urls) == 0 {
		c.logger.LogPublish(evt.ID, evt.Kind, 0, ErrNoWriteRelays)
		return ErrNoWriteRelays
	}

	var lastErr error
	successCount := 0
	for result := range c.pool.PublishMany(ctx, urls, *evt) {
		if result.Error != nil {
			lastErr = result.Error
		} else {
			successCount++
		}
	}

	if successCount == 0 && lastErr != nil {
		err := fmt.Errorf("failed to publish to any relay: %w", lastErr)
		c.logger.LogPublish(evt.ID, evt.Kind, len(urls), err)
		return err
	}

	c.logger.LogPublish(evt.ID, evt.Kind, successCount, nil)
	return nil
}

// FetchEvents fetches events matching the filter from the given relays,
// returning once every relay has sent EOSE or the timeout expires
func (c *Client) FetchEvents(ctx context.Context, urls []string, filter nostr.Filter) []*nostr.Event {
	if len(urls) == 0 {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	events := make([]*nostr.Event, 0)
	seen := make(map[string]struct{})
	for ie := range c.pool.FetchMany(fetchCtx, urls, filter) {
		if ie.Event == nil {
			continue
		}
		if _, dup := seen[ie.Event.ID]; dup {
			continue
		}
		seen[ie.Event.ID] = struct{}{}
		events = append(events, ie.Event)
	}
	return events
}

// FetchLatest returns the newest event matching the filter, or nil
func (c *Client) FetchLatest(ctx context.Context, urls []string, filter nostr.Filter) *nostr.Event {
	var latest *nostr.Event
	for _, evt := range c.FetchEvents(ctx, urls, filter) {
		if latest == nil || evt.CreatedAt > latest.CreatedAt {
			latest = evt
		}
	}
	return latest
}

// FetchEvent fetches a single event by ID from the given relays
func (c *Client) FetchEvent(ctx context.Context, urls []string, eventID string) (*nostr.Event, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := c.pool.QuerySingle(fetchCtx, urls, nostr.Filter{IDs: []string{eventID}})
	if result == nil || result.Event == nil {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	return result.Event, nil
}

// Close closes all relay connections
func (c *Client) Close() {
	c.Disconnect()
	c.pool.Close("client shutting down")
}
