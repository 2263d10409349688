package nostr

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/ops"
)

// ErrNoRelays is returned when a discovery call is given nothing to ask
var ErrNoRelays = errors.New("no relays provided for discovery")

// Sink receives fetched events, normally the cache
type Sink interface {
	Consume(ctx context.Context, evt *nostr.Event) (bool, error)
}

// Fetcher is the part of the client discovery needs
type Fetcher interface {
	FetchLatest(ctx context.Context, urls []string, filter nostr.Filter) *nostr.Event
	FetchEvents(ctx context.Context, urls []string, filter nostr.Filter) []*nostr.Event
}

// Discovery pulls the replaceable events that define a user's place in the
// graph (profile, contact list, NIP-65 relay list) into the sink
type Discovery struct {
	fetcher Fetcher
	sink    Sink
	logger  *ops.Logger
}

// NewDiscovery creates a new relay discovery instance
func NewDiscovery(fetcher Fetcher, sink Sink, logger *ops.Logger) *Discovery {
	if logger == nil {
		logger = ops.Default()
	}
	return &Discovery{
		fetcher: fetcher,
		sink:    sink,
		logger:  logger.WithComponent("discovery"),
	}
}

var bootstrapKinds = []events.Kind{events.KindMetadata, events.KindContactList, events.KindRelayList}

// BootstrapOwner fetches the newest profile, contact list and relay list of
// pubkey and hands them to the sink. It returns how many were consumed.
func (d *Discovery) BootstrapOwner(ctx context.Context, pubkey string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, ErrNoRelays
	}

	consumed := 0
	for _, kind := range bootstrapKinds {
		evt := d.fetcher.FetchLatest(ctx, urls, nostr.Filter{
			Kinds:   []int{int(kind)},
			Authors: []string{pubkey},
			Limit:   1,
		})
		if evt == nil {
			d.logger.Debug("nothing to bootstrap", "kind", kind.String(), "pubkey", pubkey)
			continue
		}

		ok, err := d.sink.Consume(ctx, evt)
		if err != nil {
			return consumed, fmt.Errorf("failed to consume %s: %w", kind, err)
		}
		if ok {
			consumed++
		}
	}

	return consumed, nil
}

// DiscoverRelayHintsForPubkeys fetches NIP-65 relay lists for many pubkeys
// in one request. Events the sink rejects are logged and skipped.
func (d *Discovery) DiscoverRelayHintsForPubkeys(ctx context.Context, pubkeys []string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, ErrNoRelays
	}
	if len(pubkeys) == 0 {
		return 0, nil
	}

	fetched := d.fetcher.FetchEvents(ctx, urls, nostr.Filter{
		Kinds:   []int{int(events.KindRelayList)},
		Authors: pubkeys,
	})

	consumed := 0
	for _, evt := range fetched {
		ok, err := d.sink.Consume(ctx, evt)
		if err != nil {
			d.logger.Debug("skipping relay list", "event_id", evt.ID, "error", err)
			continue
		}
		if ok {
			consumed++
		}
	}
	return consumed, nil
}
