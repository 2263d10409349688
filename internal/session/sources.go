package session

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/ops"
	"github.com/sandwichfarm/nostrum/internal/relays"
)

// feedLimit bounds the backlog each subscription asks for
const feedLimit = 500

// Sink receives events from the relays, normally the cache
type Sink interface {
	Consume(ctx context.Context, evt *nostr.Event) (bool, error)
}

// feedSource is a data source whose filter is recomputed from account state
// every time the transport restarts its subscriptions
type feedSource struct {
	name   string
	feed   relays.FeedSet
	filter func() (nostr.Filter, bool)
	sink   Sink
	logger *ops.Logger
}

func (s *feedSource) Feed() relays.FeedSet {
	return s.feed
}

func (s *feedSource) Filter() (nostr.Filter, bool) {
	return s.filter()
}

func (s *feedSource) Handle(ctx context.Context, evt *nostr.Event) {
	if _, err := s.sink.Consume(ctx, evt); err != nil {
		s.logger.Debug("dropping event", "source", s.name, "event_id", evt.ID, "error", err)
	}
}

func kinds(ks ...events.Kind) []int {
	return lo.Map(ks, func(k events.Kind, _ int) int { return int(k) })
}

// dataSources builds the subscriptions a session keeps open
func (s *Session) dataSources() []*feedSource {
	owner := s.account.PubKey()

	trusted := func() []string {
		return append(lo.Keys(s.account.UserProfile().Follows()), owner)
	}
	channels := func() ([]string, bool) {
		ids := s.account.FollowingChannels()
		return ids, len(ids) > 0
	}

	sources := []*feedSource{
		{
			name: "home",
			feed: relays.FeedFollows,
			filter: func() (nostr.Filter, bool) {
				return nostr.Filter{
					Authors: trusted(),
					Kinds: kinds(events.KindMetadata, events.KindTextNote, events.KindContactList,
						events.KindDeletion, events.KindRepost, events.KindReaction, events.KindRelayList),
					Limit: feedLimit,
				}, true
			},
		},
		{
			name: "reports",
			feed: relays.FeedFollows,
			filter: func() (nostr.Filter, bool) {
				return nostr.Filter{Authors: trusted(), Kinds: kinds(events.KindReport), Limit: feedLimit}, true
			},
		},
		{
			name: "dms-received",
			feed: relays.FeedPrivateDMs,
			filter: func() (nostr.Filter, bool) {
				return nostr.Filter{Kinds: kinds(events.KindEncryptedDM), Tags: nostr.TagMap{"p": {owner}}, Limit: feedLimit}, true
			},
		},
		{
			name: "dms-sent",
			feed: relays.FeedPrivateDMs,
			filter: func() (nostr.Filter, bool) {
				return nostr.Filter{Kinds: kinds(events.KindEncryptedDM), Authors: []string{owner}, Limit: feedLimit}, true
			},
		},
		{
			name: "channel-info",
			feed: relays.FeedPublicChats,
			filter: func() (nostr.Filter, bool) {
				ids, ok := channels()
				return nostr.Filter{Kinds: kinds(events.KindChannelCreate), IDs: ids}, ok
			},
		},
		{
			name: "channel-messages",
			feed: relays.FeedPublicChats,
			filter: func() (nostr.Filter, bool) {
				ids, ok := channels()
				return nostr.Filter{
					Kinds: kinds(events.KindChannelMetadata, events.KindChannelMessage),
					Tags:  nostr.TagMap{"e": ids},
					Limit: feedLimit,
				}, ok
			},
		},
	}

	for _, src := range sources {
		src.sink = s.cache
		src.logger = s.logger
	}
	return sources
}
