package relays

import (
	"slices"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
	"github.com/sandwichfarm/nostrum/internal/config"
	"github.com/sandwichfarm/nostrum/internal/events"
)

// FeedSet is a set of feed types a relay serves
type FeedSet uint8

const (
	FeedFollows FeedSet = 1 << iota
	FeedPublicChats
	FeedPrivateDMs
	FeedGlobal
	FeedSearch

	AllFeeds = FeedFollows | FeedPublicChats | FeedPrivateDMs | FeedGlobal | FeedSearch
)

var feedNames = []struct {
	feed FeedSet
	name string
}{
	{FeedFollows, config.FeedFollows},
	{FeedPublicChats, config.FeedPublicChats},
	{FeedPrivateDMs, config.FeedPrivateDMs},
	{FeedGlobal, config.FeedGlobal},
	{FeedSearch, config.FeedSearch},
}

// ParseFeedSet converts feed type names into a set. Unknown names are ignored.
func ParseFeedSet(names []string) FeedSet {
	var set FeedSet
	for _, name := range names {
		for _, fn := range feedNames {
			if strings.EqualFold(name, fn.name) {
				set |= fn.feed
			}
		}
	}
	return set
}

// Has reports whether every feed in f is in s
func (s FeedSet) Has(f FeedSet) bool {
	return s&f == f
}

// Names returns the feed type names in display order
func (s FeedSet) Names() []string {
	names := make([]string, 0, len(feedNames))
	for _, fn := range feedNames {
		if s.Has(fn.feed) {
			names = append(names, fn.name)
		}
	}
	return names
}

// RelaySetupInfo is a relay as the user configured it locally
type RelaySetupInfo struct {
	URL       string   `yaml:"url"`
	Read      bool     `yaml:"read"`
	Write     bool     `yaml:"write"`
	FeedTypes []string `yaml:"feed_types"`
}

// Relay is one entry of the set the transport connects to
type Relay struct {
	URL   string
	Read  bool
	Write bool
	Feeds FeedSet
}

// Relay converts the setup into a connection entry
func (r RelaySetupInfo) Relay() Relay {
	return Relay{URL: r.URL, Read: r.Read, Write: r.Write, Feeds: ParseFeedSet(r.FeedTypes)}
}

// FromConfig converts the configured local relays
func FromConfig(local []config.RelaySetup) []RelaySetupInfo {
	return lo.Map(local, func(r config.RelaySetup, _ int) RelaySetupInfo {
		return RelaySetupInfo{
			URL:       r.URL,
			Read:      r.Read,
			Write:     r.Write,
			FeedTypes: append([]string(nil), r.FeedTypes...),
		}
	})
}

// ReadWriteMap converts local relays into a contact-list relay map
func ReadWriteMap(local []RelaySetupInfo) map[string]events.ReadWrite {
	return lo.SliceToMap(local, func(r RelaySetupInfo) (string, events.ReadWrite) {
		return r.URL, events.ReadWrite{Read: r.Read, Write: r.Write}
	})
}

// Desired returns the relays to connect to: the owner's published relay map
// when it is non-empty, otherwise the local configuration. Published entries
// take the feed types of the local entry with the same URL, or all feeds.
func Desired(published map[string]events.ReadWrite, local []RelaySetupInfo) []Relay {
	if len(published) == 0 {
		return lo.Map(local, func(r RelaySetupInfo, _ int) Relay { return r.Relay() })
	}

	localFeeds := make(map[string]FeedSet, len(local))
	for _, r := range local {
		localFeeds[normalize(r.URL)] = ParseFeedSet(r.FeedTypes)
	}

	urls := lo.Keys(published)
	slices.Sort(urls)

	desired := make([]Relay, 0, len(urls))
	for _, url := range urls {
		rw := published[url]
		feeds, ok := localFeeds[normalize(url)]
		if !ok {
			feeds = AllFeeds
		}
		desired = append(desired, Relay{URL: url, Read: rw.Read, Write: rw.Write, Feeds: feeds})
	}
	return desired
}

// SameRelaySet compares two relay sets by value, ignoring order and URL
// formatting differences
func SameRelaySet(a, b []Relay) bool {
	left, right := index(a), index(b)
	if len(left) != len(right) {
		return false
	}
	for url, relay := range left {
		other, ok := right[url]
		if !ok || other != relay {
			return false
		}
	}
	return true
}

// URLs returns the relay URLs matching filter
func URLs(relays []Relay, filter func(Relay) bool) []string {
	return lo.FilterMap(relays, func(r Relay, _ int) (string, bool) {
		return r.URL, filter == nil || filter(r)
	})
}

// WriteURLs returns the relays events are published to
func WriteURLs(relays []Relay) []string {
	return URLs(relays, func(r Relay) bool { return r.Write })
}

// ReadURLs returns the relays subscriptions are opened on
func ReadURLs(relays []Relay) []string {
	return URLs(relays, func(r Relay) bool { return r.Read })
}

func index(relays []Relay) map[string]Relay {
	m := make(map[string]Relay, len(relays))
	for _, r := range relays {
		r.URL = normalize(r.URL)
		m[r.URL] = r
	}
	return m
}

func normalize(url string) string {
	return nostr.NormalizeURL(url)
}
