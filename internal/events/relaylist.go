package events

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
)

// RelayHint is one relay entry from a NIP-65 list
type RelayHint struct {
	PubKey   string
	Relay    string
	CanRead  bool
	CanWrite bool
}

// ParseRelayHints extracts relay hints from a NIP-65 kind 10002 event
func ParseRelayHints(event *nostr.Event) ([]RelayHint, error) {
	if event.Kind != int(KindRelayList) {
		return nil, fmt.Errorf("expected kind 10002, got %d", event.Kind)
	}

	hints := make([]RelayHint, 0, len(event.Tags))

	for _, tag := range event.Tags {
		if len(tag) < 2 || tag[0] != "r" {
			continue
		}

		relay := strings.TrimSpace(tag[1])
		if relay == "" {
			continue
		}

		hint := RelayHint{
			PubKey:   event.PubKey,
			Relay:    relay,
			CanRead:  true,
			CanWrite: true,
		}

		if len(tag) >= 3 {
			switch strings.ToLower(tag[2]) {
			case "read":
				hint.CanWrite = false
			case "write":
				hint.CanRead = false
			}
		}

		hints = append(hints, hint)
	}

	return hints, nil
}

// RelayListTags builds the r tags of a kind 10002 event. Relays that are
// neither readable nor writable are skipped.
func RelayListTags(hints []RelayHint) nostr.Tags {
	tags := make(nostr.Tags, 0, len(hints))

	for _, hint := range hints {
		if !hint.CanRead && !hint.CanWrite {
			continue
		}

		tag := nostr.Tag{"r", hint.Relay}
		if hint.CanRead && !hint.CanWrite {
			tag = append(tag, "read")
		} else if hint.CanWrite && !hint.CanRead {
			tag = append(tag, "write")
		}

		tags = append(tags, tag)
	}

	return tags
}

// HintsFromRelayMap converts a contact-list relay map into NIP-65 hints,
// sorted by URL
func HintsFromRelayMap(relays map[string]ReadWrite) []RelayHint {
	urls := lo.Keys(relays)
	slices.Sort(urls)

	return lo.Map(urls, func(url string, _ int) RelayHint {
		rw := relays[url]
		return RelayHint{Relay: url, CanRead: rw.Read, CanWrite: rw.Write}
	})
}
