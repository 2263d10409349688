package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// Contact is one followed pubkey with an optional relay hint and petname
type Contact struct {
	PubKey  string `yaml:"pubkey"`
	Relay   string `yaml:"relay,omitempty"`
	Petname string `yaml:"petname,omitempty"`
}

// ReadWrite flags of one relay in a contact-list relay map
type ReadWrite struct {
	Read  bool `json:"read" yaml:"read"`
	Write bool `json:"write" yaml:"write"`
}

// ContactList is the decoded form of a kind 3 event
type ContactList struct {
	Event   *nostr.Event
	Follows []Contact
	Relays  map[string]ReadWrite
}

// ParseContactList decodes a kind 3 event. A malformed relay map is ignored
// so a bad content field never hides the follow set.
func ParseContactList(event *nostr.Event) (*ContactList, error) {
	if event.Kind != int(KindContactList) {
		return nil, fmt.Errorf("expected kind 3, got %d", event.Kind)
	}

	list := &ContactList{
		Event:   event,
		Follows: make([]Contact, 0, len(event.Tags)),
	}

	seen := make(map[string]bool, len(event.Tags))
	for _, tag := range event.Tags {
		if len(tag) < 2 || tag[0] != "p" {
			continue
		}
		pubkey := strings.TrimSpace(tag[1])
		if pubkey == "" || seen[pubkey] {
			continue
		}
		seen[pubkey] = true

		contact := Contact{PubKey: pubkey}
		if len(tag) >= 3 {
			contact.Relay = tag[2]
		}
		if len(tag) >= 4 {
			contact.Petname = tag[3]
		}
		list.Follows = append(list.Follows, contact)
	}

	if relays, err := DecodeRelayMap(event.Content); err == nil {
		list.Relays = relays
	}

	return list, nil
}

// FollowSet returns the followed pubkeys as a set
func (cl *ContactList) FollowSet() map[string]struct{} {
	set := make(map[string]struct{}, len(cl.Follows))
	for _, c := range cl.Follows {
		set[c.PubKey] = struct{}{}
	}
	return set
}

// ContactTags builds one p tag per contact: ["p", pubkey, relay?, petname?]
func ContactTags(follows []Contact) nostr.Tags {
	tags := make(nostr.Tags, 0, len(follows))
	for _, c := range follows {
		tag := nostr.Tag{"p", c.PubKey}
		if c.Relay != "" || c.Petname != "" {
			tag = append(tag, c.Relay)
		}
		if c.Petname != "" {
			tag = append(tag, c.Petname)
		}
		tags = append(tags, tag)
	}
	return tags
}

// EncodeRelayMap serializes the relay map carried in a contact list's content
func EncodeRelayMap(relays map[string]ReadWrite) (string, error) {
	if relays == nil {
		return "", nil
	}
	data, err := json.Marshal(relays)
	if err != nil {
		return "", fmt.Errorf("failed to encode relay map: %w", err)
	}
	return string(data), nil
}

// DecodeRelayMap parses a contact list's content; empty content yields nil
func DecodeRelayMap(content string) (map[string]ReadWrite, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	var relays map[string]ReadWrite
	if err := json.Unmarshal([]byte(content), &relays); err != nil {
		return nil, fmt.Errorf("failed to decode relay map: %w", err)
	}
	return relays, nil
}
