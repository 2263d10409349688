package events

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestParseContactList(t *testing.T) {
	event := &nostr.Event{
		Kind: 3,
		Tags: nostr.Tags{
			{"p", "pk1"},
			{"p", "pk2", "wss://hint.test", "alice"},
			{"p", "pk1"},
			{"e", "ignored"},
			{"p", ""},
		},
		Content: `{"wss://a.test":{"read":true,"write":false},"wss://b.test":{"read":true,"write":true}}`,
	}

	list, err := ParseContactList(event)
	if err != nil {
		t.Fatalf("ParseContactList() error = %v", err)
	}

	if len(list.Follows) != 2 {
		t.Fatalf("Expected 2 follows, got %v", list.Follows)
	}
	if list.Follows[1].Relay != "wss://hint.test" || list.Follows[1].Petname != "alice" {
		t.Errorf("Unexpected second contact: %+v", list.Follows[1])
	}
	if len(list.Relays) != 2 {
		t.Fatalf("Expected 2 relays, got %v", list.Relays)
	}
	if rw := list.Relays["wss://a.test"]; !rw.Read || rw.Write {
		t.Errorf("Expected read-only relay, got %+v", rw)
	}
	if _, ok := list.FollowSet()["pk2"]; !ok {
		t.Error("Expected pk2 in follow set")
	}
}

func TestParseContactListTolerance(t *testing.T) {
	list, err := ParseContactList(&nostr.Event{Kind: 3, Tags: nostr.Tags{{"p", "pk1"}}, Content: "not json"})
	if err != nil {
		t.Fatalf("ParseContactList() error = %v", err)
	}
	if list.Relays != nil {
		t.Errorf("Expected nil relays for malformed content, got %v", list.Relays)
	}
	if len(list.Follows) != 1 {
		t.Errorf("Expected follows to survive malformed content, got %v", list.Follows)
	}

	if _, err := ParseContactList(&nostr.Event{Kind: 1}); err == nil {
		t.Error("Expected error for wrong kind")
	}
}

func TestRelayMapRoundTrip(t *testing.T) {
	relays := map[string]ReadWrite{
		"wss://a.test": {Read: true},
		"wss://b.test": {Read: true, Write: true},
	}

	content, err := EncodeRelayMap(relays)
	if err != nil {
		t.Fatalf("EncodeRelayMap() error = %v", err)
	}
	decoded, err := DecodeRelayMap(content)
	if err != nil {
		t.Fatalf("DecodeRelayMap() error = %v", err)
	}
	if len(decoded) != 2 || decoded["wss://b.test"] != relays["wss://b.test"] {
		t.Errorf("Unexpected decoded map: %v", decoded)
	}

	if content, _ := EncodeRelayMap(nil); content != "" {
		t.Errorf("Expected empty content for nil map, got %q", content)
	}
}
