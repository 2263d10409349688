package events

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestParseThreadInfo(t *testing.T) {
	tests := []struct {
		name     string
		tags     nostr.Tags
		root     string
		reply    string
		mentions int
	}{
		{
			name: "marked format",
			tags: nostr.Tags{
				{"e", "root-event-id", "", "root"},
				{"e", "parent-event-id", "", "reply"},
				{"e", "mention-event-id", "", "mention"},
			},
			root:     "root-event-id",
			reply:    "parent-event-id",
			mentions: 1,
		},
		{
			name:  "marked reply without root",
			tags:  nostr.Tags{{"e", "parent", "", "reply"}},
			root:  "parent",
			reply: "parent",
		},
		{
			name:  "positional one tag",
			tags:  nostr.Tags{{"e", "parent-id"}},
			root:  "parent-id",
			reply: "parent-id",
		},
		{
			name:  "positional two tags",
			tags:  nostr.Tags{{"e", "root-id"}, {"e", "reply-id"}},
			root:  "root-id",
			reply: "reply-id",
		},
		{
			name:     "positional many tags",
			tags:     nostr.Tags{{"e", "root-id"}, {"e", "m1"}, {"e", "m2"}, {"e", "reply-id"}},
			root:     "root-id",
			reply:    "reply-id",
			mentions: 2,
		},
		{
			name: "root post",
			tags: nostr.Tags{{"p", "someone"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseThreadInfo(&nostr.Event{Kind: 1, Tags: tt.tags})

			if info.RootEventID != tt.root {
				t.Errorf("Expected root %q, got %q", tt.root, info.RootEventID)
			}
			if info.ReplyToID != tt.reply {
				t.Errorf("Expected reply %q, got %q", tt.reply, info.ReplyToID)
			}
			if len(info.MentionedIDs) != tt.mentions {
				t.Errorf("Expected %d mentions, got %v", tt.mentions, info.MentionedIDs)
			}
			if info.IsReply() != (tt.reply != "") {
				t.Errorf("IsReply() = %v", info.IsReply())
			}
		})
	}
}

func TestReferencedEventIDs(t *testing.T) {
	evt := &nostr.Event{Tags: nostr.Tags{{"e", "a"}, {"p", "x"}, {"e", "b"}, {"e", "a"}, {"e", ""}}}

	ids := ReferencedEventIDs(evt)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected [a b], got %v", ids)
	}

	pubkeys := ReferencedPubKeys(evt)
	if len(pubkeys) != 1 || pubkeys[0] != "x" {
		t.Errorf("Expected [x], got %v", pubkeys)
	}
}
