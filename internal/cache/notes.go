package cache

import (
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/identity"
)

// consumeTextNote links a note to its NIP-10 reply and root targets. Other
// e tags are kept as mentions.
func (c *Cache) consumeTextNote(evt *nostr.Event) bool {
	thread := events.ParseThreadInfo(evt)

	var targets []string
	if thread.IsReply() {
		targets = lo.Uniq(lo.Compact([]string{thread.ReplyToID, thread.RootEventID}))
	}
	if !c.consumeNote(evt, c.notesFor(targets), "") {
		return false
	}
	c.GetOrCreateNote(evt.ID).setMentions(c.notesFor(thread.MentionedIDs))

	c.antiSpam.Check(evt)
	return true
}

func (c *Cache) consumeChannelMessage(evt *nostr.Event) bool {
	channel := channelRoot(evt)
	if channel == "" {
		return false
	}
	c.GetOrCreateChannel(channel)

	replies := make([]string, 0)
	for _, id := range events.ReferencedEventIDs(evt) {
		if id != channel {
			replies = append(replies, id)
		}
	}

	if !c.consumeNote(evt, c.notesFor(replies), channel) {
		return false
	}
	c.antiSpam.Check(evt)
	return true
}

func (c *Cache) consumeChannelMetadata(evt *nostr.Event) bool {
	ids := events.ReferencedEventIDs(evt)
	if len(ids) == 0 {
		return false
	}
	return c.GetOrCreateChannel(ids[0]).update(evt)
}

// channelRoot returns the e tag marked root, or the first e tag
func channelRoot(evt *nostr.Event) string {
	first := ""
	for _, tag := range evt.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		if len(tag) >= 4 && tag[3] == "root" {
			return tag[1]
		}
		if first == "" {
			first = tag[1]
		}
	}
	return first
}

func (c *Cache) consumeRepost(evt *nostr.Event) bool {
	targets := c.notesFor(events.ReferencedEventIDs(evt))
	if !c.consumeNote(evt, targets, "") {
		return false
	}

	boost, _ := c.Note(evt.ID)
	for _, target := range targets {
		target.addBoost(boost)
	}

	// the reposted event travels in the content
	var embedded nostr.Event
	if err := json.Unmarshal([]byte(evt.Content), &embedded); err == nil &&
		embedded.ID != "" && embedded.Kind != int(events.KindRepost) && identity.Verify(&embedded) {
		c.index(&embedded)
	}
	return true
}

func (c *Cache) consumeReaction(evt *nostr.Event) bool {
	targets := c.notesFor(events.ReferencedEventIDs(evt))
	if !c.consumeNote(evt, targets, "") {
		return false
	}

	reaction, _ := c.Note(evt.ID)
	for _, target := range targets {
		target.addReaction(reactionContent(evt), reaction)
	}
	return true
}

func (c *Cache) consumeReport(evt *nostr.Event) bool {
	targets := c.notesFor(events.ReferencedEventIDs(evt))
	if !c.consumeNote(evt, targets, "") {
		return false
	}

	report, _ := c.Note(evt.ID)
	for _, target := range targets {
		target.addReport(evt.PubKey, report)
	}
	for _, pubkey := range events.ReferencedPubKeys(evt) {
		c.GetOrCreateUser(pubkey).addReport(evt.PubKey, report)
	}
	return true
}

// consumeDeletion removes the targets authored by the deleter. Targets not
// seen yet are remembered so they are dropped when they arrive.
func (c *Cache) consumeDeletion(evt *nostr.Event) bool {
	if !c.consumeNote(evt, nil, "") {
		return false
	}

	for _, id := range events.ReferencedEventIDs(evt) {
		c.deleted.Store(id, evt.PubKey)

		note, ok := c.Note(id)
		if !ok {
			continue
		}
		target := note.Event()
		if target == nil || target.PubKey != evt.PubKey {
			continue
		}
		c.detach(note, target)
	}
	return true
}

// detach undoes what indexing target attached to other notes and users
func (c *Cache) detach(note *Note, target *nostr.Event) {
	refs := c.notesFor(events.ReferencedEventIDs(target))

	switch events.Kind(target.Kind) {
	case events.KindReaction:
		for _, ref := range refs {
			ref.removeReaction(reactionContent(target), note)
		}
	case events.KindRepost:
		for _, ref := range refs {
			ref.removeBoost(note)
		}
	case events.KindReport:
		for _, ref := range refs {
			ref.removeReport(target.PubKey, note)
		}
		for _, pubkey := range events.ReferencedPubKeys(target) {
			c.GetOrCreateUser(pubkey).removeReport(target.PubKey, note)
		}
	}

	note.unload()
}

func reactionContent(evt *nostr.Event) string {
	if evt.Content == "" {
		return events.ReactionLike
	}
	return evt.Content
}
