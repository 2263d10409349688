package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/events"
)

// Note is an event id in the object graph. It can exist before its event
// arrives, as the target of a reply, reaction or report.
type Note struct {
	id string

	mu        sync.RWMutex
	event     *nostr.Event
	author    *User
	replyTo   []*Note
	mentions  []*Note
	channel   string
	reports   map[string][]*Note // reporter pubkey -> report notes
	reactions map[string][]*Note // reaction content -> reaction notes
	boosts    []*Note
}

func newNote(id string) *Note {
	return &Note{
		id:        id,
		reports:   make(map[string][]*Note),
		reactions: make(map[string][]*Note),
	}
}

// ID returns the hex event id
func (n *Note) ID() string {
	return n.id
}

// Event returns the event, or nil if only a reference has been seen
func (n *Note) Event() *nostr.Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.event
}

// Author returns the author, or nil if the event has not arrived
func (n *Note) Author() *User {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.author
}

// ReplyTo returns the notes this note references: reply targets, or the
// reposted note for a repost
func (n *Note) ReplyTo() []*Note {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Note(nil), n.replyTo...)
}

// Mentions returns the notes a text note cites without replying to them
func (n *Note) Mentions() []*Note {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Note(nil), n.mentions...)
}

// Channel returns the channel id of a channel message
func (n *Note) Channel() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.channel
}

// Kind returns the event kind; ok is false until the event arrives
func (n *Note) Kind() (events.Kind, bool) {
	evt := n.Event()
	if evt == nil {
		return 0, false
	}
	return events.Kind(evt.Kind), true
}

// IsRepost reports whether the note is a kind 6 repost
func (n *Note) IsRepost() bool {
	k, ok := n.Kind()
	return ok && k == events.KindRepost
}

// ReportsBy returns the reports against the note filed by any of reporters
func (n *Note) ReportsBy(reporters map[string]struct{}) []*Note {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return reportsBy(n.reports, reporters)
}

// ReportAuthorsBy returns which of reporters filed a report against the note
func (n *Note) ReportAuthorsBy(reporters map[string]struct{}) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return reportAuthorsBy(n.reports, reporters)
}

// HasReport reports whether reporter already reported the note
func (n *Note) HasReport(reporter string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.reports[reporter]) > 0
}

// ReactedBy returns the reactions with content sent by pubkey
func (n *Note) ReactedBy(pubkey, content string) []*Note {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Note, 0)
	for _, reaction := range n.reactions[content] {
		if evt := reaction.Event(); evt != nil && evt.PubKey == pubkey {
			out = append(out, reaction)
		}
	}
	return out
}

// HasReacted reports whether pubkey reacted with content
func (n *Note) HasReacted(pubkey, content string) bool {
	return len(n.ReactedBy(pubkey, content)) > 0
}

// BoostedBy returns the reposts of this note by pubkey
func (n *Note) BoostedBy(pubkey string) []*Note {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Note, 0)
	for _, boost := range n.boosts {
		if evt := boost.Event(); evt != nil && evt.PubKey == pubkey {
			out = append(out, boost)
		}
	}
	return out
}

// HasBoostedInTheLast reports whether pubkey reposted this note within window of now
func (n *Note) HasBoostedInTheLast(pubkey string, window time.Duration, now time.Time) bool {
	since := nostr.Timestamp(now.Add(-window).Unix())
	for _, boost := range n.BoostedBy(pubkey) {
		if boost.Event().CreatedAt > since {
			return true
		}
	}
	return false
}

// ReactionStat is a reaction and how many times it was sent
type ReactionStat struct {
	Emoji string
	Count int
}

// TopReactions returns the reactions to the note, most popular first
func (n *Note) TopReactions(limit int) []ReactionStat {
	n.mu.RLock()
	stats := make([]ReactionStat, 0, len(n.reactions))
	for emoji, notes := range n.reactions {
		stats = append(stats, ReactionStat{Emoji: emoji, Count: len(notes)})
	}
	n.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Emoji < stats[j].Emoji
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

func (n *Note) load(evt *nostr.Event, author *User, replyTo []*Note, channel string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.event != nil {
		return false
	}
	n.event = evt
	n.author = author
	n.replyTo = replyTo
	n.channel = channel
	return true
}

func (n *Note) unload() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.event = nil
	n.replyTo = nil
	n.mentions = nil
}

func (n *Note) setMentions(mentions []*Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mentions = mentions
}

func (n *Note) addReport(reporter string, report *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports[reporter] = appendUnique(n.reports[reporter], report)
}

func (n *Note) removeReport(reporter string, report *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	removeFrom(n.reports, reporter, report)
}

func (n *Note) addReaction(content string, reaction *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reactions[content] = appendUnique(n.reactions[content], reaction)
}

func (n *Note) removeReaction(content string, reaction *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	removeFrom(n.reactions, content, reaction)
}

func (n *Note) addBoost(boost *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.boosts = appendUnique(n.boosts, boost)
}

func (n *Note) removeBoost(boost *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.boosts {
		if existing == boost {
			n.boosts = append(n.boosts[:i:i], n.boosts[i+1:]...)
			return
		}
	}
}
