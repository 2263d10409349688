package cache

import (
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/events"
)

// User is a pubkey in the object graph with what the cache learned about it
type User struct {
	pubkey string

	mu                sync.RWMutex
	metadata          *nostr.Event
	latestContactList *events.ContactList
	relayHints        []events.RelayHint
	relayListAt       nostr.Timestamp
	reports           map[string][]*Note // reporter pubkey -> report notes
}

func newUser(pubkey string) *User {
	return &User{pubkey: pubkey, reports: make(map[string][]*Note)}
}

// PubKey returns the hex public key
func (u *User) PubKey() string {
	return u.pubkey
}

// Metadata returns the newest kind 0 event seen for the user
func (u *User) Metadata() *nostr.Event {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.metadata
}

// LatestContactList returns the newest kind 3 event seen for the user
func (u *User) LatestContactList() *events.ContactList {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.latestContactList
}

// Follows returns the pubkeys in the latest contact list
func (u *User) Follows() map[string]struct{} {
	cl := u.LatestContactList()
	if cl == nil {
		return map[string]struct{}{}
	}
	return cl.FollowSet()
}

// IsFollowing reports whether pubkey is in the latest contact list
func (u *User) IsFollowing(pubkey string) bool {
	_, ok := u.Follows()[pubkey]
	return ok
}

// Relays returns the relay map published in the latest contact list
func (u *User) Relays() map[string]events.ReadWrite {
	cl := u.LatestContactList()
	if cl == nil {
		return nil
	}
	return cl.Relays
}

// RelayHints returns the NIP-65 relays of the user
func (u *User) RelayHints() []events.RelayHint {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]events.RelayHint(nil), u.relayHints...)
}

// ReportsBy returns the reports against the user filed by any of reporters
func (u *User) ReportsBy(reporters map[string]struct{}) []*Note {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return reportsBy(u.reports, reporters)
}

// ReportAuthorsBy returns which of reporters filed a report against the user
func (u *User) ReportAuthorsBy(reporters map[string]struct{}) []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return reportAuthorsBy(u.reports, reporters)
}

// HasReport reports whether reporter already filed a report of type reason
func (u *User) HasReport(reporter string, reason events.ReportType) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, report := range u.reports[reporter] {
		if evt := report.Event(); evt != nil && reportTypeFor(evt, "p", u.pubkey) == reason {
			return true
		}
	}
	return false
}

func (u *User) setMetadata(evt *nostr.Event) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.metadata != nil && u.metadata.CreatedAt >= evt.CreatedAt {
		return false
	}
	u.metadata = evt
	return true
}

func (u *User) setContactList(cl *events.ContactList) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.latestContactList != nil && u.latestContactList.Event.CreatedAt >= cl.Event.CreatedAt {
		return false
	}
	u.latestContactList = cl
	return true
}

func (u *User) setRelayHints(hints []events.RelayHint, at nostr.Timestamp) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.relayHints != nil && u.relayListAt >= at {
		return false
	}
	u.relayHints = hints
	u.relayListAt = at
	return true
}

func (u *User) addReport(reporter string, report *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reports[reporter] = appendUnique(u.reports[reporter], report)
}

func (u *User) removeReport(reporter string, report *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	removeFrom(u.reports, reporter, report)
}

func reportsBy(reports map[string][]*Note, reporters map[string]struct{}) []*Note {
	out := make([]*Note, 0)
	for reporter, notes := range reports {
		if _, ok := reporters[reporter]; ok {
			out = append(out, notes...)
		}
	}
	return out
}

func reportAuthorsBy(reports map[string][]*Note, reporters map[string]struct{}) []string {
	out := make([]string, 0)
	for reporter, notes := range reports {
		if _, ok := reporters[reporter]; ok && len(notes) > 0 {
			out = append(out, reporter)
		}
	}
	return out
}

// reportTypeFor returns the reason given in the tag of a report pointing at target
func reportTypeFor(evt *nostr.Event, tagName, target string) events.ReportType {
	for _, tag := range evt.Tags {
		if len(tag) >= 3 && tag[0] == tagName && tag[1] == target {
			return events.ReportType(tag[2])
		}
	}
	return ""
}

func appendUnique(notes []*Note, n *Note) []*Note {
	for _, existing := range notes {
		if existing == n {
			return notes
		}
	}
	return append(notes, n)
}

func removeFrom(m map[string][]*Note, key string, n *Note) {
	notes := m[key]
	for i, existing := range notes {
		if existing == n {
			notes = append(notes[:i:i], notes[i+1:]...)
			break
		}
	}
	if len(notes) == 0 {
		delete(m, key)
		return
	}
	m[key] = notes
}
