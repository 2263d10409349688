// Package moderation decides which users and notes are acceptable to show,
// from hide lists and reports filed by the owner's follows.
package moderation

import (
	"sort"

	"github.com/samber/lo"
	"github.com/sandwichfarm/nostrum/internal/cache"
	"github.com/sasha-s/go-deadlock"
)

// Policy holds the moderation thresholds
type Policy struct {
	// ReportThreshold is how many distinct followed reporters make a user
	// or note unacceptable
	ReportThreshold int
	// SpamThreshold is how many duplicated messages get a sender hidden for
	// the session
	SpamThreshold int
}

// DefaultPolicy returns the thresholds used when none are configured
func DefaultPolicy() Policy {
	return Policy{ReportThreshold: 5, SpamThreshold: 5}
}

// Graph is the part of the cache the engine reads
type Graph interface {
	GetOrCreateUser(pubkey string) *cache.User
}

// Engine holds the hidden-user sets of one account
type Engine struct {
	owner  string
	graph  Graph
	policy Policy

	mu        deadlock.RWMutex
	hidden    map[string]struct{}
	transient map[string]struct{}
}

// NewEngine creates an engine for owner with the persisted hidden users
func NewEngine(owner string, graph Graph, policy Policy, hidden []string) *Engine {
	if policy.ReportThreshold <= 0 {
		policy.ReportThreshold = DefaultPolicy().ReportThreshold
	}
	if policy.SpamThreshold <= 0 {
		policy.SpamThreshold = DefaultPolicy().SpamThreshold
	}
	return &Engine{
		owner:     owner,
		graph:     graph,
		policy:    policy,
		hidden:    lo.SliceToMap(hidden, func(pk string) (string, struct{}) { return pk, struct{}{} }),
		transient: make(map[string]struct{}),
	}
}

// Policy returns the thresholds in use
func (e *Engine) Policy() Policy {
	return e.policy
}

// Hide adds pubkey to the persistent hidden set
func (e *Engine) Hide(pubkey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden[pubkey] = struct{}{}
}

// Show removes pubkey from both hidden sets
func (e *Engine) Show(pubkey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.hidden, pubkey)
	delete(e.transient, pubkey)
}

// AddTransient hides pubkeys for this session only
func (e *Engine) AddTransient(pubkeys ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, pk := range pubkeys {
		e.transient[pk] = struct{}{}
	}
}

// ClearTransient empties the session hidden set
func (e *Engine) ClearTransient() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transient = make(map[string]struct{})
}

// IsHidden reports whether pubkey is in either hidden set
func (e *Engine) IsHidden(pubkey string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, hidden := e.hidden[pubkey]
	_, transient := e.transient[pubkey]
	return hidden || transient
}

// IsTransientlyHidden reports whether pubkey is in the session hidden set
func (e *Engine) IsTransientlyHidden(pubkey string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.transient[pubkey]
	return ok
}

// Hidden returns the persistent hidden set, sorted
func (e *Engine) Hidden() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedKeys(e.hidden)
}

// AllHidden returns the union of both hidden sets, sorted
func (e *Engine) AllHidden() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	all := lo.Union(lo.Keys(e.hidden), lo.Keys(e.transient))
	sort.Strings(all)
	return all
}

func (e *Engine) ownerUser() *cache.User {
	return e.graph.GetOrCreateUser(e.owner)
}

func (e *Engine) onlyOwner() map[string]struct{} {
	return map[string]struct{}{e.owner: {}}
}

// IsAcceptableUser is false for hidden users, users the owner reported, and
// users reported by at least ReportThreshold distinct follows
func (e *Engine) IsAcceptableUser(user *cache.User) bool {
	if e.IsHidden(user.PubKey()) {
		return false
	}
	if len(user.ReportsBy(e.onlyOwner())) > 0 {
		return false
	}
	return len(user.ReportAuthorsBy(e.ownerUser().Follows())) < e.policy.ReportThreshold
}

// IsAcceptableDirect judges the note by its own reports only
func (e *Engine) IsAcceptableDirect(note *cache.Note) bool {
	if len(note.ReportsBy(e.onlyOwner())) > 0 {
		return false
	}
	return len(note.ReportAuthorsBy(e.ownerUser().Follows())) < e.policy.ReportThreshold
}

// IsAcceptableNote requires an acceptable author, an acceptable note and,
// for a repost, at least one directly acceptable inner note
func (e *Engine) IsAcceptableNote(note *cache.Note) bool {
	if author := note.Author(); author != nil && !e.IsAcceptableUser(author) {
		return false
	}
	if !e.IsAcceptableDirect(note) {
		return false
	}
	if !note.IsRepost() {
		return true
	}
	return lo.SomeBy(note.ReplyTo(), e.IsAcceptableDirect)
}

// RelevantReports returns the reports filed by the owner or their follows
// against the note, its author and, for a repost, the reposted notes and
// their authors. Nested reposts are not expanded further.
func (e *Engine) RelevantReports(note *cache.Note) []*cache.Note {
	trusted := e.ownerUser().Follows()
	trusted[e.owner] = struct{}{}

	reports := collectReports(note, trusted)
	if note.IsRepost() {
		for _, inner := range note.ReplyTo() {
			reports = append(reports, collectReports(inner, trusted)...)
		}
	}

	reports = lo.UniqBy(reports, func(n *cache.Note) string { return n.ID() })
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID() < reports[j].ID() })
	return reports
}

func collectReports(note *cache.Note, trusted map[string]struct{}) []*cache.Note {
	reports := note.ReportsBy(trusted)
	if author := note.Author(); author != nil {
		reports = append(reports, author.ReportsBy(trusted)...)
	}
	return reports
}

// ApplySpamSnapshot hides for the session every sender with at least
// SpamThreshold duplicated messages, unless it is the owner, someone the
// owner follows, or already hidden. It returns the newly hidden pubkeys.
func (e *Engine) ApplySpamSnapshot(records []cache.SpamRecord) []string {
	follows := e.ownerUser().Follows()

	candidates := lo.FilterMap(records, func(r cache.SpamRecord, _ int) (string, bool) {
		if len(r.DuplicatedMessages) < e.policy.SpamThreshold || r.PubKey == e.owner {
			return "", false
		}
		_, followed := follows[r.PubKey]
		return r.PubKey, !followed
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	added := make([]string, 0)
	for _, pk := range lo.Uniq(candidates) {
		if _, ok := e.transient[pk]; ok {
			continue
		}
		e.transient[pk] = struct{}{}
		added = append(added, pk)
	}
	return added
}

func sortedKeys(m map[string]struct{}) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
