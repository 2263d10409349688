package account

import (
	"github.com/sandwichfarm/nostrum/internal/cache"
)

// HiddenUsers returns the users the owner hid explicitly
func (a *Account) HiddenUsers() []string {
	return a.moderation.Hidden()
}

// HideUser hides pubkey until ShowUser is called
func (a *Account) HideUser(pubkey string) {
	a.moderation.Hide(pubkey)
	a.live.Invalidate()
	a.saveable.Invalidate()
}

// ShowUser clears both the explicit and the spam-driven hide of pubkey
func (a *Account) ShowUser(pubkey string) {
	a.moderation.Show(pubkey)
	a.live.Invalidate()
	a.saveable.Invalidate()
}

// AddTransientHidden hides pubkeys for this session only
func (a *Account) AddTransientHidden(pubkeys ...string) {
	if len(pubkeys) == 0 {
		return
	}
	a.moderation.AddTransient(pubkeys...)
	a.live.Invalidate()
}

// ApplySpamSnapshot hides the senders the anti-spam tracker flagged and
// returns the ones newly hidden
func (a *Account) ApplySpamSnapshot(records []cache.SpamRecord) []string {
	added := a.moderation.ApplySpamSnapshot(records)
	if len(added) > 0 {
		a.live.Invalidate()
	}
	return added
}

// IsHidden reports whether pubkey is hidden either way
func (a *Account) IsHidden(pubkey string) bool {
	return a.moderation.IsHidden(pubkey)
}

// IsAcceptableUser reports whether pubkey's content may be shown
func (a *Account) IsAcceptableUser(pubkey string) bool {
	return a.moderation.IsAcceptableUser(a.cache.GetOrCreateUser(pubkey))
}

// IsAcceptableDirect judges note on its own reports only
func (a *Account) IsAcceptableDirect(note *cache.Note) bool {
	return a.moderation.IsAcceptableDirect(note)
}

// IsAcceptable reports whether note may be shown
func (a *Account) IsAcceptable(note *cache.Note) bool {
	return a.moderation.IsAcceptableNote(note)
}

// RelevantReports returns the reports on note, its author and reposted
// notes filed by the owner or the owner's follows
func (a *Account) RelevantReports(note *cache.Note) []*cache.Note {
	return a.moderation.RelevantReports(note)
}
