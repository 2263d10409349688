package account

import (
	"context"
	"slices"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
	"github.com/sandwichfarm/nostrum/internal/cache"
	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/relays"
)

// boostWindow is how long a repost by the owner suppresses another one
const boostWindow = 5 * time.Minute

// Every publish operation below is a no-op returning nil when the account
// cannot sign.

// SendPost publishes a text note
func (a *Account) SendPost(ctx context.Context, message string, replyTo []*cache.Note, mentions []string) error {
	if !a.IsWriteable() {
		return nil
	}

	evt, err := a.factory.CreateTextNote(message, noteIDs(replyTo), mentions)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// SendChannelMessage publishes a message to a public chat channel
func (a *Account) SendChannelMessage(ctx context.Context, message, channel string, replyTo *cache.Note, mentions []string) error {
	if !a.IsWriteable() {
		return nil
	}

	evt, err := a.factory.CreateChannelMessage(channel, message, noteIDs(lo.Compact([]*cache.Note{replyTo})), mentions)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// SendPrivateMessage publishes an encrypted DM. The recipient is tagged so
// relays can route it; the plaintext carries no advertisement marker.
func (a *Account) SendPrivateMessage(ctx context.Context, message, recipient string, replyTo *cache.Note) error {
	if !a.IsWriteable() {
		return nil
	}

	evt, err := a.factory.CreateDirectMessage(events.DirectMessage{
		Recipient:        recipient,
		Content:          message,
		ReplyTo:          noteIDs(lo.Compact([]*cache.Note{replyTo})),
		PublishRecipient: true,
		Advertise:        false,
	})
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// SendNewUserMetadata publishes the owner's profile
func (a *Account) SendNewUserMetadata(ctx context.Context, content string) error {
	if !a.IsWriteable() {
		return nil
	}

	evt, err := a.factory.CreateMetadata(content)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// ReactionTo returns the owner's likes on note
func (a *Account) ReactionTo(note *cache.Note) []*cache.Note {
	return note.ReactedBy(a.PubKey(), events.ReactionLike)
}

// HasReacted reports whether the owner liked note
func (a *Account) HasReacted(note *cache.Note) bool {
	return note.HasReacted(a.PubKey(), events.ReactionLike)
}

// BoostsTo returns the owner's reposts of note
func (a *Account) BoostsTo(note *cache.Note) []*cache.Note {
	return note.BoostedBy(a.PubKey())
}

// HasBoosted reports whether the owner reposted note
func (a *Account) HasBoosted(note *cache.Note) bool {
	return len(a.BoostsTo(note)) > 0
}

// ReactTo likes note, once
func (a *Account) ReactTo(ctx context.Context, note *cache.Note) error {
	if !a.IsWriteable() || a.HasReacted(note) {
		return nil
	}

	target := note.Event()
	if target == nil {
		return nil
	}
	evt, err := a.factory.CreateLike(target)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// Boost reposts note unless the owner already did in the last five minutes
func (a *Account) Boost(ctx context.Context, note *cache.Note) error {
	if !a.IsWriteable() || note.HasBoostedInTheLast(a.PubKey(), boostWindow, a.clock()) {
		return nil
	}

	target := note.Event()
	if target == nil {
		return nil
	}
	evt, err := a.factory.CreateRepost(target)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// Report flags note with a warning reaction followed by a report. Nothing is
// sent when the owner already put a warning on it.
func (a *Account) Report(ctx context.Context, note *cache.Note, reason events.ReportType) error {
	if !a.IsWriteable() || note.HasReacted(a.PubKey(), events.ReactionWarning) {
		return nil
	}

	target := note.Event()
	if target == nil {
		return nil
	}

	warning, err := a.factory.CreateWarning(target)
	if err != nil {
		return err
	}
	if err := a.publish(ctx, warning); err != nil {
		return err
	}

	report, err := a.factory.CreateNoteReport(target, reason)
	if err != nil {
		return err
	}
	return a.publish(ctx, report)
}

// ReportUser reports pubkey, once per reason
func (a *Account) ReportUser(ctx context.Context, pubkey string, reason events.ReportType) error {
	if !a.IsWriteable() || a.cache.GetOrCreateUser(pubkey).HasReport(a.PubKey(), reason) {
		return nil
	}

	evt, err := a.factory.CreateUserReport(pubkey, reason)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// Delete requests deletion of the notes the owner authored; others are
// ignored
func (a *Account) Delete(ctx context.Context, notes ...*cache.Note) error {
	if !a.IsWriteable() {
		return nil
	}

	owner := a.PubKey()
	mine := lo.FilterMap(notes, func(n *cache.Note, _ int) (string, bool) {
		author := n.Author()
		return n.ID(), author != nil && author.PubKey() == owner
	})
	if len(mine) == 0 {
		return nil
	}

	evt, err := a.factory.CreateDeletion(mine)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// Broadcast re-sends note's original event to the write relays
func (a *Account) Broadcast(ctx context.Context, note *cache.Note) error {
	evt := note.Event()
	if evt == nil {
		return nil
	}
	return a.sender.Send(ctx, evt)
}

// SendCreateNewChannel creates a public chat channel and joins it
func (a *Account) SendCreateNewChannel(ctx context.Context, name, about, picture string) error {
	if !a.IsWriteable() {
		return nil
	}

	evt, err := a.factory.CreateChannel(events.ChannelData{Name: name, About: about, Picture: picture})
	if err != nil {
		return err
	}
	err = a.publish(ctx, evt)
	a.JoinChannel(evt.ID)
	return err
}

// SendChangeChannel updates a channel's metadata and joins the id of the
// metadata event, as SendCreateNewChannel does.
func (a *Account) SendChangeChannel(ctx context.Context, name, about, picture, channel string) error {
	if !a.IsWriteable() {
		return nil
	}

	evt, err := a.factory.CreateChannelMetadata(channel, events.ChannelData{Name: name, About: about, Picture: picture})
	if err != nil {
		return err
	}
	err = a.publish(ctx, evt)
	a.JoinChannel(evt.ID)
	return err
}

// Follow adds pubkey to the owner's contact list. Without a list to extend,
// a new one is started with the default relays.
func (a *Account) Follow(ctx context.Context, pubkey string) error {
	if !a.IsWriteable() {
		return nil
	}

	var follows []events.Contact
	var relayMap map[string]events.ReadWrite

	current := a.UserProfile().LatestContactList()
	if current != nil && len(current.Follows) > 0 {
		follows = append(slices.Clone(current.Follows), events.Contact{PubKey: pubkey})
		follows = lo.UniqBy(follows, func(c events.Contact) string { return c.PubKey })
		relayMap = current.Relays
	} else {
		follows = []events.Contact{{PubKey: pubkey}}
		relayMap = relays.ReadWriteMap(a.defaultRelays)
	}

	evt, err := a.factory.CreateContactList(follows, relayMap)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// Unfollow removes pubkey from the owner's contact list. Nothing happens
// when there is no non-empty list to edit.
func (a *Account) Unfollow(ctx context.Context, pubkey string) error {
	if !a.IsWriteable() {
		return nil
	}

	current := a.UserProfile().LatestContactList()
	if current == nil || len(current.Follows) == 0 {
		return nil
	}

	follows := lo.Reject(current.Follows, func(c events.Contact, _ int) bool { return c.PubKey == pubkey })
	evt, err := a.factory.CreateContactList(follows, current.Relays)
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}

// CreateZapRequestFor builds an unsent zap request for note. It returns nil
// when the account cannot sign or the note was never loaded.
func (a *Account) CreateZapRequestFor(note *cache.Note, amount int64, comment string) (*nostr.Event, error) {
	if !a.IsWriteable() {
		return nil, nil
	}
	target := note.Event()
	if target == nil {
		return nil, nil
	}

	return a.factory.CreateZapRequest(events.ZapRequest{
		Recipient: target.PubKey,
		EventID:   target.ID,
		Relays:    a.zapRelays(),
		Amount:    amount,
		Comment:   comment,
	})
}

// CreateZapRequestForUser builds an unsent zap request for a profile
func (a *Account) CreateZapRequestForUser(pubkey string, amount int64, comment string) (*nostr.Event, error) {
	if !a.IsWriteable() {
		return nil, nil
	}

	return a.factory.CreateZapRequest(events.ZapRequest{
		Recipient: pubkey,
		Relays:    a.zapRelays(),
		Amount:    amount,
		Comment:   comment,
	})
}

// zapRelays prefers the owner's published relays over the local ones
func (a *Account) zapRelays() []string {
	if published := a.UserProfile().Relays(); len(published) > 0 {
		urls := lo.Keys(published)
		slices.Sort(urls)
		return urls
	}
	return lo.Map(a.LocalRelays(), func(r relays.RelaySetupInfo, _ int) string { return r.URL })
}

// DecryptContent returns the readable content of note. DMs are decrypted
// with the owner's key; anything that cannot be decrypted reports false.
func (a *Account) DecryptContent(note *cache.Note) (string, bool) {
	evt := note.Event()
	if evt == nil {
		return "", false
	}
	if evt.Kind != int(events.KindEncryptedDM) {
		return evt.Content, true
	}
	if !a.IsWriteable() {
		return "", false
	}

	plaintext, ok := events.DecryptDirectMessage(evt, a.identity)
	if !ok {
		a.logger.Debug("could not decrypt direct message", "event_id", evt.ID)
	}
	return plaintext, ok
}

func noteIDs(notes []*cache.Note) []string {
	return lo.Map(notes, func(n *cache.Note, _ int) string { return n.ID() })
}
