// Package account is the aggregate root of a logged-in session: it owns the
// identity and the user's preferences, builds and publishes events, and
// answers moderation questions through the moderation engine.
package account

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
	"github.com/sandwichfarm/nostrum/internal/cache"
	"github.com/sandwichfarm/nostrum/internal/config"
	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/identity"
	"github.com/sandwichfarm/nostrum/internal/moderation"
	"github.com/sandwichfarm/nostrum/internal/notify"
	"github.com/sandwichfarm/nostrum/internal/ops"
	"github.com/sandwichfarm/nostrum/internal/relays"
	"github.com/sasha-s/go-deadlock"
)

// Cache is the object graph the account reads from and feeds
type Cache interface {
	GetOrCreateUser(pubkey string) *cache.User
	Consume(ctx context.Context, evt *nostr.Event) (bool, error)
}

// Sender publishes signed events to the write relays
type Sender interface {
	Send(ctx context.Context, evt *nostr.Event) error
}

// Options are the collaborators and tunables of an account. Only the
// identity, cache and sender are required to build one.
type Options struct {
	Policy        moderation.Policy
	QuietWindow   time.Duration
	DefaultRelays []relays.RelaySetupInfo
	Reconciler    *relays.Reconciler
	Logger        *ops.Logger
	Clock         func() time.Time
}

// Account holds the state of one logged-in user
type Account struct {
	identity   *identity.Identity
	cache      Cache
	sender     Sender
	factory    *events.Factory
	moderation *moderation.Engine
	reconciler *relays.Reconciler
	logger     *ops.Logger
	clock      func() time.Time

	defaultRelays []relays.RelaySetupInfo

	mu                  deadlock.RWMutex
	followingChannels   map[string]struct{}
	localRelays         []relays.RelaySetupInfo
	dontTranslateFrom   map[string]struct{}
	languagePreferences map[string]string
	translateTo         string
	zapAmounts          []int64
	backupContactList   *nostr.Event

	live      *notify.Notifier[*Account]
	languages *notify.Notifier[*Account]
	saveable  *notify.Notifier[Snapshot]
}

// New creates an account from persisted state. It has no side effects:
// listeners and background work are wired by the session.
func New(id *identity.Identity, state Snapshot, c Cache, sender Sender, opts Options) *Account {
	if opts.Logger == nil {
		opts.Logger = ops.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if len(opts.DefaultRelays) == 0 {
		opts.DefaultRelays = relays.FromConfig(config.Default().Relays.Local)
	}

	a := &Account{
		identity:      id,
		cache:         c,
		sender:        sender,
		factory:       events.NewFactory(id).WithClock(opts.Clock),
		moderation:    moderation.NewEngine(id.PubKey(), c, opts.Policy, state.HiddenUsers),
		reconciler:    opts.Reconciler,
		logger:        opts.Logger.WithComponent("account"),
		clock:         opts.Clock,
		defaultRelays: opts.DefaultRelays,

		followingChannels:   toSet(state.FollowingChannels),
		localRelays:         slices.Clone(state.LocalRelays),
		dontTranslateFrom:   toSet(state.DontTranslateFrom),
		languagePreferences: lo.Assign(state.LanguagePreferences),
		translateTo:         state.TranslateTo,
		zapAmounts:          slices.Clone(state.ZapAmounts),
		backupContactList:   state.BackupContactList,
	}

	a.live = notify.New(opts.QuietWindow, func() *Account { return a })
	a.languages = notify.New(opts.QuietWindow, func() *Account { return a })
	a.saveable = notify.New(opts.QuietWindow, a.Snapshot)
	return a
}

// Live notifies on any change that affects what is shown
func (a *Account) Live() *notify.Notifier[*Account] {
	return a.live
}

// Languages notifies on translation preference changes
func (a *Account) Languages() *notify.Notifier[*Account] {
	return a.languages
}

// Saveable notifies with a fresh snapshot whenever persisted state changes
func (a *Account) Saveable() *notify.Notifier[Snapshot] {
	return a.saveable
}

// Close stops all pending notifications
func (a *Account) Close() {
	a.live.Close()
	a.languages.Close()
	a.saveable.Close()
}

// PubKey returns the owner's hex public key
func (a *Account) PubKey() string {
	return a.identity.PubKey()
}

// IsWriteable reports whether the account can sign events
func (a *Account) IsWriteable() bool {
	return a.identity.IsWriteable()
}

// UserProfile returns the owner as a cache user
func (a *Account) UserProfile() *cache.User {
	return a.cache.GetOrCreateUser(a.identity.PubKey())
}

// Moderation returns the engine answering acceptability questions
func (a *Account) Moderation() *moderation.Engine {
	return a.moderation
}

// FollowingChannels returns the joined channel ids, sorted
func (a *Account) FollowingChannels() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return sortedKeys(a.followingChannels)
}

// JoinChannel adds a channel to the followed set
func (a *Account) JoinChannel(id string) {
	a.mu.Lock()
	a.followingChannels[id] = struct{}{}
	a.mu.Unlock()

	a.live.Invalidate()
	a.saveable.Invalidate()
}

// LeaveChannel removes a channel from the followed set
func (a *Account) LeaveChannel(id string) {
	a.mu.Lock()
	delete(a.followingChannels, id)
	a.mu.Unlock()

	a.live.Invalidate()
	a.saveable.Invalidate()
}

// ZapAmounts returns the zap presets in millisats
func (a *Account) ZapAmounts() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.zapAmounts)
}

// ChangeZapAmounts replaces the zap presets
func (a *Account) ChangeZapAmounts(amounts []int64) {
	a.mu.Lock()
	a.zapAmounts = slices.Clone(amounts)
	a.mu.Unlock()

	a.live.Invalidate()
	a.saveable.Invalidate()
}

// BackupContactList returns the last non-empty contact list of the owner
func (a *Account) BackupContactList() *nostr.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backupContactList
}

// UpdateContactListBackup keeps cl as the backup when it has follows and
// differs from the current backup
func (a *Account) UpdateContactListBackup(cl *events.ContactList) {
	if cl == nil || cl.Event == nil || len(cl.Follows) == 0 {
		return
	}

	a.mu.Lock()
	if a.backupContactList != nil && a.backupContactList.ID == cl.Event.ID {
		a.mu.Unlock()
		return
	}
	a.backupContactList = cl.Event
	a.mu.Unlock()

	a.saveable.Invalidate()
}

// RestoreBackupContactList feeds the backup into the cache when the cache
// has no contact list for the owner. It reports whether it did.
func (a *Account) RestoreBackupContactList(ctx context.Context) (bool, error) {
	backup := a.BackupContactList()
	if backup == nil || a.UserProfile().LatestContactList() != nil {
		return false, nil
	}

	a.logger.Info("restoring saved contact list", "event_id", backup.ID)
	if _, err := a.cache.Consume(ctx, backup); err != nil {
		return false, fmt.Errorf("failed to restore contact list: %w", err)
	}
	return true, nil
}

// publish sends evt and indexes it locally. The event is consumed even when
// sending fails so the local view reflects the user's action.
func (a *Account) publish(ctx context.Context, evt *nostr.Event) error {
	sendErr := a.sender.Send(ctx, evt)
	if sendErr != nil {
		sendErr = fmt.Errorf("failed to send %s: %w", events.Kind(evt.Kind), sendErr)
	}
	return errors.Join(sendErr, a.consume(ctx, evt))
}

func (a *Account) consume(ctx context.Context, evt *nostr.Event) error {
	if _, err := a.cache.Consume(ctx, evt); err != nil {
		return fmt.Errorf("failed to index %s: %w", events.Kind(evt.Kind), err)
	}
	return nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func sortedKeys(m map[string]struct{}) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
