// Package session wires an account to its collaborators: it registers the
// relay subscriptions, reacts to contact-list and spam changes, and
// persists the account when it changes. Nothing here runs until Start.
package session

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/sandwichfarm/nostrum/internal/account"
	"github.com/sandwichfarm/nostrum/internal/cache"
	nostrclient "github.com/sandwichfarm/nostrum/internal/nostr"
	"github.com/sandwichfarm/nostrum/internal/ops"
	"github.com/sandwichfarm/nostrum/internal/relays"
)

// ErrAlreadyStarted is returned by a second Start
var ErrAlreadyStarted = errors.New("session already started")

// Transport is the part of the relay client the session drives directly
type Transport interface {
	Register(src nostrclient.DataSource) string
	Unregister(id string)
	RequestAndWatch(ctx context.Context)
}

// Bootstrapper pulls the owner's graph from the relays at startup
type Bootstrapper interface {
	BootstrapOwner(ctx context.Context, pubkey string, urls []string) (int, error)
	DiscoverRelayHintsForPubkeys(ctx context.Context, pubkeys []string, urls []string) (int, error)
}

// Saver persists account snapshots
type Saver interface {
	Save(v any) error
}

// Options tune a session. Zero values fall back to the defaults.
type Options struct {
	ReconcileDelay   time.Duration
	BootstrapTimeout time.Duration
	Logger           *ops.Logger
}

// Session is the running state of one logged-in account
type Session struct {
	account   *account.Account
	cache     *cache.Cache
	transport Transport
	bootstrap Bootstrapper
	saver     Saver
	logger    *ops.Logger

	reconcileDelay   time.Duration
	bootstrapTimeout time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	cleanup  []func()
	sourceID []string
	wg       sync.WaitGroup
}

// New creates a session. bootstrap and saver may be nil.
func New(acc *account.Account, c *cache.Cache, transport Transport, bootstrap Bootstrapper, saver Saver, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = ops.Default()
	}
	if opts.ReconcileDelay <= 0 {
		opts.ReconcileDelay = 500 * time.Millisecond
	}
	if opts.BootstrapTimeout <= 0 {
		opts.BootstrapTimeout = 10 * time.Second
	}

	return &Session{
		account:          acc,
		cache:            c,
		transport:        transport,
		bootstrap:        bootstrap,
		saver:            saver,
		logger:           opts.Logger.WithComponent("session"),
		reconcileDelay:   opts.ReconcileDelay,
		bootstrapTimeout: opts.BootstrapTimeout,
	}
}

// Start restores the saved contact list if needed, registers the relay
// subscriptions, connects and starts the background listeners
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if _, err := s.account.RestoreBackupContactList(ctx); err != nil {
		s.logger.Warn("could not restore contact list backup", "error", err)
	}

	for _, src := range s.dataSources() {
		s.sourceID = append(s.sourceID, s.transport.Register(src))
	}

	s.watchSpam(ctx)
	s.watchContactList(ctx)
	s.watchSaveable(ctx)

	if _, err := s.account.ReconcileRelays(ctx); err != nil {
		s.logger.Warn("initial relay connection failed", "error", err)
	}

	if s.bootstrap != nil {
		s.goSafe("bootstrap", func() { s.bootstrapOwner(ctx) })
	}

	s.logger.Info("session started", "pubkey", s.account.PubKey(), "writeable", s.account.IsWriteable())
	return nil
}

// Stop cancels background work, removes the subscriptions and waits for the
// listeners to return
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	cleanup := s.cleanup
	ids := s.sourceID
	s.cleanup = nil
	s.sourceID = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	for _, fn := range cleanup {
		fn()
	}
	for _, id := range ids {
		s.transport.Unregister(id)
	}
	s.wg.Wait()
	s.logger.Info("session stopped")
}

// watchSpam hides senders the anti-spam tracker flags
func (s *Session) watchSpam(ctx context.Context) {
	records, unsubscribe := s.cache.AntiSpam().Live().Subscribe()
	s.cleanup = append(s.cleanup, unsubscribe)

	s.goSafe("spam", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot, ok := <-records:
				if !ok {
					return
				}
				s.logger.LogTransientBlock(s.account.ApplySpamSnapshot(snapshot))
			}
		}
	})
}

// watchContactList keeps the contact-list backup current and reconnects
// when the owner's published relays change. Bursts of contact lists from
// relays are collapsed into one reconcile.
func (s *Session) watchContactList(ctx context.Context) {
	owner := s.account.PubKey()
	debounced := debounce.New(s.reconcileDelay)

	unsubscribe := s.cache.OnContactList(func(u *cache.User) {
		if u.PubKey() != owner {
			return
		}
		s.account.UpdateContactListBackup(u.LatestContactList())
		debounced(func() {
			if ctx.Err() != nil {
				return
			}
			s.refreshRelays(ctx)
		})
	})
	s.cleanup = append(s.cleanup, unsubscribe)
}

// refreshRelays reconnects on a relay change, otherwise restarts the
// subscriptions so they pick up the new follow set
func (s *Session) refreshRelays(ctx context.Context) {
	changed, err := s.account.ReconcileRelays(ctx)
	if err != nil {
		s.logger.Warn("relay reconcile failed", "error", err)
		return
	}
	if !changed {
		s.transport.RequestAndWatch(ctx)
	}
}

// watchSaveable writes a snapshot every time persisted state changes
func (s *Session) watchSaveable(ctx context.Context) {
	if s.saver == nil {
		return
	}

	snapshots, unsubscribe := s.account.Saveable().Subscribe()
	s.cleanup = append(s.cleanup, unsubscribe)

	s.goSafe("saveable", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				start := time.Now()
				err := s.saver.Save(snap)
				s.logger.LogStorageOperation("save_account", time.Since(start), err)
			}
		}
	})
}

// bootstrapOwner fetches the owner's latest profile, contact list and relay
// list, then the relay lists of everyone the owner follows
func (s *Session) bootstrapOwner(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.bootstrapTimeout)
	defer cancel()

	urls := relays.ReadURLs(s.account.DesiredRelaySet())
	n, err := s.bootstrap.BootstrapOwner(ctx, s.account.PubKey(), urls)
	if err != nil {
		s.logger.Warn("bootstrap failed", "error", err)
		return
	}
	s.logger.Info("bootstrapped owner", "events", n)

	follows := s.account.UserProfile().Follows()
	if len(follows) == 0 {
		return
	}
	pubkeys := make([]string, 0, len(follows))
	for pk := range follows {
		pubkeys = append(pubkeys, pk)
	}
	if n, err := s.bootstrap.DiscoverRelayHintsForPubkeys(ctx, pubkeys, urls); err != nil {
		s.logger.Warn("relay hint discovery failed", "error", err)
	} else {
		s.logger.Debug("discovered relay hints", "lists", n, "follows", len(pubkeys))
	}
}

func (s *Session) goSafe(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields("listener", name).LogPanic(r, string(debug.Stack()))
			}
		}()
		fn()
	}()
}
