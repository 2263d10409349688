package session

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/account"
	"github.com/sandwichfarm/nostrum/internal/cache"
	"github.com/sandwichfarm/nostrum/internal/config"
	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/identity"
	"github.com/sandwichfarm/nostrum/internal/moderation"
	nostrclient "github.com/sandwichfarm/nostrum/internal/nostr"
	"github.com/sandwichfarm/nostrum/internal/ops"
	"github.com/sandwichfarm/nostrum/internal/relays"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu        sync.Mutex
	sources   map[string]nostrclient.DataSource
	nextID    int
	watches   int
	connected []relays.Relay
	connects  int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sources: map[string]nostrclient.DataSource{}}
}

func (f *fakeTransport) Register(src nostrclient.DataSource) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("src-%d", f.nextID)
	f.sources[id] = src
	return id
}

func (f *fakeTransport) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sources, id)
}

func (f *fakeTransport) RequestAndWatch(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches++
}

func (f *fakeTransport) IsSameRelaySetConfig(desired []relays.Relay) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects > 0 && relays.SameRelaySet(f.connected, desired)
}

func (f *fakeTransport) Disconnect() {}

func (f *fakeTransport) Connect(_ context.Context, set []relays.Relay, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = set
	f.connects++
	return nil
}

func (f *fakeTransport) counts() (sources, watches, connects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources), f.watches, f.connects
}

func (f *fakeTransport) filters() map[string]nostr.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]nostr.Filter{}
	for _, src := range f.sources {
		fs := src.(*feedSource)
		if filter, ok := fs.Filter(); ok {
			out[fs.name] = filter
		}
	}
	return out
}

type nopSender struct{}

func (nopSender) Send(context.Context, *nostr.Event) error { return nil }

type fakeSaver struct {
	mu    sync.Mutex
	saved []account.Snapshot
}

func (f *fakeSaver) Save(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, v.(account.Snapshot))
	return nil
}

func (f *fakeSaver) last() (account.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return account.Snapshot{}, false
	}
	return f.saved[len(f.saved)-1], true
}

type fakeBootstrap struct {
	mu         sync.Mutex
	owner      string
	discovered []string
	done       chan struct{}
}

func (f *fakeBootstrap) BootstrapOwner(_ context.Context, pubkey string, _ []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = pubkey
	return 0, nil
}

func (f *fakeBootstrap) DiscoverRelayHintsForPubkeys(_ context.Context, pubkeys []string, _ []string) (int, error) {
	f.mu.Lock()
	f.discovered = pubkeys
	f.mu.Unlock()
	close(f.done)
	return len(pubkeys), nil
}

type fixture struct {
	owner     *identity.Identity
	cache     *cache.Cache
	account   *account.Account
	transport *fakeTransport
	saver     *fakeSaver
	session   *Session
}

func newFixture(t *testing.T, owner *identity.Identity, state account.Snapshot, bootstrap Bootstrapper) *fixture {
	t.Helper()

	f := &fixture{
		owner:     owner,
		cache:     cache.New(nil, 10*time.Millisecond, ops.Discard()),
		transport: newFakeTransport(),
		saver:     &fakeSaver{},
	}
	f.account = account.New(f.owner, state, f.cache, nopSender{}, account.Options{
		Policy:      moderation.DefaultPolicy(),
		QuietWindow: 10 * time.Millisecond,
		Reconciler:  relays.NewReconciler(f.transport, nil, ops.Discard()),
		Logger:      ops.Discard(),
	})
	f.session = New(f.account, f.cache, f.transport, bootstrap, f.saver, Options{
		ReconcileDelay: 20 * time.Millisecond,
		Logger:         ops.Discard(),
	})

	t.Cleanup(func() {
		f.session.Stop()
		f.account.Close()
	})
	return f
}

func baseState() account.Snapshot {
	return account.Snapshot{
		LocalRelays: []relays.RelaySetupInfo{{URL: "wss://local.test", Read: true, Write: true, FeedTypes: config.AllFeedTypes}},
		TranslateTo: "en",
		ZapAmounts:  []int64{1000},
	}
}

func TestStartRegistersAndConnects(t *testing.T) {
	f := newFixture(t, identity.Generate(), baseState(), nil)

	require.NoError(t, f.session.Start(context.Background()))
	require.ErrorIs(t, f.session.Start(context.Background()), ErrAlreadyStarted)

	sources, watches, connects := f.transport.counts()
	require.Equal(t, 6, sources)
	require.Equal(t, 1, connects)
	require.Equal(t, 1, watches)

	filters := f.transport.filters()
	require.Contains(t, filters, "home")
	require.Contains(t, filters["home"].Authors, f.owner.PubKey())
	require.NotContains(t, filters, "channel-messages", "no channels joined yet")

	f.account.JoinChannel("chan")
	filters = f.transport.filters()
	require.Equal(t, []string{"chan"}, filters["channel-messages"].Tags["e"])

	f.session.Stop()
	f.session.Stop()
	sources, _, _ = f.transport.counts()
	require.Zero(t, sources)
}

func TestStartRestoresBackupContactList(t *testing.T) {
	state := baseState()
	owner := identity.Generate()
	friend := identity.Generate().PubKey()

	backup, err := events.NewFactory(owner).CreateContactList([]events.Contact{{PubKey: friend}}, nil)
	require.NoError(t, err)
	state.BackupContactList = backup

	f := newFixture(t, owner, state, nil)

	require.NoError(t, f.session.Start(context.Background()))
	require.True(t, f.account.UserProfile().IsFollowing(friend))
	require.Equal(t, backup.ID, f.account.UserProfile().LatestContactList().Event.ID)
}

func TestSpamSendersAreHidden(t *testing.T) {
	f := newFixture(t, identity.Generate(), baseState(), nil)
	require.NoError(t, f.session.Start(context.Background()))

	spammer := identity.Generate()
	factory := events.NewFactory(spammer)
	for i := 0; i < 5; i++ {
		evt, err := factory.CreateTextNote("free sats", nil, nil, events.WithCreatedAt(nostr.Timestamp(1000+i)))
		require.NoError(t, err)
		_, err = f.cache.Consume(context.Background(), evt)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return f.account.IsHidden(spammer.PubKey())
	}, time.Second, 10*time.Millisecond)
	require.Empty(t, f.account.HiddenUsers(), "spam hides are transient")
}

func TestOwnerContactListTriggersReconcile(t *testing.T) {
	f := newFixture(t, identity.Generate(), baseState(), nil)
	require.NoError(t, f.session.Start(context.Background()))

	friend := identity.Generate().PubKey()
	list, err := events.NewFactory(f.owner).CreateContactList(
		[]events.Contact{{PubKey: friend}},
		map[string]events.ReadWrite{"wss://published.test": {Read: true, Write: true}},
	)
	require.NoError(t, err)
	_, err = f.cache.Consume(context.Background(), list)
	require.NoError(t, err)

	require.Equal(t, list.ID, f.account.BackupContactList().ID)
	require.Eventually(t, func() bool {
		_, watches, connects := f.transport.counts()
		return connects == 2 && watches == 2
	}, time.Second, 10*time.Millisecond)

	// a follow change on the same relays only restarts subscriptions
	next, err := events.NewFactory(f.owner).CreateContactList(
		[]events.Contact{{PubKey: friend}, {PubKey: identity.Generate().PubKey()}},
		map[string]events.ReadWrite{"wss://published.test": {Read: true, Write: true}},
		events.WithCreatedAt(list.CreatedAt+1),
	)
	require.NoError(t, err)
	_, err = f.cache.Consume(context.Background(), next)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, watches, connects := f.transport.counts()
		return watches == 3 && connects == 2
	}, time.Second, 10*time.Millisecond)
}

func TestOtherContactListsAreIgnored(t *testing.T) {
	f := newFixture(t, identity.Generate(), baseState(), nil)
	require.NoError(t, f.session.Start(context.Background()))

	stranger := identity.Generate()
	list, err := events.NewFactory(stranger).CreateContactList([]events.Contact{{PubKey: f.owner.PubKey()}}, nil)
	require.NoError(t, err)
	_, err = f.cache.Consume(context.Background(), list)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.Nil(t, f.account.BackupContactList())
	_, watches, connects := f.transport.counts()
	require.Equal(t, 1, watches)
	require.Equal(t, 1, connects)
}

func TestSaveableChangesArePersisted(t *testing.T) {
	f := newFixture(t, identity.Generate(), baseState(), nil)
	require.NoError(t, f.session.Start(context.Background()))

	f.account.HideUser("abad1dea")

	require.Eventually(t, func() bool {
		snap, ok := f.saver.last()
		return ok && len(snap.HiddenUsers) == 1 && snap.HiddenUsers[0] == "abad1dea"
	}, time.Second, 10*time.Millisecond)
}

func TestBootstrapFetchesOwnerAndFollows(t *testing.T) {
	state := baseState()
	bootstrap := &fakeBootstrap{done: make(chan struct{})}
	f := newFixture(t, identity.Generate(), state, bootstrap)

	friend := identity.Generate().PubKey()
	list, err := events.NewFactory(f.owner).CreateContactList([]events.Contact{{PubKey: friend}}, nil)
	require.NoError(t, err)
	_, err = f.cache.Consume(context.Background(), list)
	require.NoError(t, err)

	require.NoError(t, f.session.Start(context.Background()))

	select {
	case <-bootstrap.done:
	case <-time.After(time.Second):
		t.Fatal("expected follow discovery to run")
	}

	bootstrap.mu.Lock()
	defer bootstrap.mu.Unlock()
	require.Equal(t, f.owner.PubKey(), bootstrap.owner)
	require.Equal(t, []string{friend}, bootstrap.discovered)
}

func TestListenerPanicIsLoggedWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, &buf)
	s := New(nil, nil, newFakeTransport(), nil, nil, Options{Logger: logger})

	s.goSafe("boom", func() { panic("listener failure") })
	s.wg.Wait()

	out := buf.String()
	require.Contains(t, out, "panic recovered")
	require.Contains(t, out, "listener=boom")
	require.Contains(t, out, "listener failure")
	require.Contains(t, out, "stack=")
}
