package account

import (
	"context"
	"slices"

	"github.com/sandwichfarm/nostrum/internal/events"
	"github.com/sandwichfarm/nostrum/internal/relays"
)

// LocalRelays returns the relays configured on this device
func (a *Account) LocalRelays() []relays.RelaySetupInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.localRelays)
}

// DesiredRelaySet is the owner's published relay map when there is one,
// otherwise the local relays
func (a *Account) DesiredRelaySet() []relays.Relay {
	return relays.Desired(a.UserProfile().Relays(), a.LocalRelays())
}

// ReconcileRelays reconnects the transport if the desired relay set moved
// away from the connected one. It reports whether a reconnect happened.
func (a *Account) ReconcileRelays(ctx context.Context) (bool, error) {
	if a.reconciler == nil {
		return false, nil
	}
	return a.reconciler.Reconcile(ctx, a.DesiredRelaySet())
}

// SendNewRelayList republishes the owner's contact list with a new relay
// map. With no follows to carry the list is only indexed locally, so an
// empty list never overwrites a good one on the relays.
func (a *Account) SendNewRelayList(ctx context.Context, relayMap map[string]events.ReadWrite) error {
	if !a.IsWriteable() {
		return nil
	}

	current := a.UserProfile().LatestContactList()
	if current != nil && len(current.Follows) > 0 {
		evt, err := a.factory.CreateContactList(current.Follows, relayMap)
		if err != nil {
			return err
		}
		return a.publish(ctx, evt)
	}

	evt, err := a.factory.CreateContactList(nil, relayMap)
	if err != nil {
		return err
	}
	return a.consume(ctx, evt)
}

// SaveRelayList replaces the local relays, republishes the contact-list relay
// map and announces the same relays as a NIP-65 relay list
func (a *Account) SaveRelayList(ctx context.Context, local []relays.RelaySetupInfo) error {
	a.mu.Lock()
	a.localRelays = slices.Clone(local)
	a.mu.Unlock()
	defer a.saveable.Invalidate()

	relayMap := relays.ReadWriteMap(local)
	if err := a.SendNewRelayList(ctx, relayMap); err != nil {
		return err
	}
	if !a.IsWriteable() {
		return nil
	}

	evt, err := a.factory.CreateRelayList(events.HintsFromRelayMap(relayMap))
	if err != nil {
		return err
	}
	return a.publish(ctx, evt)
}
