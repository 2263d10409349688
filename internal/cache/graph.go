package cache

import (
	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/events"
)

// consumeContactList keeps the newest kind 3 event per user and tells the
// contact-list listeners when it changes
func (c *Cache) consumeContactList(evt *nostr.Event) bool {
	list, err := events.ParseContactList(evt)
	if err != nil {
		return false
	}

	user := c.GetOrCreateUser(evt.PubKey)
	if !user.setContactList(list) {
		return false
	}

	for _, contact := range list.Follows {
		c.GetOrCreateUser(contact.PubKey)
	}

	c.notifyContactList(user)
	return true
}

// consumeRelayList keeps the newest NIP-65 relay list per user
func (c *Cache) consumeRelayList(evt *nostr.Event) bool {
	hints, err := events.ParseRelayHints(evt)
	if err != nil {
		return false
	}
	return c.GetOrCreateUser(evt.PubKey).setRelayHints(hints, evt.CreatedAt)
}

// FollowersOf returns the known users whose latest contact list includes pubkey
func (c *Cache) FollowersOf(pubkey string) []*User {
	followers := make([]*User, 0)
	c.users.Range(func(_ string, u *User) bool {
		if u.IsFollowing(pubkey) {
			followers = append(followers, u)
		}
		return true
	})
	return followers
}

// IsMutual reports whether a and b follow each other
func (c *Cache) IsMutual(a, b string) bool {
	ua, okA := c.User(a)
	ub, okB := c.User(b)
	return okA && okB && ua.IsFollowing(b) && ub.IsFollowing(a)
}
