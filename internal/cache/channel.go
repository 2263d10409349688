package cache

import (
	"encoding/json"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/events"
)

// Channel is a public chat (kind 40) and its latest metadata
type Channel struct {
	id string

	mu        sync.RWMutex
	creator   string
	info      events.ChannelData
	updatedAt nostr.Timestamp
}

func newChannel(id string) *Channel {
	return &Channel{id: id}
}

// ID returns the id of the creation event
func (c *Channel) ID() string {
	return c.id
}

// Creator returns the pubkey that created the channel, if known
func (c *Channel) Creator() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creator
}

// Info returns the latest channel metadata
func (c *Channel) Info() events.ChannelData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// update applies a kind 40 or 41 event. Metadata from anyone but the creator
// is ignored once the creator is known.
func (c *Channel) update(evt *nostr.Event) bool {
	var data events.ChannelData
	if err := json.Unmarshal([]byte(evt.Content), &data); err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if evt.Kind == int(events.KindChannelCreate) {
		c.creator = evt.PubKey
	} else if c.creator != "" && c.creator != evt.PubKey {
		return false
	}
	if evt.CreatedAt < c.updatedAt {
		return false
	}

	c.info = data
	c.updatedAt = evt.CreatedAt
	return true
}
