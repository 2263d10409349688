package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/notify"
)

// SpamRecord is a sender who published the same content under different ids
type SpamRecord struct {
	PubKey             string
	DuplicatedMessages []string
}

// antiSpamCapacity bounds both the recent-message and the spammer tables
const antiSpamCapacity = 1000

// AntiSpam tracks duplicated messages per sender. Both tables are LRUs, so
// memory stays bounded however many messages pass through.
type AntiSpam struct {
	recentMessages *lru.Cache[string, string] // content hash -> first event id
	spamMessages   *lru.Cache[string, *spammer]

	live *notify.Notifier[[]SpamRecord]
}

type spammer struct {
	mu     sync.Mutex
	pubkey string
	ids    map[string]struct{}
}

// NewAntiSpam creates a tracker whose snapshots are published after quiet
func NewAntiSpam(quiet time.Duration) *AntiSpam {
	return newAntiSpam(quiet, antiSpamCapacity)
}

func newAntiSpam(quiet time.Duration, capacity int) *AntiSpam {
	recent, err := lru.New[string, string](capacity)
	if err != nil {
		panic(err)
	}
	spam, err := lru.New[string, *spammer](capacity)
	if err != nil {
		panic(err)
	}

	as := &AntiSpam{recentMessages: recent, spamMessages: spam}
	as.live = notify.New(quiet, as.Snapshot)
	return as
}

// Live returns the notifier of spam snapshots
func (as *AntiSpam) Live() *notify.Notifier[[]SpamRecord] {
	return as.live
}

// Check records evt and reports whether it duplicates earlier content from
// the same sender
func (as *AntiSpam) Check(evt *nostr.Event) bool {
	hash := contentHash(evt.PubKey, evt.Content)

	first, loaded, _ := as.recentMessages.PeekOrAdd(hash, evt.ID)
	if !loaded || first == evt.ID {
		return false
	}

	record, loaded, _ := as.spamMessages.PeekOrAdd(hash, &spammer{
		pubkey: evt.PubKey,
		ids:    map[string]struct{}{first: {}, evt.ID: {}},
	})
	if loaded {
		record.mu.Lock()
		record.ids[evt.ID] = struct{}{}
		record.mu.Unlock()
	}

	as.live.Invalidate()
	return true
}

// Len returns the number of tracked messages and of duplicated messages
func (as *AntiSpam) Len() (recent, duplicated int) {
	return as.recentMessages.Len(), as.spamMessages.Len()
}

// Snapshot returns every sender with duplicated content, one record per
// duplicated message
func (as *AntiSpam) Snapshot() []SpamRecord {
	spammers := as.spamMessages.Values()
	records := make([]SpamRecord, 0, len(spammers))
	for _, s := range spammers {
		s.mu.Lock()
		ids := make([]string, 0, len(s.ids))
		for id := range s.ids {
			ids = append(ids, id)
		}
		s.mu.Unlock()

		sort.Strings(ids)
		records = append(records, SpamRecord{PubKey: s.pubkey, DuplicatedMessages: ids})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].PubKey < records[j].PubKey
	})
	return records
}

func contentHash(pubkey, content string) string {
	sum := sha256.Sum256([]byte(pubkey + "\x00" + content))
	return hex.EncodeToString(sum[:])
}
