package events

import (
	"github.com/nbd-wtf/go-nostr"
)

// ThreadInfo holds the NIP-10 relationships of a note
type ThreadInfo struct {
	RootEventID  string
	ReplyToID    string
	MentionedIDs []string
}

// ParseThreadInfo extracts the thread relationships of a note. Marked e tags
// are preferred; unmarked tags fall back to the positional convention.
func ParseThreadInfo(event *nostr.Event) *ThreadInfo {
	eTags := make([]nostr.Tag, 0)
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			eTags = append(eTags, tag)
		}
	}

	if len(eTags) == 0 {
		return &ThreadInfo{MentionedIDs: []string{}}
	}
	if hasMarkedTags(eTags) {
		return parseMarkedFormat(eTags)
	}
	return parsePositionalFormat(eTags)
}

func hasMarkedTags(eTags []nostr.Tag) bool {
	for _, tag := range eTags {
		if len(tag) >= 4 && tag[3] != "" {
			return true
		}
	}
	return false
}

func parseMarkedFormat(eTags []nostr.Tag) *ThreadInfo {
	info := &ThreadInfo{MentionedIDs: make([]string, 0)}

	for _, tag := range eTags {
		marker := ""
		if len(tag) >= 4 {
			marker = tag[3]
		}

		switch marker {
		case "root":
			info.RootEventID = tag[1]
		case "reply":
			info.ReplyToID = tag[1]
		default:
			info.MentionedIDs = append(info.MentionedIDs, tag[1])
		}
	}

	if info.ReplyToID != "" && info.RootEventID == "" {
		info.RootEventID = info.ReplyToID
	}

	return info
}

func parsePositionalFormat(eTags []nostr.Tag) *ThreadInfo {
	info := &ThreadInfo{MentionedIDs: make([]string, 0)}

	switch len(eTags) {
	case 1:
		info.RootEventID = eTags[0][1]
		info.ReplyToID = eTags[0][1]
	case 2:
		info.RootEventID = eTags[0][1]
		info.ReplyToID = eTags[1][1]
	default:
		info.RootEventID = eTags[0][1]
		info.ReplyToID = eTags[len(eTags)-1][1]
		for i := 1; i < len(eTags)-1; i++ {
			info.MentionedIDs = append(info.MentionedIDs, eTags[i][1])
		}
	}

	return info
}

// IsReply returns true if this event replies to another event
func (ti *ThreadInfo) IsReply() bool {
	return ti.ReplyToID != ""
}

// ReferencedEventIDs returns the e tag targets in tag order, without duplicates
func ReferencedEventIDs(event *nostr.Event) []string {
	return tagValues(event, "e")
}

// ReferencedPubKeys returns the p tag targets in tag order, without duplicates
func ReferencedPubKeys(event *nostr.Event) []string {
	return tagValues(event, "p")
}

func tagValues(event *nostr.Event, name string) []string {
	values := make([]string, 0)
	seen := make(map[string]bool)
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == name && tag[1] != "" && !seen[tag[1]] {
			seen[tag[1]] = true
			values = append(values, tag[1])
		}
	}
	return values
}
