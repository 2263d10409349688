package events

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Payload is the semantic content of one event kind. The set of payloads is
// closed; only this package can add to it.
type Payload interface {
	Kind() Kind
	assemble(s Signer) (nostr.Tags, string, error)
}

// Reaction contents with special meaning
const (
	ReactionLike    = "+"
	ReactionWarning = "⚠️"
)

// ReportType is the NIP-56 reason attached to a report
type ReportType string

const (
	ReportSpam          ReportType = "spam"
	ReportNudity        ReportType = "nudity"
	ReportProfanity     ReportType = "profanity"
	ReportIllegal       ReportType = "illegal"
	ReportImpersonation ReportType = "impersonation"
)

// Valid reports whether t is a known report reason
func (t ReportType) Valid() bool {
	switch t {
	case ReportSpam, ReportNudity, ReportProfanity, ReportIllegal, ReportImpersonation:
		return true
	}
	return false
}

// TextNote is a kind 1 post, optionally replying to events and mentioning users
type TextNote struct {
	Content  string
	ReplyTo  []string
	Mentions []string
}

func (TextNote) Kind() Kind { return KindTextNote }

func (p TextNote) assemble(Signer) (nostr.Tags, string, error) {
	return referenceTags(nil, p.ReplyTo, p.Mentions), p.Content, nil
}

// Metadata is a kind 0 profile update; Content is the profile JSON
type Metadata struct {
	Content string
}

func (Metadata) Kind() Kind { return KindMetadata }

func (p Metadata) assemble(Signer) (nostr.Tags, string, error) {
	return nostr.Tags{}, p.Content, nil
}

// Reaction is a kind 7 reaction to Target
type Reaction struct {
	Target  *nostr.Event
	Content string
}

func (Reaction) Kind() Kind { return KindReaction }

func (p Reaction) assemble(Signer) (nostr.Tags, string, error) {
	if p.Target == nil || p.Target.ID == "" {
		return nil, "", fmt.Errorf("%w: reaction needs a target event", ErrInvalidPayload)
	}
	return nostr.Tags{{"e", p.Target.ID}, {"p", p.Target.PubKey}}, p.Content, nil
}

// Repost is a kind 6 boost of Target
type Repost struct {
	Target *nostr.Event
}

func (Repost) Kind() Kind { return KindRepost }

func (p Repost) assemble(Signer) (nostr.Tags, string, error) {
	if p.Target == nil || p.Target.ID == "" {
		return nil, "", fmt.Errorf("%w: repost needs a target event", ErrInvalidPayload)
	}
	content, err := json.Marshal(p.Target)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode reposted event: %w", err)
	}
	return nostr.Tags{{"e", p.Target.ID}, {"p", p.Target.PubKey}}, string(content), nil
}

// Deletion is a kind 5 request to delete the listed events
type Deletion struct {
	Targets []string
}

func (Deletion) Kind() Kind { return KindDeletion }

func (p Deletion) assemble(Signer) (nostr.Tags, string, error) {
	if len(p.Targets) == 0 {
		return nil, "", fmt.Errorf("%w: deletion needs at least one target", ErrInvalidPayload)
	}
	tags := make(nostr.Tags, 0, len(p.Targets))
	for _, id := range p.Targets {
		if id == "" {
			return nil, "", fmt.Errorf("%w: empty deletion target", ErrInvalidPayload)
		}
		tags = append(tags, nostr.Tag{"e", id})
	}
	return tags, "", nil
}

// Report is a kind 1984 report against a note (Target set) or a user
// (only PubKey set).
type Report struct {
	Target *nostr.Event
	PubKey string
	Type   ReportType
}

func (Report) Kind() Kind { return KindReport }

func (p Report) assemble(Signer) (nostr.Tags, string, error) {
	if !p.Type.Valid() {
		return nil, "", fmt.Errorf("%w: unknown report type %q", ErrInvalidPayload, p.Type)
	}
	reason := string(p.Type)
	if p.Target != nil {
		if p.Target.ID == "" {
			return nil, "", fmt.Errorf("%w: report target has no id", ErrInvalidPayload)
		}
		return nostr.Tags{{"e", p.Target.ID, reason}, {"p", p.Target.PubKey, reason}}, "", nil
	}
	if p.PubKey == "" {
		return nil, "", fmt.Errorf("%w: report needs a note or a user", ErrInvalidPayload)
	}
	return nostr.Tags{{"p", p.PubKey, reason}}, "", nil
}

// ChannelData is the JSON content of channel create/metadata events
type ChannelData struct {
	Name    string `json:"name"`
	About   string `json:"about"`
	Picture string `json:"picture"`
}

// ChannelCreate is a kind 40 public chat creation
type ChannelCreate struct {
	Data ChannelData
}

func (ChannelCreate) Kind() Kind { return KindChannelCreate }

func (p ChannelCreate) assemble(Signer) (nostr.Tags, string, error) {
	content, err := json.Marshal(p.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode channel data: %w", err)
	}
	return nostr.Tags{}, string(content), nil
}

// ChannelMetadata is a kind 41 update to an existing channel
type ChannelMetadata struct {
	Channel string
	Data    ChannelData
}

func (ChannelMetadata) Kind() Kind { return KindChannelMetadata }

func (p ChannelMetadata) assemble(Signer) (nostr.Tags, string, error) {
	if p.Channel == "" {
		return nil, "", fmt.Errorf("%w: channel metadata needs a channel id", ErrInvalidPayload)
	}
	content, err := json.Marshal(p.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode channel data: %w", err)
	}
	return nostr.Tags{{"e", p.Channel}}, string(content), nil
}

// ChannelMessage is a kind 42 message posted to a channel
type ChannelMessage struct {
	Channel  string
	Content  string
	ReplyTo  []string
	Mentions []string
}

func (ChannelMessage) Kind() Kind { return KindChannelMessage }

func (p ChannelMessage) assemble(Signer) (nostr.Tags, string, error) {
	if p.Channel == "" {
		return nil, "", fmt.Errorf("%w: channel message needs a channel id", ErrInvalidPayload)
	}
	root := nostr.Tags{{"e", p.Channel, "", "root"}}
	return referenceTags(root, p.ReplyTo, p.Mentions), p.Content, nil
}

// ContactListPayload is a kind 3 contact list. It always carries the full
// follow set.
type ContactListPayload struct {
	Follows []Contact
	Relays  map[string]ReadWrite
}

func (ContactListPayload) Kind() Kind { return KindContactList }

func (p ContactListPayload) assemble(Signer) (nostr.Tags, string, error) {
	content, err := EncodeRelayMap(p.Relays)
	if err != nil {
		return nil, "", err
	}
	return ContactTags(p.Follows), content, nil
}

// RelayListPayload is a NIP-65 kind 10002 relay list
type RelayListPayload struct {
	Hints []RelayHint
}

func (RelayListPayload) Kind() Kind { return KindRelayList }

func (p RelayListPayload) assemble(Signer) (nostr.Tags, string, error) {
	return RelayListTags(p.Hints), "", nil
}

// ZapRequest is a NIP-57 kind 9734 request; it is signed but handed to a
// lightning service, not published.
type ZapRequest struct {
	Recipient string
	EventID   string
	Relays    []string
	Amount    int64 // millisats, zero when unspecified
	Comment   string
}

func (ZapRequest) Kind() Kind { return KindZapRequest }

func (p ZapRequest) assemble(Signer) (nostr.Tags, string, error) {
	if p.Recipient == "" {
		return nil, "", fmt.Errorf("%w: zap request needs a recipient", ErrInvalidPayload)
	}
	relays := append(nostr.Tag{"relays"}, p.Relays...)
	tags := nostr.Tags{relays, {"p", p.Recipient}}
	if p.EventID != "" {
		tags = append(tags, nostr.Tag{"e", p.EventID})
	}
	if p.Amount > 0 {
		tags = append(tags, nostr.Tag{"amount", strconv.FormatInt(p.Amount, 10)})
	}
	return tags, p.Comment, nil
}

// referenceTags appends one e tag per reply and one p tag per mention,
// in the order supplied.
func referenceTags(tags nostr.Tags, replyTo, mentions []string) nostr.Tags {
	if tags == nil {
		tags = make(nostr.Tags, 0, len(replyTo)+len(mentions))
	}
	for _, id := range replyTo {
		tags = append(tags, nostr.Tag{"e", id})
	}
	for _, pk := range mentions {
		tags = append(tags, nostr.Tag{"p", pk})
	}
	return tags
}
