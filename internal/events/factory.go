package events

import (
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Signer is the identity the factory signs with
type Signer interface {
	KeyAgreement
	IsWriteable() bool
	Sign(evt *nostr.Event) error
}

// Factory builds signed events for one identity
type Factory struct {
	signer Signer
	clock  func() time.Time
}

// NewFactory creates a factory that stamps events with the wall clock
func NewFactory(signer Signer) *Factory {
	return &Factory{signer: signer, clock: time.Now}
}

// WithClock returns a copy of the factory reading time from clock
func (f *Factory) WithClock(clock func() time.Time) *Factory {
	return &Factory{signer: f.signer, clock: clock}
}

type buildOptions struct {
	createdAt *nostr.Timestamp
}

// BuildOption adjusts a single Build call
type BuildOption func(*buildOptions)

// WithCreatedAt pins the event timestamp
func WithCreatedAt(ts nostr.Timestamp) BuildOption {
	return func(o *buildOptions) {
		o.createdAt = &ts
	}
}

// Build assembles, hashes and signs the event for p
func (f *Factory) Build(p Payload, opts ...BuildOption) (*nostr.Event, error) {
	if f.signer == nil || !f.signer.IsWriteable() {
		return nil, ErrUnsigned
	}

	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	tags, content, err := p.assemble(f.signer)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = nostr.Tags{}
	}

	createdAt := nostr.Timestamp(f.clock().Unix())
	if o.createdAt != nil {
		createdAt = *o.createdAt
	}

	evt := &nostr.Event{
		PubKey:    f.signer.PubKey(),
		CreatedAt: createdAt,
		Kind:      int(p.Kind()),
		Tags:      tags,
		Content:   content,
	}
	if err := f.signer.Sign(evt); err != nil {
		return nil, fmt.Errorf("failed to sign %s event: %w", p.Kind(), err)
	}

	return evt, nil
}

func (f *Factory) CreateTextNote(content string, replyTo, mentions []string, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(TextNote{Content: content, ReplyTo: replyTo, Mentions: mentions}, opts...)
}

func (f *Factory) CreateMetadata(content string, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(Metadata{Content: content}, opts...)
}

func (f *Factory) CreateReaction(target *nostr.Event, content string, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(Reaction{Target: target, Content: content}, opts...)
}

// CreateLike reacts with "+"
func (f *Factory) CreateLike(target *nostr.Event, opts ...BuildOption) (*nostr.Event, error) {
	return f.CreateReaction(target, ReactionLike, opts...)
}

// CreateWarning reacts with the warning sign sent alongside a report
func (f *Factory) CreateWarning(target *nostr.Event, opts ...BuildOption) (*nostr.Event, error) {
	return f.CreateReaction(target, ReactionWarning, opts...)
}

func (f *Factory) CreateRepost(target *nostr.Event, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(Repost{Target: target}, opts...)
}

func (f *Factory) CreateDeletion(targets []string, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(Deletion{Targets: targets}, opts...)
}

func (f *Factory) CreateNoteReport(target *nostr.Event, reason ReportType, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(Report{Target: target, Type: reason}, opts...)
}

func (f *Factory) CreateUserReport(pubkey string, reason ReportType, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(Report{PubKey: pubkey, Type: reason}, opts...)
}

func (f *Factory) CreateChannel(data ChannelData, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(ChannelCreate{Data: data}, opts...)
}

func (f *Factory) CreateChannelMetadata(channel string, data ChannelData, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(ChannelMetadata{Channel: channel, Data: data}, opts...)
}

func (f *Factory) CreateChannelMessage(channel, content string, replyTo, mentions []string, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(ChannelMessage{Channel: channel, Content: content, ReplyTo: replyTo, Mentions: mentions}, opts...)
}

func (f *Factory) CreateDirectMessage(dm DirectMessage, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(dm, opts...)
}

func (f *Factory) CreateContactList(follows []Contact, relays map[string]ReadWrite, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(ContactListPayload{Follows: follows, Relays: relays}, opts...)
}

func (f *Factory) CreateRelayList(hints []RelayHint, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(RelayListPayload{Hints: hints}, opts...)
}

func (f *Factory) CreateZapRequest(req ZapRequest, opts ...BuildOption) (*nostr.Event, error) {
	return f.Build(req, opts...)
}
