package events

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

// AdvertisementMarker is prepended to DM plaintext when the sender wants the
// message recognizable as a NIP-18 style DM. Its length is part of the wire
// format.
const AdvertisementMarker = "[//]: # (nip18)\n"

// DirectMessage is a kind 4 NIP-04 encrypted message
type DirectMessage struct {
	Recipient string
	Content   string
	ReplyTo   []string
	Mentions  []string

	// PublishRecipient adds the recipient p tag so relays can index the DM
	PublishRecipient bool
	// Advertise prepends AdvertisementMarker to the plaintext
	Advertise bool
}

func (DirectMessage) Kind() Kind { return KindEncryptedDM }

func (p DirectMessage) assemble(s Signer) (nostr.Tags, string, error) {
	if p.Recipient == "" {
		return nil, "", fmt.Errorf("%w: direct message needs a recipient", ErrInvalidPayload)
	}

	secret, err := s.SharedSecret(p.Recipient)
	if err != nil {
		return nil, "", err
	}

	plaintext := p.Content
	if p.Advertise {
		plaintext = AdvertisementMarker + plaintext
	}

	ciphertext, err := nip04.Encrypt(plaintext, secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encrypt direct message: %w", err)
	}

	var tags nostr.Tags
	if p.PublishRecipient {
		tags = nostr.Tags{{"p", p.Recipient}}
	}
	return referenceTags(tags, p.ReplyTo, p.Mentions), ciphertext, nil
}

// KeyAgreement is the part of an identity needed to read DMs
type KeyAgreement interface {
	PubKey() string
	SharedSecret(theirPubKey string) ([]byte, error)
}

// RecipientOf returns the first p tag of a DM, or "" if there is none
func RecipientOf(evt *nostr.Event) string {
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == "p" {
			return tag[1]
		}
	}
	return ""
}

// DecryptDirectMessage decrypts a kind 4 event addressed to or sent by self.
// Any failure yields ("", false).
func DecryptDirectMessage(evt *nostr.Event, self KeyAgreement) (string, bool) {
	if evt == nil || evt.Kind != int(KindEncryptedDM) {
		return "", false
	}

	counterparty := evt.PubKey
	if evt.PubKey == self.PubKey() {
		if recipient := RecipientOf(evt); recipient != "" {
			counterparty = recipient
		}
	}

	secret, err := self.SharedSecret(counterparty)
	if err != nil {
		return "", false
	}

	plaintext, err := decrypt(evt.Content, secret)
	if err != nil || !utf8.ValidString(plaintext) {
		return "", false
	}

	return strings.TrimPrefix(plaintext, AdvertisementMarker), true
}

// decrypt wraps nip04.Decrypt, which can panic on some malformed inputs
func decrypt(content string, secret []byte) (plaintext string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed ciphertext: %v", r)
		}
	}()
	return nip04.Decrypt(content, secret)
}
