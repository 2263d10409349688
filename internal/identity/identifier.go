package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ErrInvalidIdentifier is returned when a user-supplied identifier cannot be
// decoded into a hex event id or pubkey.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Identifier is the decoded form of a search string
type Identifier struct {
	Hex    string   // event id or pubkey
	Type   string   // "pubkey" or "event"
	Relays []string // relay hints carried by nprofile/nevent
}

// DecodeIdentifier turns an npub, nsec, note, nevent, nprofile or raw hex
// string into the hex value a lookup needs. A secret key decodes to its
// public key; it is never echoed back.
func DecodeIdentifier(input string) (*Identifier, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "nostr:")
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidIdentifier)
	}

	if isHex32(input) {
		return &Identifier{Hex: strings.ToLower(input), Type: "event"}, nil
	}

	prefix, value, err := nip19.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}

	switch prefix {
	case "npub":
		return &Identifier{Hex: value.(string), Type: "pubkey"}, nil
	case "nsec":
		id, err := New(value.(string))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
		}
		return &Identifier{Hex: id.PubKey(), Type: "pubkey"}, nil
	case "note":
		return &Identifier{Hex: value.(string), Type: "event"}, nil
	case "nevent":
		pointer := value.(nostr.EventPointer)
		return &Identifier{Hex: pointer.ID, Type: "event", Relays: pointer.Relays}, nil
	case "nprofile":
		pointer := value.(nostr.ProfilePointer)
		return &Identifier{Hex: pointer.PublicKey, Type: "pubkey", Relays: pointer.Relays}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported NIP-19 type %s", ErrInvalidIdentifier, prefix)
	}
}
