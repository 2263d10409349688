package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/sandwichfarm/nostrum/internal/config"
)

var (
	// ErrInvalidKey is returned for malformed secret or public keys
	ErrInvalidKey = errors.New("invalid key")
	// ErrReadOnly is returned when an operation needs the secret key
	ErrReadOnly = errors.New("identity has no secret key")
)

// Identity is the keypair of the logged-in user. The secret key is optional;
// without it the identity can only read.
type Identity struct {
	pubKey    string
	secretKey string
}

// New creates a writeable identity from a hex secret key
func New(secretKey string) (*Identity, error) {
	pubKey, err := derivePublicKey(secretKey)
	if err != nil {
		return nil, err
	}
	return &Identity{pubKey: pubKey, secretKey: strings.ToLower(secretKey)}, nil
}

// ReadOnly creates an identity that knows only the public key
func ReadOnly(pubKey string) (*Identity, error) {
	if !isHex32(pubKey) {
		return nil, fmt.Errorf("%w: public key must be 64 hex characters", ErrInvalidKey)
	}
	return &Identity{pubKey: strings.ToLower(pubKey)}, nil
}

// Generate creates a fresh writeable identity
func Generate() *Identity {
	id, err := New(nostr.GeneratePrivateKey())
	if err != nil {
		// GeneratePrivateKey always yields a valid scalar
		panic(err)
	}
	return id
}

// FromConfig builds the identity from an nsec (preferred) or npub
func FromConfig(cfg *config.Identity) (*Identity, error) {
	if cfg.Nsec != "" {
		secretKey := cfg.Nsec
		if strings.HasPrefix(secretKey, "nsec1") {
			prefix, value, err := nip19.Decode(secretKey)
			if err != nil {
				return nil, fmt.Errorf("failed to decode nsec: %w", err)
			}
			if prefix != "nsec" {
				return nil, fmt.Errorf("%w: expected nsec, got %s", ErrInvalidKey, prefix)
			}
			secretKey = value.(string)
		}
		return New(secretKey)
	}

	if cfg.Npub == "" {
		return nil, fmt.Errorf("%w: no npub or nsec configured", ErrInvalidKey)
	}
	prefix, value, err := nip19.Decode(cfg.Npub)
	if err != nil {
		return nil, fmt.Errorf("failed to decode npub: %w", err)
	}
	if prefix != "npub" {
		return nil, fmt.Errorf("%w: expected npub, got %s", ErrInvalidKey, prefix)
	}
	return ReadOnly(value.(string))
}

// PubKey returns the hex public key
func (i *Identity) PubKey() string {
	return i.pubKey
}

// IsWriteable reports whether the identity can sign
func (i *Identity) IsWriteable() bool {
	return i.secretKey != ""
}

// Npub returns the bech32 public key
func (i *Identity) Npub() string {
	npub, err := nip19.EncodePublicKey(i.pubKey)
	if err != nil {
		return i.pubKey
	}
	return npub
}

// Nsec returns the bech32 secret key
func (i *Identity) Nsec() (string, error) {
	if !i.IsWriteable() {
		return "", ErrReadOnly
	}
	return nip19.EncodePrivateKey(i.secretKey)
}

// Sign fills in the event's pubkey, id and signature
func (i *Identity) Sign(evt *nostr.Event) error {
	if !i.IsWriteable() {
		return ErrReadOnly
	}
	evt.PubKey = i.pubKey
	if err := evt.Sign(i.secretKey); err != nil {
		return fmt.Errorf("failed to sign event: %w", err)
	}
	return nil
}

// SharedSecret derives the NIP-04 key agreement secret with another pubkey
func (i *Identity) SharedSecret(theirPubKey string) ([]byte, error) {
	if !i.IsWriteable() {
		return nil, ErrReadOnly
	}
	secret, err := nip04.ComputeSharedSecret(theirPubKey, i.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	return secret, nil
}

// Verify checks that the event id matches its content and the signature
// verifies against the id and pubkey.
func Verify(evt *nostr.Event) bool {
	if evt.GetID() != evt.ID {
		return false
	}
	ok, err := evt.CheckSignature()
	return err == nil && ok
}

func derivePublicKey(secretKey string) (string, error) {
	if !isHex32(secretKey) {
		return "", fmt.Errorf("%w: secret key must be 64 hex characters", ErrInvalidKey)
	}
	raw, err := hex.DecodeString(secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return "", fmt.Errorf("%w: secret key is zero", ErrInvalidKey)
	}

	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}

func isHex32(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
