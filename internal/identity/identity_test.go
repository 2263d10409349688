package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/sandwichfarm/nostrum/internal/config"
)

// BIP-340 test vector 0
const (
	testSecretKey = "0000000000000000000000000000000000000000000000000000000000000003"
	testPubKey    = "f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"
)

func TestNew(t *testing.T) {
	id, err := New(testSecretKey)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if id.PubKey() != testPubKey {
		t.Errorf("Expected pubkey %s, got %s", testPubKey, id.PubKey())
	}
	if !id.IsWriteable() {
		t.Error("Expected identity with secret key to be writeable")
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"too short", "abcd"},
		{"not hex", strings.Repeat("z", 64)},
		{"zero scalar", strings.Repeat("0", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.key); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestReadOnly(t *testing.T) {
	id, err := ReadOnly(testPubKey)
	if err != nil {
		t.Fatalf("ReadOnly() error = %v", err)
	}

	if id.IsWriteable() {
		t.Error("Expected read-only identity")
	}

	evt := &nostr.Event{Kind: 1, Content: "hello"}
	if err := id.Sign(evt); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from Sign, got %v", err)
	}
	if _, err := id.SharedSecret(testPubKey); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from SharedSecret, got %v", err)
	}
	if _, err := id.Nsec(); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from Nsec, got %v", err)
	}
}

func TestSignAndVerify(t *testing.T) {
	id := Generate()

	evt := &nostr.Event{
		Kind:      1,
		CreatedAt: nostr.Timestamp(1700000000),
		Tags:      nostr.Tags{{"p", testPubKey}},
		Content:   "hello nostr",
	}
	if err := id.Sign(evt); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if evt.PubKey != id.PubKey() {
		t.Errorf("Expected pubkey %s, got %s", id.PubKey(), evt.PubKey)
	}
	if !Verify(evt) {
		t.Fatal("Expected signed event to verify")
	}

	evt.Content = "tampered"
	if Verify(evt) {
		t.Error("Expected tampered event to fail verification")
	}
}

func TestSharedSecretIsSymmetric(t *testing.T) {
	alice := Generate()
	bob := Generate()

	ab, err := alice.SharedSecret(bob.PubKey())
	if err != nil {
		t.Fatalf("SharedSecret() error = %v", err)
	}
	ba, err := bob.SharedSecret(alice.PubKey())
	if err != nil {
		t.Fatalf("SharedSecret() error = %v", err)
	}

	if string(ab) != string(ba) {
		t.Error("Expected both sides to derive the same secret")
	}
}

func TestFromConfig(t *testing.T) {
	writer, _ := New(testSecretKey)
	nsec, err := writer.Nsec()
	if err != nil {
		t.Fatalf("Nsec() error = %v", err)
	}

	tests := []struct {
		name      string
		cfg       config.Identity
		writeable bool
		wantErr   bool
	}{
		{name: "nsec bech32", cfg: config.Identity{Nsec: nsec}, writeable: true},
		{name: "nsec hex", cfg: config.Identity{Nsec: testSecretKey}, writeable: true},
		{name: "npub only", cfg: config.Identity{Npub: writer.Npub()}, writeable: false},
		{name: "nsec wins over npub", cfg: config.Identity{Npub: writer.Npub(), Nsec: nsec}, writeable: true},
		{name: "nothing", cfg: config.Identity{}, wantErr: true},
		{name: "garbage npub", cfg: config.Identity{Npub: "npub1notbech32"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := FromConfig(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromConfig() error = %v", err)
			}
			if id.PubKey() != testPubKey {
				t.Errorf("Expected pubkey %s, got %s", testPubKey, id.PubKey())
			}
			if id.IsWriteable() != tt.writeable {
				t.Errorf("Expected writeable=%v, got %v", tt.writeable, id.IsWriteable())
			}
		})
	}
}

func TestDecodeIdentifier(t *testing.T) {
	writer, _ := New(testSecretKey)
	nsec, _ := writer.Nsec()
	eventID := strings.Repeat("ab", 32)
	note, _ := nip19.EncodeNote(eventID)
	nevent, _ := nip19.EncodeEvent(eventID, []string{"wss://relay.test"}, "")
	nprofile, _ := nip19.EncodeProfile(testPubKey, []string{"wss://relay.test"})

	tests := []struct {
		name     string
		input    string
		wantHex  string
		wantType string
		relays   int
	}{
		{"npub", writer.Npub(), testPubKey, "pubkey", 0},
		{"nsec decodes to pubkey", nsec, testPubKey, "pubkey", 0},
		{"note", note, eventID, "event", 0},
		{"nostr uri", "nostr:" + note, eventID, "event", 0},
		{"nevent", nevent, eventID, "event", 1},
		{"nprofile", nprofile, testPubKey, "pubkey", 1},
		{"raw hex", strings.ToUpper(eventID), eventID, "event", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeIdentifier(tt.input)
			if err != nil {
				t.Fatalf("DecodeIdentifier() error = %v", err)
			}
			if got.Hex != tt.wantHex {
				t.Errorf("Expected hex %s, got %s", tt.wantHex, got.Hex)
			}
			if got.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, got.Type)
			}
			if len(got.Relays) != tt.relays {
				t.Errorf("Expected %d relay hints, got %d", tt.relays, len(got.Relays))
			}
		})
	}
}

func TestDecodeIdentifierErrors(t *testing.T) {
	for _, input := range []string{"", "npub1garbage", "hello world", "abcd"} {
		if _, err := DecodeIdentifier(input); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("DecodeIdentifier(%q) expected ErrInvalidIdentifier, got %v", input, err)
		}
	}
}
