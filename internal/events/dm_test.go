package events

import (
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/nostrum/internal/identity"
)

func TestAdvertisementMarkerLength(t *testing.T) {
	if len(AdvertisementMarker) != 16 {
		t.Errorf("Expected marker of 16 bytes, got %d", len(AdvertisementMarker))
	}
}

func TestDirectMessageRoundTrip(t *testing.T) {
	alice := identity.Generate()
	bob := identity.Generate()
	factory := NewFactory(alice)

	tests := []struct {
		name      string
		plaintext string
		advertise bool
	}{
		{"advertised", "hello bob", true},
		{"not advertised", "hello bob", false},
		{"empty message advertised", "", true},
		{"text that looks like the marker", "[//]: # (nip18)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := factory.CreateDirectMessage(DirectMessage{
				Recipient:        bob.PubKey(),
				Content:          tt.plaintext,
				PublishRecipient: true,
				Advertise:        tt.advertise,
			}, WithCreatedAt(fixedTime))
			if err != nil {
				t.Fatalf("CreateDirectMessage() error = %v", err)
			}

			if evt.Content == tt.plaintext {
				t.Error("Expected ciphertext content")
			}
			if !identity.Verify(evt) {
				t.Error("Expected DM to verify")
			}

			// recipient side uses the author key
			got, ok := DecryptDirectMessage(evt, bob)
			if !ok || got != tt.plaintext {
				t.Errorf("Recipient decrypt = (%q, %v), want %q", got, ok, tt.plaintext)
			}

			// author side uses the recipient tag
			got, ok = DecryptDirectMessage(evt, alice)
			if !ok || got != tt.plaintext {
				t.Errorf("Author decrypt = (%q, %v), want %q", got, ok, tt.plaintext)
			}
		})
	}
}

func TestDirectMessageTags(t *testing.T) {
	alice := identity.Generate()
	bob := identity.Generate()
	factory := NewFactory(alice)

	evt, err := factory.CreateDirectMessage(DirectMessage{
		Recipient:        bob.PubKey(),
		Content:          "hi",
		ReplyTo:          []string{"prev-dm"},
		Mentions:         []string{"someone"},
		PublishRecipient: true,
	})
	if err != nil {
		t.Fatalf("CreateDirectMessage() error = %v", err)
	}

	expected := nostr.Tags{{"p", bob.PubKey()}, {"e", "prev-dm"}, {"p", "someone"}}
	if len(evt.Tags) != len(expected) {
		t.Fatalf("Expected %d tags, got %v", len(expected), evt.Tags)
	}
	for i := range expected {
		if strings.Join(evt.Tags[i], ",") != strings.Join(expected[i], ",") {
			t.Errorf("Tag %d: expected %v, got %v", i, expected[i], evt.Tags[i])
		}
	}

	hidden, err := factory.CreateDirectMessage(DirectMessage{Recipient: bob.PubKey(), Content: "hi"})
	if err != nil {
		t.Fatalf("CreateDirectMessage() error = %v", err)
	}
	if len(hidden.Tags) != 0 {
		t.Errorf("Expected no tags without PublishRecipient, got %v", hidden.Tags)
	}
}

func TestDecryptDirectMessageFailures(t *testing.T) {
	alice := identity.Generate()
	bob := identity.Generate()
	eve := identity.Generate()

	evt, err := NewFactory(alice).CreateDirectMessage(DirectMessage{
		Recipient:        bob.PubKey(),
		Content:          "secret",
		PublishRecipient: true,
	})
	if err != nil {
		t.Fatalf("CreateDirectMessage() error = %v", err)
	}

	if got, _ := DecryptDirectMessage(evt, eve); got == "secret" {
		t.Error("Expected wrong key not to recover the plaintext")
	}

	garbage := *evt
	garbage.Content = "not-base64?iv=???"
	if got, ok := DecryptDirectMessage(&garbage, bob); ok || got != "" {
		t.Errorf("Expected malformed ciphertext to fail, got (%q, %v)", got, ok)
	}

	note := &nostr.Event{Kind: 1, PubKey: alice.PubKey(), Content: "plain"}
	if _, ok := DecryptDirectMessage(note, bob); ok {
		t.Error("Expected non-DM kinds to be rejected")
	}

	readOnly, _ := identity.ReadOnly(bob.PubKey())
	if _, ok := DecryptDirectMessage(evt, readOnly); ok {
		t.Error("Expected read-only identity to fail decryption")
	}
}
