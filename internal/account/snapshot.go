package account

import (
	"slices"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
	"github.com/sandwichfarm/nostrum/internal/config"
	"github.com/sandwichfarm/nostrum/internal/relays"
)

// Snapshot is the persisted form of an account
type Snapshot struct {
	PubKey              string                  `yaml:"pubkey"`
	FollowingChannels   []string                `yaml:"following_channels"`
	HiddenUsers         []string                `yaml:"hidden_users"`
	LocalRelays         []relays.RelaySetupInfo `yaml:"local_relays"`
	DontTranslateFrom   []string                `yaml:"dont_translate_from"`
	LanguagePreferences map[string]string       `yaml:"language_preferences,omitempty"`
	TranslateTo         string                  `yaml:"translate_to"`
	ZapAmounts          []int64                 `yaml:"zap_amounts"`
	BackupContactList   *nostr.Event            `yaml:"backup_contact_list,omitempty"`
}

// DefaultSnapshot is the state of an account that has never been saved
func DefaultSnapshot(pubkey string, cfg *config.Config) Snapshot {
	return Snapshot{
		PubKey:              pubkey,
		FollowingChannels:   slices.Clone(cfg.Account.DefaultChannels),
		LocalRelays:         relays.FromConfig(cfg.Relays.Local),
		DontTranslateFrom:   config.SystemLanguages(),
		LanguagePreferences: map[string]string{},
		TranslateTo:         cfg.Account.TranslateTo,
		ZapAmounts:          slices.Clone(cfg.Account.ZapAmounts),
	}
}

// Snapshot captures the persisted state. Transient hides are session-only
// and left out.
func (a *Account) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Snapshot{
		PubKey:              a.identity.PubKey(),
		FollowingChannels:   sortedKeys(a.followingChannels),
		HiddenUsers:         a.moderation.Hidden(),
		LocalRelays:         slices.Clone(a.localRelays),
		DontTranslateFrom:   sortedKeys(a.dontTranslateFrom),
		LanguagePreferences: lo.Assign(a.languagePreferences),
		TranslateTo:         a.translateTo,
		ZapAmounts:          slices.Clone(a.zapAmounts),
		BackupContactList:   a.backupContactList,
	}
}
