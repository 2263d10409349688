package account

import (
	"github.com/abadojack/whatlanggo"
)

// minDetectConfidence is the language detection confidence below which text
// is left untranslated
const minDetectConfidence = 0.5

// TranslateTo returns the language translations target
func (a *Account) TranslateTo() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.translateTo
}

// DontTranslateFrom returns the languages the owner reads, sorted
func (a *Account) DontTranslateFrom() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return sortedKeys(a.dontTranslateFrom)
}

// AddDontTranslateFrom marks a language as one the owner reads
func (a *Account) AddDontTranslateFrom(language string) {
	a.mu.Lock()
	a.dontTranslateFrom[language] = struct{}{}
	a.mu.Unlock()

	a.languages.Invalidate()
	a.saveable.Invalidate()
}

// UpdateTranslateTo sets the translation target
func (a *Account) UpdateTranslateTo(language string) {
	a.mu.Lock()
	a.translateTo = language
	a.mu.Unlock()

	a.languages.Invalidate()
	a.saveable.Invalidate()
}

// Prefer records which side of a source/target pair the owner wants shown
func (a *Account) Prefer(source, target, preference string) {
	a.mu.Lock()
	a.languagePreferences[pairKey(source, target)] = preference
	a.mu.Unlock()

	a.saveable.Invalidate()
}

// PreferenceBetween returns the recorded preference for a language pair
func (a *Account) PreferenceBetween(source, target string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pref, ok := a.languagePreferences[pairKey(source, target)]
	return pref, ok
}

// ShouldTranslate detects the language of text and reports whether it
// should be translated: the detection must be reliable and the language
// neither one the owner reads nor the target itself.
func (a *Account) ShouldTranslate(text string) (string, bool) {
	info := whatlanggo.Detect(text)
	lang := info.Lang.Iso6391()
	if lang == "" || info.Confidence < minDetectConfidence {
		return lang, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, reads := a.dontTranslateFrom[lang]; reads || lang == a.translateTo {
		return lang, false
	}
	return lang, true
}

func pairKey(source, target string) string {
	return source + "," + target
}
