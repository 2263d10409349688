package config

import (
	"os"
	"strings"
)

// SystemLanguages returns the ISO 639-1 codes of the languages configured
// for the process, read from LANGUAGE (colon separated) and LANG.
func SystemLanguages() []string {
	seen := make(map[string]bool)
	var codes []string

	add := func(locale string) {
		code := languageCode(locale)
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		codes = append(codes, code)
	}

	for _, locale := range strings.Split(os.Getenv("LANGUAGE"), ":") {
		add(locale)
	}
	add(os.Getenv("LC_ALL"))
	add(os.Getenv("LANG"))

	if len(codes) == 0 {
		return []string{"en"}
	}
	return codes
}

// DefaultLanguage returns the first system language
func DefaultLanguage() string {
	return SystemLanguages()[0]
}

// languageCode reduces a POSIX locale like "pt_BR.UTF-8" to "pt"
func languageCode(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if i := strings.IndexAny(locale, "_-"); i >= 0 {
		locale = locale[:i]
	}
	locale = strings.ToLower(locale)
	if locale == "" || locale == "c" || locale == "posix" {
		return ""
	}
	return locale
}
