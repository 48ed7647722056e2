package notice

// Locale identifies the language a notice is rendered in.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleFR Locale = "fr"
)

// Locales returns every supported locale.
func Locales() []Locale {
	return []Locale{LocaleEN, LocaleFR}
}

// ParseLocale maps a raw locale string to a supported Locale. Unknown or
// empty values fall back to English; the mapping is total and never fails.
func ParseLocale(raw string) Locale {
	switch Locale(raw) {
	case LocaleFR:
		return LocaleFR
	default:
		return LocaleEN
	}
}
