// Package unicodesec screens untrusted strings for homoglyph operators,
// BiDi/zero-width obfuscation, and other Unicode tricks used to smuggle
// shell injection past a naive ASCII-only filter. Every predicate is pure;
// Screen reports the first hit as a ThreatKind plus the offending
// codepoint so callers can
// build a sanitized, educational error message (spec §7 allows disclosing
// these codepoints — unlike paths or stack traces).
package unicodesec

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ThreatKind enumerates the category of Unicode obfuscation detected.
type ThreatKind int

const (
	ThreatNone ThreatKind = iota
	ThreatDangerousControl
	ThreatHomoglyphOperator
	ThreatZeroWidthOrBiDi
	ThreatSmartQuote
	ThreatCombiningOrInvisible
)

func (k ThreatKind) String() string {
	switch k {
	case ThreatDangerousControl:
		return "dangerous control character"
	case ThreatHomoglyphOperator:
		return "homoglyph operator"
	case ThreatZeroWidthOrBiDi:
		return "zero-width or BiDi control character"
	case ThreatSmartQuote:
		return "PowerShell smart quote"
	case ThreatCombiningOrInvisible:
		return "stray combining mark or invisible character"
	default:
		return "none"
	}
}

// Finding describes one rejected codepoint.
type Finding struct {
	Kind      ThreatKind
	Rune      rune
	ASCIILike string // the ASCII operator this codepoint imitates, if any
}

func (f Finding) Error() string {
	if f.ASCIILike != "" {
		return fmt.Sprintf("%s: Unicode variant of blocked operator: %s (U+%04X imitates %q)",
			f.Kind, f.ASCIILike, f.Rune, f.ASCIILike)
	}
	return fmt.Sprintf("%s: rejected codepoint U+%04X", f.Kind, f.Rune)
}

// homoglyphOperators maps ASCII shell operators to Unicode lookalikes an
// attacker might substitute to slip past an ASCII-only blocklist.
var homoglyphOperators = map[rune]string{
	'｜': "|", // fullwidth vertical line
	'│': "|", // box drawing light vertical
	'┃': "|", // box drawing heavy vertical
	'¦': "|", // broken bar
	'∣': "|", // divides
	'；': ";", // fullwidth semicolon
	';': ";", // Greek question mark (looks like ;)
	'＆': "&", // fullwidth ampersand
	'﹠': "&", // small ampersand
	'＞': ">", // fullwidth greater-than
	'→': ">", // rightwards arrow
	'❭': ">", // medium right-pointing angle bracket
	'›': ">", // single right-pointing angle quotation mark
	'＜': "<", // fullwidth less-than
	'←': "<", // leftwards arrow
	'❬': "<", // medium left-pointing angle bracket
	'‹': "<", // single left-pointing angle quotation mark
}

// smartQuotes are accepted everywhere except when the active shell is
// PowerShell, which interprets some of these as real quote characters.
var smartQuotes = map[rune]bool{
	'‘': true, '’': true, '“': true, '”': true,
	'′': true, '″': true,
}

func isDangerousControl(r rune) bool {
	switch {
	case r >= 0x0000 && r <= 0x0008:
		return true
	case r >= 0x000B && r <= 0x000C:
		return true
	case r >= 0x000E && r <= 0x001F:
		return true
	case r == 0x007F:
		return true
	}
	return false
}

func isZeroWidthOrBiDi(r rune) bool {
	switch r {
	case 0x200B, 0x200C, 0x200D, 0xFEFF:
		return true
	}
	if r >= 0x202A && r <= 0x202E {
		return true
	}
	if r >= 0x2066 && r <= 0x2069 {
		return true
	}
	return false
}

func isCombiningOrInvisible(r rune) bool {
	if r >= 0x0300 && r <= 0x036F {
		return true
	}
	if r >= 0x20D0 && r <= 0x20FF {
		return true
	}
	if r >= 0xFE00 && r <= 0xFE0F { // variation selectors
		return true
	}
	if r == 0x2060 { // word joiner
		return true
	}
	if r == 0x00AD { // soft hyphen
		return true
	}
	// Arabic letter mark and related form-shaping controls.
	if r == 0x061C || (r >= 0x0600 && r <= 0x0605) {
		return true
	}
	return false
}

// Screen runs every predicate over s in the fixed order specified: dangerous
// controls, homoglyph operators, zero-width/BiDi, PowerShell smart quotes
// (only when isPowerShell), then stray combining marks / invisibles on the
// NFC-normalized form. First match wins; rejection is terminal.
func Screen(s string, isPowerShell bool) *Finding {
	for _, r := range s {
		if isDangerousControl(r) {
			return &Finding{Kind: ThreatDangerousControl, Rune: r}
		}
	}

	for _, r := range s {
		if ascii, ok := homoglyphOperators[r]; ok {
			return &Finding{Kind: ThreatHomoglyphOperator, Rune: r, ASCIILike: ascii}
		}
	}

	for _, r := range s {
		if isZeroWidthOrBiDi(r) {
			return &Finding{Kind: ThreatZeroWidthOrBiDi, Rune: r}
		}
	}

	if isPowerShell {
		for _, r := range s {
			if smartQuotes[r] {
				return &Finding{Kind: ThreatSmartQuote, Rune: r}
			}
		}
	}

	normalized := norm.NFC.String(s)
	for _, r := range normalized {
		if isCombiningOrInvisible(r) {
			return &Finding{Kind: ThreatCombiningOrInvisible, Rune: r}
		}
	}

	return nil
}

// Valid reports whether b is well-formed UTF-8; Screen already skips
// utf8.RuneError via range decoding, this helper is exposed for callers
// validating raw byte slices before they become strings.
func Valid(b []byte) bool {
	return utf8.Valid(b)
}
