// Package textproc cleans and normalizes raw ticket text before any
// analysis runs. All functions are pure; no I/O, no state.
package textproc

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls which cleaning stages run.
type CleanOptions struct {
	KeepHTML       bool // skip HTML stripping
	KeepSignatures bool // skip signature removal
	MaskPII        bool // replace emails/phones/URLs with placeholders
	FoldTurkish    bool // convert Turkish characters to ASCII
}

// PIIMap records the original values removed by MaskPII, keyed by kind.
type PIIMap struct {
	Emails []string
	Phones []string
	URLs   []string
}

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	htmlBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
	urlRe       = regexp.MustCompile(`https?://[a-zA-Z0-9$\-_@.&+!*(),%/?=#~:]+`)
	emailRe     = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)
	phoneRe     = regexp.MustCompile(`[+]?[(]?[0-9]{1,3}[)]?[-\s.]?[0-9]{1,4}[-\s.]?[0-9]{1,4}[-\s.]?[0-9]{1,9}`)

	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	multiSpaceRe   = regexp.MustCompile(` {2,}`)

	quotedRe    = regexp.MustCompile(`"([^"]+)"`)
	capsTokenRe = regexp.MustCompile(`\b[A-Z][A-Z0-9_\-]{2,}\b`)
	errorCodeRe = regexp.MustCompile(`(?i)\b(?:error|hata)\s*(?:code|kodu)?:?\s*([A-Z0-9\-]+)`)
)

// Signature blocks commonly trailing support emails, English and Turkish.
var signatureRes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)--\s*\n.*`),
	regexp.MustCompile(`(?is)Best regards?,?.*`),
	regexp.MustCompile(`(?is)Kind regards?,?.*`),
	regexp.MustCompile(`(?is)Regards?,?.*`),
	regexp.MustCompile(`(?is)Thanks?,?.*`),
	regexp.MustCompile(`(?is)Saygılarımla.*`),
	regexp.MustCompile(`(?is)İyi günler.*`),
	regexp.MustCompile(`(?is)Sent from my (?:iPhone|iPad|Android).*`),
}

var turkishFold = strings.NewReplacer(
	"ı", "i", "İ", "I",
	"ğ", "g", "Ğ", "G",
	"ü", "u", "Ü", "U",
	"ş", "s", "Ş", "S",
	"ö", "o", "Ö", "O",
	"ç", "c", "Ç", "C",
)

// Clean runs the full normalization pipeline: NFC normalization, HTML
// stripping, optional Turkish folding, whitespace normalization,
// signature removal, and optional PII masking. Empty input yields "".
func Clean(raw string, opts CleanOptions) string {
	if raw == "" {
		return ""
	}

	text := norm.NFC.String(raw)

	if !opts.KeepHTML {
		text = StripHTML(text)
	}
	if opts.FoldTurkish {
		text = turkishFold.Replace(text)
	}

	text = NormalizeWhitespace(text)

	if !opts.KeepSignatures {
		text = StripSignatures(text)
	}
	if opts.MaskPII {
		text, _ = MaskPII(text)
	}

	return strings.TrimSpace(text)
}

// StripHTML removes tags, turning block-level breaks into newlines and
// unescaping entities.
func StripHTML(text string) string {
	text = htmlBreakRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	return html.UnescapeString(text)
}

// NormalizeWhitespace collapses runs of whitespace: tabs become spaces,
// line endings become \n, 3+ newlines collapse to 2, space runs collapse
// to one, and every line is trimmed.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	text = multiSpaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// StripSignatures removes trailing email signature blocks.
func StripSignatures(text string) string {
	for _, re := range signatureRes {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// MaskPII replaces emails, phone numbers, and URLs with indexed
// placeholders, returning the originals so callers can restore them.
// Short digit runs (<7 chars) are left alone to avoid eating order
// numbers.
func MaskPII(text string) (string, PIIMap) {
	var m PIIMap

	for _, email := range emailRe.FindAllString(text, -1) {
		text = strings.Replace(text, email, fmt.Sprintf("[EMAIL_%d]", len(m.Emails)), 1)
		m.Emails = append(m.Emails, email)
	}
	for _, phone := range phoneRe.FindAllString(text, -1) {
		if len(phone) < 7 {
			continue
		}
		text = strings.Replace(text, phone, fmt.Sprintf("[PHONE_%d]", len(m.Phones)), 1)
		m.Phones = append(m.Phones, phone)
	}
	for _, url := range urlRe.FindAllString(text, -1) {
		text = strings.Replace(text, url, fmt.Sprintf("[URL_%d]", len(m.URLs)), 1)
		m.URLs = append(m.URLs, url)
	}

	return text, m
}

// DetectLanguage returns the ISO-639-1 code of the text's language and
// an estimated confidence. Confidence grows with text length, capped at
// 0.95. Undetectable text defaults to English at 0.5.
func DetectLanguage(text string) (string, float64) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "en", 0.5
	}

	info := whatlanggo.Detect(trimmed)
	code := info.Lang.Iso6391()
	if code == "" || !info.IsReliable() {
		return "en", 0.5
	}

	confidence := 0.5 + float64(len(trimmed))/1000
	if confidence > 0.95 {
		confidence = 0.95
	}
	return code, confidence
}

// ExtractKeyPhrases pulls out quoted phrases, ALL-CAPS tokens (product
// names, error identifiers), and error codes. Duplicates are removed
// case-insensitively; first-seen order is preserved.
func ExtractKeyPhrases(text string, max int) []string {
	var phrases []string

	for _, match := range quotedRe.FindAllStringSubmatch(text, -1) {
		phrases = append(phrases, match[1])
	}
	phrases = append(phrases, capsTokenRe.FindAllString(text, -1)...)
	for _, match := range errorCodeRe.FindAllStringSubmatch(text, -1) {
		phrases = append(phrases, match[1])
	}

	seen := make(map[string]bool)
	unique := make([]string, 0, len(phrases))
	for _, p := range phrases {
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
		if len(unique) == max {
			break
		}
	}
	return unique
}

// Truncate cuts text to max characters, appending "..." when trimmed.
// Characters are runes, so multibyte text is never split mid-sequence.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
