package textproc

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanEmpty(t *testing.T) {
	if got := Clean("", CleanOptions{}); got != "" {
		t.Errorf("Clean(\"\") = %q, want empty", got)
	}
}

func TestCleanStripsHTML(t *testing.T) {
	in := "<p>Hello <b>world</b></p><br>Second&nbsp;line"
	got := Clean(in, CleanOptions{})
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("Clean left HTML tags: %q", got)
	}
	if !strings.Contains(got, "Hello world") {
		t.Errorf("Clean lost text content: %q", got)
	}
	if strings.Contains(got, "&nbsp;") {
		t.Errorf("Clean left HTML entity: %q", got)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tabs", "a\tb", "a b"},
		{"crlf", "a\r\nb", "a\nb"},
		{"multi newline", "a\n\n\n\nb", "a\n\nb"},
		{"multi space", "a    b", "a b"},
		{"line trim", "  a  \n  b  ", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeWhitespace(tt.in); got != tt.want {
				t.Errorf("NormalizeWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanRemovesSignature(t *testing.T) {
	in := "My login is broken.\n\nBest regards,\nJohn Doe\nAcme Corp"
	got := Clean(in, CleanOptions{})
	if strings.Contains(got, "John Doe") {
		t.Errorf("signature not removed: %q", got)
	}
	if !strings.Contains(got, "My login is broken.") {
		t.Errorf("content lost: %q", got)
	}
}

func TestCleanFoldsTurkish(t *testing.T) {
	got := Clean("Şifremi değiştiremiyorum", CleanOptions{FoldTurkish: true, KeepSignatures: true})
	if strings.ContainsAny(got, "şŞığüöç") {
		t.Errorf("Turkish characters not folded: %q", got)
	}
}

func TestMaskPII(t *testing.T) {
	in := "Contact me at jane.doe@example.com or +1 555 123 4567, see https://example.com/order"
	got, m := MaskPII(in)

	if strings.Contains(got, "jane.doe@example.com") {
		t.Errorf("email not masked: %q", got)
	}
	if !strings.Contains(got, "[EMAIL_0]") {
		t.Errorf("email placeholder missing: %q", got)
	}
	if len(m.Emails) != 1 || m.Emails[0] != "jane.doe@example.com" {
		t.Errorf("email map = %v", m.Emails)
	}
	if len(m.Phones) != 1 {
		t.Errorf("phone map = %v", m.Phones)
	}
	if len(m.URLs) != 1 {
		t.Errorf("url map = %v", m.URLs)
	}
}

func TestMaskPIISkipsShortNumbers(t *testing.T) {
	got, m := MaskPII("My order number is 12345")
	if len(m.Phones) != 0 {
		t.Errorf("short number masked as phone: %q %v", got, m.Phones)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLang string
	}{
		{"english", "Hello, I cannot log into my account and I need help resetting my password please.", "en"},
		{"empty", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, conf := DetectLanguage(tt.in)
			if lang != tt.wantLang {
				t.Errorf("DetectLanguage(%q) = %q, want %q", tt.in, lang, tt.wantLang)
			}
			if conf < 0.5 || conf > 0.95 {
				t.Errorf("confidence %v out of range", conf)
			}
		})
	}
}

func TestExtractKeyPhrases(t *testing.T) {
	in := `The "export to PDF" button shows ERR-4092 every time. Error code: TIMEOUT-7`
	got := ExtractKeyPhrases(in, 5)

	want := map[string]bool{"export to PDF": true, "ERR-4092": true, "TIMEOUT-7": true}
	for _, p := range got {
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("missing phrases %v from %v", want, got)
	}
}

func TestExtractKeyPhrasesDedup(t *testing.T) {
	got := ExtractKeyPhrases(`"ABC-1" and ABC-1 again`, 5)
	if len(got) != 1 {
		t.Errorf("want 1 deduped phrase, got %v", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long sentence", 10, "this is..."},
		// Multibyte text cuts on rune boundaries, never mid-sequence.
		{"ödeme işlemi gerçekleşmedi", 10, "ödeme i..."},
		{"şikayet", 5, "şi..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
	for _, max := range []int{4, 5, 6, 7} {
		if got := Truncate("çğıöşü repeated çğıöşü", max); !utf8.ValidString(got) {
			t.Errorf("Truncate at %d produced invalid UTF-8: %q", max, got)
		}
	}
}
