package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty string", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"maxLen 4 (minimum)", "hello", 4, "h..."},
		{"maxLen 3 (too small)", "hello", 3, "hello"},
		{"maxLen 0", "hello", 0, "hello"},
		{"maxLen negative", "hello", -1, "hello"},
		{"unicode string", "hÃ©llo wÃ¶rld", 8, "hÃ©llo..."},
		{"unicode truncation", "æ—¥æœ¬èªãƒ†ã‚¹ãƒˆ", 5, "æ—¥æœ¬..."},
		{"emoji", "ğŸ‘‹ğŸŒğŸ‰", 2, "ğŸ‘‹ğŸŒğŸ‰"},                 // maxLen < 4, returns unchanged
		{"emoji no truncate", "ğŸ‘‹ğŸŒğŸ‰ğŸš€ğŸŒŸ", 5, "ğŸ‘‹ğŸŒğŸ‰ğŸš€ğŸŒŸ"}, // exactly 5 runes = maxLen
		{"emoji truncate", "ğŸ‘‹ğŸŒğŸ‰ğŸš€ğŸŒŸğŸŠ", 5, "ğŸ‘‹ğŸŒ..."},   // 6 runes > maxLen 5
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"simple", "Dark Mode", 0, "dark-mode"},
		{"punctuation", "  New checkout (v2)!", 0, "new-checkout-v2"},
		{"already a slug", "variation-1", 0, "variation-1"},
		{"only symbols", "%%%", 0, ""},
		{"non ascii dropped", "Größe", 0, "gr-e"},
		{"truncated", "a very long variation name", 10, "a-very-lon"},
		{"trailing hyphen trimmed after truncation", "abcd efgh", 5, "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Slugify(tt.s, tt.maxLen))
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, SplitList("a, b,,c ,"))
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , "))
}

func BenchmarkTruncate(b *testing.B) {
	s := "This is a moderately long string that will need to be truncated"
	for range b.N {
		_ = Truncate(s, 20)
	}
}

func BenchmarkTruncate_NoTruncation(b *testing.B) {
	s := "short"
	for range b.N {
		_ = Truncate(s, 20)
	}
}

func BenchmarkTruncate_Unicode(b *testing.B) {
	s := "æ—¥æœ¬èªã®ãƒ†ã‚¹ãƒˆæ–‡å­—åˆ—ã§ã™"
	for range b.N {
		_ = Truncate(s, 8)
	}
}
