package common

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateBytes(t *testing.T) {
	short, truncated := TruncateBytes("hello", 10)
	assert.Equal(t, "hello", short)
	assert.False(t, truncated)

	cut, truncated := TruncateBytes("hello world", 5)
	assert.Equal(t, "hello", cut)
	assert.True(t, truncated)

	// Zero or negative limit disables truncation
	full, truncated := TruncateBytes(strings.Repeat("x", 100), 0)
	assert.Len(t, full, 100)
	assert.False(t, truncated)
}

func TestTruncateBytesNeverSplitsRunes(t *testing.T) {
	// "日" is 3 bytes in UTF-8; cutting at 4 would split the second rune
	s := "日本語"
	cut, truncated := TruncateBytes(s, 4)

	assert.True(t, truncated)
	assert.Equal(t, "日", cut)
	assert.True(t, utf8.ValidString(cut))

	for limit := 1; limit < len(s); limit++ {
		cut, _ := TruncateBytes(s, limit)
		assert.True(t, utf8.ValidString(cut), "limit %d produced invalid UTF-8", limit)
		assert.LessOrEqual(t, len(cut), limit)
	}
}

func TestValidateTargetURL(t *testing.T) {
	cases := []struct {
		url       string
		allowTest bool
		wantErr   bool
	}{
		{"https://example.com", false, false},
		{"http://example.com/health", false, false},
		{"ftp://example.com", false, true},
		{"example.com", false, true},
		{"https://", false, true},
		{"http://localhost:8080", false, true},
		{"http://localhost:8080", true, false},
		{"http://127.0.0.1", false, true},
		{"http://127.0.0.1", true, false},
		{"http://10.0.0.5", false, true},
		{"http://192.168.1.1", false, true},
	}

	for _, tc := range cases {
		err := ValidateTargetURL(tc.url, tc.allowTest)
		if tc.wantErr {
			assert.Error(t, err, "url %q allowTest=%v", tc.url, tc.allowTest)
		} else {
			assert.NoError(t, err, "url %q allowTest=%v", tc.url, tc.allowTest)
		}
	}
}
