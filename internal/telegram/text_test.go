package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitByBytes(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitByBytes("short", 4096))

	parts := splitByBytes(strings.Repeat("a", 10), 4)
	assert.Equal(t, []string{"aaaa", "aaaa", "aa"}, parts)

	// "é" is two bytes; chunks must never cut a rune in half.
	parts = splitByBytes("ééé", 3)
	assert.Equal(t, []string{"é", "é", "é"}, parts)
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateByBytes("abc", 10))
	assert.Equal(t, "ab", truncateByBytes("abcdef", 2))
	assert.Equal(t, "é", truncateByBytes("éé", 3))
}

func TestSniffMIMEType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	assert.Equal(t, "image/webp", sniffMIMEType("image/webp; charset=binary", png))
	assert.Equal(t, "image/png", sniffMIMEType("application/octet-stream", png))
	assert.Equal(t, "image/png", sniffMIMEType("", png))
	assert.Equal(t, "image/jpeg", sniffMIMEType("", nil))
}

func TestFileNameFor(t *testing.T) {
	assert.Equal(t, "image.png", fileNameFor("image/png"))
	assert.Equal(t, "image.png", fileNameFor("application/x-unknown"))
}
