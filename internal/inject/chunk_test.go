package inject

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTypedChunks(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{name: "ascii", text: strings.Repeat("abcdefghij", 7)},
		{name: "astral emoji", text: strings.Repeat("😀", 15)},
		{name: "family zwj sequences", text: strings.Repeat("👨‍👩‍👧‍👦 ", 4)},
		{name: "combining marks", text: strings.Repeat("é", 30)},
		{name: "cjk", text: "列出当前目录下所有大于一百兆的文件并按大小排序输出结果"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := typedChunks(tc.text, 20)
			assert.Equal(t, tc.text, strings.Join(chunks, ""))
			for _, c := range chunks {
				assert.LessOrEqual(t, utf16Len(c), 20)
				assert.NotEmpty(t, c)
				assert.True(t, utf8.ValidString(c))
			}
		})
	}
}

func TestChunksKeepGraphemesWhole(t *testing.T) {
	// Each cluster is two runes; a limit of three must not split one.
	text := strings.Repeat("e\u0301", 5)
	chunks := chunkText(text, 3, utf8.RuneCountInString)
	assert.Len(t, chunks, 5)
	for _, c := range chunks {
		assert.Equal(t, "e\u0301", c)
	}
}

func TestOversizedClusterIsSplit(t *testing.T) {
	// A family emoji is 11 UTF-16 units, larger than a limit of 4.
	family := "👨‍👩‍👧‍👦"
	chunks := typedChunks(family, 4)
	assert.Equal(t, family, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, utf16Len(c), 4)
	}
}

func TestScriptChunks(t *testing.T) {
	chunks := scriptChunks(strings.Repeat("x", 70), 32)
	assert.Equal(t, []string{strings.Repeat("x", 32), strings.Repeat("x", 32), strings.Repeat("x", 6)}, chunks)
	assert.Nil(t, scriptChunks("", 32))
}

func TestUTF16Len(t *testing.T) {
	assert.Equal(t, 3, utf16Len("abc"))
	assert.Equal(t, 2, utf16Len("😀"))
	assert.Equal(t, 1, utf16Len("é"))
}
