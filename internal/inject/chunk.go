package inject

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// utf16Len is the number of UTF-16 code units in s.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// chunkText splits text into pieces whose size, as measured by size, does
// not exceed limit. Grapheme clusters are kept whole unless a single
// cluster is larger than limit, in which case it is split between runes.
func chunkText(text string, limit int, size func(string) int) []string {
	if text == "" || limit <= 0 {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	curSize := 0

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curSize = 0
		}
	}
	add := func(piece string, n int) {
		if curSize+n > limit {
			flush()
		}
		cur.WriteString(piece)
		curSize += n
	}

	g := uniseg.NewGraphemes(text)
	for g.Next() {
		cluster := g.Str()
		n := size(cluster)
		if n <= limit {
			add(cluster, n)
			continue
		}
		for _, r := range cluster {
			piece := string(r)
			add(piece, size(piece))
		}
	}
	flush()
	return chunks
}

// typedChunks splits text for synthetic Unicode key events.
func typedChunks(text string, maxUnits int) []string {
	return chunkText(text, maxUnits, utf16Len)
}

// scriptChunks splits text for AppleScript write calls.
func scriptChunks(text string, maxChars int) []string {
	return chunkText(text, maxChars, utf8.RuneCountInString)
}
