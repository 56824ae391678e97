// Package chunk splits raw text into overlapping, UTF-8-safe character
// windows for RAPTOR leaf nodes.
//
// Unlike internal/chunk's AST-aware code chunker, this is a plain
// character-window splitter: it has no notion of syntax and never fails to
// produce output for non-empty input, which keeps it usable on any file
// type the indexing driver hands it (including non-code text pulled into
// summary nodes).
package chunk

import "strings"

// DefaultMaxChars and DefaultOverlapChars are the fallback window sizes
// when a caller does not override them via config.
const (
	DefaultMaxChars     = 2000
	DefaultOverlapChars = 200
)

// Chunk splits text into chunks of at most maxChars bytes, overlapping
// consecutive chunks by overlapChars bytes where possible. It never
// returns a chunk larger than maxChars and always terminates, even on
// pathological multi-byte input, by forcing at least one byte of
// progress per iteration.
//
// Cut points prefer the last newline, then the last space, within the
// current window, to avoid splitting mid-word. Every returned chunk is
// trimmed of leading/trailing whitespace; chunks that trim to empty are
// dropped.
func Chunk(text string, maxChars, overlapChars int) []string {
	if len(text) == 0 || maxChars <= 0 {
		return nil
	}

	var chunks []string
	i := 0
	n := len(text)

	for i < n {
		rawEnd := i + maxChars
		if rawEnd > n {
			rawEnd = n
		}
		end := floorCharBoundary(text, rawEnd)

		cut := end
		if cut < n && cut > i {
			window := text[i:cut]
			if idx := strings.LastIndexByte(window, '\n'); idx >= 0 {
				cut = i + idx + 1
			} else if idx := strings.LastIndexByte(window, ' '); idx >= 0 {
				cut = i + idx + 1
			}
		}

		cut = ceilCharBoundary(text, cut)
		if cut <= i {
			cut = ceilCharBoundary(text, min(i+1, n))
		}
		if cut > n {
			cut = n
		}

		if cut > i {
			if piece := strings.TrimSpace(text[i:cut]); piece != "" {
				chunks = append(chunks, piece)
			}
		}

		nextI := cut
		if overlapChars < cut-i {
			nextI = cut - overlapChars
		}
		nextI = floorCharBoundary(text, nextI)

		if nextI <= i {
			i = ceilCharBoundary(text, max(cut, i+1))
		} else {
			i = nextI
		}

		if cut >= n || i >= n {
			break
		}
	}

	return chunks
}

// floorCharBoundary returns the nearest valid UTF-8 rune boundary at or
// before i.
func floorCharBoundary(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !isCharBoundary(s, i) {
		i--
	}
	return i
}

// ceilCharBoundary returns the nearest valid UTF-8 rune boundary at or
// after i.
func ceilCharBoundary(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i < len(s) && !isCharBoundary(s, i) {
		i++
	}
	return i
}

// isCharBoundary reports whether byte index i in s falls on a UTF-8 rune
// boundary. Index 0 and len(s) are always boundaries; any other index is
// a boundary iff the byte there is not a UTF-8 continuation byte.
func isCharBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
