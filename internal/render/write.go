// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "strings"

// MaxMessageSize is Telegram's per-message text limit; longer writes are
// split across several outgoing messages (§4.5).
const MaxMessageSize = 4096

// ValidText reports whether data looks like human-authored text rather
// than a binary payload accidentally written to "messages", per §4.5: a
// NUL byte always disqualifies it; otherwise the ratio of non-printable
// bytes (excluding \n, \r, \t) must stay within tolerance — at most one
// such byte for inputs under 20 bytes, else at most 5%.
func ValidText(data []byte) bool {
	nonPrintable := 0
	for _, b := range data {
		if b == 0 {
			return false
		}
		if b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		if b < 0x20 {
			nonPrintable++
		}
	}
	if len(data) < 20 {
		return nonPrintable <= 1
	}
	return float64(nonPrintable) <= float64(len(data))*0.05
}

// TrimTrailingNewline removes trailing \n and \r bytes from text, the way
// a line-oriented editor's final write typically ends a buffer.
func TrimTrailingNewline(text string) string {
	return strings.TrimRight(text, "\n\r")
}

// SplitMessage splits text into chunks no larger than maxSize bytes,
// preferring to break at whitespace. maxSize <= 0 uses MaxMessageSize.
//
// For each chunk, it searches backward from the maxSize boundary for a
// whitespace byte; if found, the chunk ends there and the whitespace
// byte is dropped (not included in either chunk). If no whitespace
// exists within the chunk, it hard-splits at maxSize. This mirrors
// original_source's split_message byte-for-byte.
func SplitMessage(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = MaxMessageSize
	}
	data := []byte(text)

	var chunks []string
	pos := 0
	for pos < len(data) {
		remaining := len(data) - pos
		if remaining <= maxSize {
			chunks = append(chunks, string(data[pos:]))
			break
		}

		end := pos + maxSize
		splitAt := -1
		for i := end; i > pos; i-- {
			if isSplitWhitespace(data[i-1]) {
				splitAt = i - 1
				break
			}
		}

		if splitAt == -1 {
			chunks = append(chunks, string(data[pos:end]))
			pos = end
			continue
		}

		chunks = append(chunks, string(data[pos:splitAt]))
		pos = splitAt + 1 // drop the whitespace byte itself
	}
	return chunks
}

func isSplitWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
