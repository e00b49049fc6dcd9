// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import "strings"

// isEmojiRune reports whether r falls in the documented emoji range set
// (the glossary's "emoji range set"), grounded rune-for-range on
// original_source's sanitise_for_path.
func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F600 && r <= 0x1F64F: // Emoticons
	case r >= 0x1F300 && r <= 0x1F5FF: // Misc symbols and pictographs
	case r >= 0x1F680 && r <= 0x1F6FF: // Transport and map
	case r >= 0x1F700 && r <= 0x1F77F: // Alchemical symbols
	case r >= 0x1F780 && r <= 0x1F7FF: // Geometric shapes extended
	case r >= 0x1F800 && r <= 0x1F8FF: // Supplemental arrows-C
	case r >= 0x1F900 && r <= 0x1F9FF: // Supplemental symbols and pictographs
	case r >= 0x1FA00 && r <= 0x1FA6F: // Chess symbols
	case r >= 0x1FA70 && r <= 0x1FAFF: // Symbols and pictographs extended-A
	case r >= 0x2600 && r <= 0x26FF: // Misc symbols
	case r >= 0x2700 && r <= 0x27BF: // Dingbats
	case r >= 0x231A && r <= 0x231B: // Watch, hourglass
	case r >= 0x23E9 && r <= 0x23F3: // Media-control symbols
	case r >= 0x23F8 && r <= 0x23FA: // Pause, record, fast-forward
	case r >= 0x25AA && r <= 0x25AB: // Small squares
	case r >= 0x25B6 && r <= 0x25C0: // Play/reverse buttons
	case r >= 0x25FB && r <= 0x25FE: // Medium squares
	case r >= 0x1F1E0 && r <= 0x1F1FF: // Regional indicators (flags)
	case r >= 0x1F004 && r <= 0x1F0CF: // Mahjong, cards
	case r >= 0xFE00 && r <= 0xFE0F: // Variation selectors
	case r == 0x200D: // Zero-width joiner
	case r >= 0x2934 && r <= 0x2935: // Arrows
	case r >= 0x2B05 && r <= 0x2B07: // Arrows
	case r >= 0x2B1B && r <= 0x2B1C: // Squares
	case r == 0x2B50: // Star
	case r == 0x2B55: // Circle
	case r == 0x3030: // Wavy dash
	case r == 0x303D: // Part alternation mark
	case r == 0x3297: // Circled ideograph congratulation
	case r == 0x3299: // Circled ideograph secret
	default:
		return false
	}
	return true
}

// Sanitize converts a human-readable title/name into a filesystem-safe
// directory name, per §4.1: drop emoji runes, replace '/' and NUL with
// '_', collapse consecutive spaces, trim leading/trailing spaces and
// trailing dots, and substitute "_" for an otherwise empty result.
//
// Sanitize is deterministic and idempotent: Sanitize(Sanitize(s)) ==
// Sanitize(s) for all s.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for _, r := range name {
		switch {
		case r == 0:
			b.WriteByte('_')
		case r == '/':
			b.WriteByte('_')
		case isEmojiRune(r):
			// dropped entirely
		default:
			b.WriteRune(r)
		}
	}

	collapsed := collapseSpaces(b.String())
	trimmed := strings.TrimRight(collapsed, " .")
	trimmed = strings.TrimLeft(trimmed, " ")

	if trimmed == "" {
		return "_"
	}
	return trimmed
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		if r == ' ' {
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return b.String()
}
