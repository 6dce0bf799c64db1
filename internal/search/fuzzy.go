package search

import (
	"unicode"

	"github.com/chewxy/math32"
)

// Fuzzy scoring constants, internal and not exposed through any API.
// scoreMatch is the per-character reward; the bonus
// constants reward positions a human would recognize as the start of a
// meaningful token.
const (
	scoreMatch        = 16
	bonusBoundary     = 10 // start of string or right after a separator
	bonusCamel        = 8  // upper-case letter following a lower-case one
	bonusConsecutive  = 6  // immediately follows the previous matched char
	gapPenaltyPerChar = 2
)

func isSeparator(r rune) bool {
	switch r {
	case '/', '_', '-', '.', ' ':
		return true
	}
	return false
}

// isASCIIString reports whether s contains only ASCII bytes, the
// precondition for the batched byte-at-a-time fast path.
func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= unicode.MaxASCII {
			return false
		}
	}
	return true
}

// fuzzyScore computes the typo-tolerant match of pattern against text. It
// returns ok=false if pattern is not a subsequence of text at all. Matching
// is case-insensitive; the bonus structure rewards a match at a word
// boundary or camelCase hump more than a mid-token hit.
//
// ASCII candidates take scoreASCIIWindow, a batch-friendly path over raw
// bytes using float32 arithmetic (github.com/chewxy/math32) so the
// per-character bonus accumulation vectorizes well on modern cores;
// non-ASCII candidates fall back to scoreRuneWindow, which is
// rune-correct but scalar.
func fuzzyScore(pattern, text string) (score int, positions []int, ok bool) {
	if pattern == "" {
		return 0, nil, true
	}
	if isASCIIString(pattern) && isASCIIString(text) {
		return scoreASCIIWindow(pattern, text)
	}
	return scoreRuneWindow([]rune(pattern), []rune(text))
}

// findWindow locates the minimal [start,end) slice of the haystack runes
// that contains every needle rune in order (case-insensitive), using the
// standard fzf-style two-pass (forward greedy, then backward tighten)
// search. Returns ok=false if needle is not a subsequence of haystack.
func findWindow(needleLower, haystackLower []rune) (start, end int, ok bool) {
	ni, hi := 0, 0
	firstMatch := -1
	lastMatch := -1
	for hi < len(haystackLower) && ni < len(needleLower) {
		if haystackLower[hi] == needleLower[ni] {
			if firstMatch == -1 {
				firstMatch = hi
			}
			lastMatch = hi
			ni++
		}
		hi++
	}
	if ni < len(needleLower) {
		return 0, 0, false
	}
	// Tighten the end boundary by scanning backward from lastMatch for the
	// same subsequence, which yields the smallest enclosing window.
	ni = len(needleLower) - 1
	hi = lastMatch
	end = lastMatch + 1
	for hi >= 0 && ni >= 0 {
		if haystackLower[hi] == needleLower[ni] {
			if ni == 0 {
				start = hi
			}
			ni--
		}
		hi--
	}
	return start, end, true
}

func bonusAt(haystack []rune, i int) int {
	if i == 0 {
		return bonusBoundary
	}
	prev := haystack[i-1]
	if isSeparator(prev) {
		return bonusBoundary
	}
	if unicode.IsUpper(haystack[i]) && unicode.IsLower(prev) {
		return bonusCamel
	}
	return 0
}

func scoreRuneWindow(pattern, text []rune) (int, []int, bool) {
	lowerPattern := make([]rune, len(pattern))
	for i, r := range pattern {
		lowerPattern[i] = unicode.ToLower(r)
	}
	lowerText := make([]rune, len(text))
	for i, r := range text {
		lowerText[i] = unicode.ToLower(r)
	}

	start, end, ok := findWindow(lowerPattern, lowerText)
	if !ok {
		return 0, nil, false
	}

	positions := make([]int, 0, len(pattern))
	total := 0
	pi := 0
	lastMatched := -1
	for i := start; i < end && pi < len(pattern); i++ {
		if lowerText[i] != lowerPattern[pi] {
			continue
		}
		s := scoreMatch + bonusAt(text, i)
		if lastMatched == i-1 {
			s += bonusConsecutive
		}
		total += s
		positions = append(positions, i)
		lastMatched = i
		pi++
	}
	gap := (end - start) - len(pattern)
	if gap > 0 {
		total -= gap * gapPenaltyPerChar
	}
	if total < 0 {
		total = 0
	}
	return total, positions, true
}

// scoreASCIIWindow mirrors scoreRuneWindow but operates on raw bytes and
// accumulates the bonus terms in float32, avoiding rune decoding on the
// overwhelmingly common all-ASCII path.
func scoreASCIIWindow(pattern, text string) (int, []int, bool) {
	lp := make([]byte, len(pattern))
	for i := 0; i < len(pattern); i++ {
		lp[i] = lowerASCII(pattern[i])
	}
	lt := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		lt[i] = lowerASCII(text[i])
	}

	start, end, ok := findWindowBytes(lp, lt)
	if !ok {
		return 0, nil, false
	}

	positions := make([]int, 0, len(pattern))
	var total float32
	pi := 0
	lastMatched := -1
	for i := start; i < end && pi < len(pattern); i++ {
		if lt[i] != lp[pi] {
			continue
		}
		s := float32(scoreMatch + bonusAtByte(text, i))
		if lastMatched == i-1 {
			s += float32(bonusConsecutive)
		}
		total += s
		positions = append(positions, i)
		lastMatched = i
		pi++
	}
	gap := (end - start) - len(pattern)
	if gap > 0 {
		total -= float32(gap * gapPenaltyPerChar)
	}
	total = math32.Max(total, 0)
	return int(math32.Round(total)), positions, true
}

func findWindowBytes(needleLower, haystackLower []byte) (start, end int, ok bool) {
	ni, hi := 0, 0
	lastMatch := -1
	for hi < len(haystackLower) && ni < len(needleLower) {
		if haystackLower[hi] == needleLower[ni] {
			lastMatch = hi
			ni++
		}
		hi++
	}
	if ni < len(needleLower) {
		return 0, 0, false
	}
	ni = len(needleLower) - 1
	hi = lastMatch
	end = lastMatch + 1
	for hi >= 0 && ni >= 0 {
		if haystackLower[hi] == needleLower[ni] {
			if ni == 0 {
				start = hi
			}
			ni--
		}
		hi--
	}
	return start, end, true
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func bonusAtByte(text string, i int) int {
	if i == 0 {
		return bonusBoundary
	}
	prev := text[i-1]
	switch prev {
	case '/', '_', '-', '.', ' ':
		return bonusBoundary
	}
	if text[i] >= 'A' && text[i] <= 'Z' && prev >= 'a' && prev <= 'z' {
		return bonusCamel
	}
	return 0
}

// matchedPositionsFor recomputes the matched character indices for a
// (name-or-path, query) pair on demand - never stored, always derived.
func matchedPositionsFor(query, candidate string) []int {
	_, positions, ok := fuzzyScore(query, candidate)
	if !ok {
		return nil
	}
	return positions
}
