// Package search implements the fuzzy matching and composite scoring
// pipeline: literal tiers, a typo-tolerant fuzzy scorer, and bounded
// top-K selection over an Index snapshot.
package search

import "github.com/fastfind/filepick/internal/index"

// MatchType names the tier that produced a candidate's base score.
type MatchType string

const (
	MatchNone      MatchType = "none"
	MatchExact     MatchType = "exact"
	MatchPrefix    MatchType = "prefix"
	MatchSubstring MatchType = "substring"
	MatchFuzzy     MatchType = "fuzzy"
)

// Score is the breakdown behind one candidate's ranking, returned
// alongside its FileEntry so callers (and tests) can audit why a result
// ranked where it did.
type Score struct {
	Total                int
	BaseScore            int
	FilenameBonus        int
	SpecialFilenameBonus int
	FrecencyBoost        int
	DistancePenalty      int
	MatchType            MatchType
	MatchedPositions     []int // indices into the matched field (name or relative path), for highlighting
}

// Options configures one Search call. Zero values are replaced by the
// engine's configured defaults.
type Options struct {
	MaxResults  int
	MaxThreads  int
	CurrentFile string // absolute path of the caller's current buffer, or ""
}

// Result is the ranked outcome of one query.
type Result struct {
	Items        []*index.FileEntry
	Scores       []Score
	TotalMatched int
	TotalFiles   int
}
