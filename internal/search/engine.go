package search

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fastfind/filepick/internal/index"
)

// Composite scoring constants. Tiers are kept
// well separated so a literal hit never loses to a fuzzy one on the same
// query, while the bonus/penalty terms only ever reorder within a tier or
// nudge a strong match across a narrow tier boundary.
const (
	baseExact     = 1000
	basePrefix    = 700
	baseSubstring = 400

	bonusFilename        = 50
	bonusSpecialFilename = 30

	// Below this raw fuzzy score a candidate without a literal-tier hit
	// is dropped entirely. The default accepts anything that matched at
	// all; callers can raise it to cut marginal subsequence matches.
	defaultAcceptanceThreshold = 1

	frecencyScale    = 0.5
	frecencyBoostCap = 200

	depthPenaltyPerSegment   = 3
	editDistancePenaltyPerOp = 2
	currentFilePenalty       = 100000
)

// defaultSpecialFilenames lists basenames (stem, extension stripped) that
// get a small bonus regardless of tier - the files a developer reaches
// for by name more often than the ranking would otherwise predict.
var defaultSpecialFilenames = []string{
	"readme", "license", "changelog", "makefile", "dockerfile",
	"main", "index", "lib", "mod", "init",
	"go.mod", "package.json", "cargo.toml",
}

// Config tunes an Engine's defaults. Zero values fall back to sensible
// built-ins, so the zero Config is usable.
type Config struct {
	DefaultMaxResults int
	DefaultMaxThreads int

	// AcceptanceThreshold is the minimum raw fuzzy score for a candidate
	// with no literal-tier hit; zero keeps the built-in default.
	AcceptanceThreshold int

	// SpecialFilenames overrides the built-in bonus set when non-empty.
	// Entries are matched case-insensitively against the name's stem and
	// against the full name.
	SpecialFilenames []string
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxResults <= 0 {
		c.DefaultMaxResults = 50
	}
	if c.DefaultMaxThreads <= 0 {
		c.DefaultMaxThreads = 4
	}
	if c.AcceptanceThreshold <= 0 {
		c.AcceptanceThreshold = defaultAcceptanceThreshold
	}
	if len(c.SpecialFilenames) == 0 {
		c.SpecialFilenames = defaultSpecialFilenames
	}
	return c
}

// Engine is the stateless scorer over an Index snapshot: one Search call
// takes a consistent point-in-time view via Index.Snapshot and never
// touches Index's internals again, so concurrent scans and git/frecency
// refreshes never block a query in flight.
type Engine struct {
	idx     *index.Index
	cfg     Config
	special map[string]bool
}

// New builds an Engine reading from idx.
func New(idx *index.Index, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	special := make(map[string]bool, len(cfg.SpecialFilenames))
	for _, name := range cfg.SpecialFilenames {
		special[strings.ToLower(name)] = true
	}
	return &Engine{idx: idx, cfg: cfg, special: special}
}

// Search ranks every entry currently in the index against query and
// returns the top opts.MaxResults. An empty query produces a
// frecency-and-freshness-only ordering rather than an empty result set.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (Result, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.cfg.DefaultMaxResults
	}
	if opts.MaxThreads <= 0 {
		opts.MaxThreads = e.cfg.DefaultMaxThreads
	}
	currentFile := opts.CurrentFile
	if currentFile == "" {
		currentFile = e.idx.CurrentFile()
	}

	entries := e.idx.Snapshot()
	totalFiles := len(entries)
	if totalFiles == 0 {
		return Result{TotalFiles: 0}, nil
	}

	threads := opts.MaxThreads
	if threads > len(entries) {
		threads = len(entries)
	}
	if threads < 1 {
		threads = 1
	}
	chunkSize := (len(entries) + threads - 1) / threads

	heaps := make([]*boundedHeap, threads)
	matchedCounts := make([]int, threads)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < threads; w++ {
		w := w
		start := w * chunkSize
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		if start >= end {
			heaps[w] = newBoundedHeap(opts.MaxResults)
			continue
		}
		g.Go(func() error {
			h := newBoundedHeap(opts.MaxResults)
			matched := 0
			for i := start; i < end; i++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				score, ok := e.score(entries[i], query, currentFile)
				if !ok {
					continue
				}
				matched++
				h.Offer(candidate{entryIdx: i, score: score})
			}
			heaps[w] = h
			matchedCounts[w] = matched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	totalMatched := 0
	var merged []candidate
	for w := range heaps {
		totalMatched += matchedCounts[w]
		merged = append(merged, heaps[w].items...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].score, merged[j].score
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		ea, eb := entries[merged[i].entryIdx], entries[merged[j].entryIdx]
		if ea.TotalFrecencyScore != eb.TotalFrecencyScore {
			return ea.TotalFrecencyScore > eb.TotalFrecencyScore
		}
		if len(ea.RelativePath) != len(eb.RelativePath) {
			return len(ea.RelativePath) < len(eb.RelativePath)
		}
		return ea.RelativePath < eb.RelativePath
	})
	if len(merged) > opts.MaxResults {
		merged = merged[:opts.MaxResults]
	}

	items := make([]*index.FileEntry, len(merged))
	scores := make([]Score, len(merged))
	for i, c := range merged {
		copyEntry := *entries[c.entryIdx]
		copyEntry.IsCurrentFile = currentFile != "" && copyEntry.AbsolutePath == currentFile
		items[i] = &copyEntry
		scores[i] = c.score
	}

	return Result{
		Items:        items,
		Scores:       scores,
		TotalMatched: totalMatched,
		TotalFiles:   totalFiles,
	}, nil
}

// score computes the composite Score for one entry, or ok=false if query
// doesn't match it at all (or the fuzzy tier falls below the acceptance
// threshold).
func (e *Engine) score(entry *index.FileEntry, query, currentFile string) (Score, bool) {
	if query == "" {
		return e.scoreEmptyQuery(entry, currentFile), true
	}

	nameLower := strings.ToLower(entry.Name)
	relLower := strings.ToLower(entry.RelativePath)
	queryLower := strings.ToLower(query)

	var (
		matchType    MatchType
		base         int
		matchedField string
		positions    []int
		inName       bool
	)

	switch {
	case nameLower == queryLower:
		matchType, base, matchedField, inName = MatchExact, baseExact, entry.Name, true
	case relLower == queryLower:
		matchType, base, matchedField, inName = MatchExact, baseExact, entry.RelativePath, false
	case strings.HasPrefix(nameLower, queryLower):
		matchType, base, matchedField, inName = MatchPrefix, basePrefix, entry.Name, true
	case strings.Contains(nameLower, queryLower):
		matchType, base, matchedField, inName = MatchSubstring, baseSubstring, entry.Name, true
	case strings.Contains(relLower, queryLower):
		matchType, base, matchedField, inName = MatchSubstring, baseSubstring, entry.RelativePath, false
	default:
		nameScore, namePositions, nameOK := fuzzyScore(query, entry.Name)
		relScore, relPositions, relOK := fuzzyScore(query, entry.RelativePath)
		switch {
		case nameOK && (!relOK || nameScore >= relScore):
			matchType, base, matchedField, positions, inName = MatchFuzzy, nameScore, entry.Name, namePositions, true
		case relOK:
			matchType, base, matchedField, positions, inName = MatchFuzzy, relScore, entry.RelativePath, relPositions, false
		default:
			return Score{}, false
		}
		if base < e.cfg.AcceptanceThreshold {
			return Score{}, false
		}
	}

	if positions == nil {
		positions = matchedPositionsFor(query, matchedField)
	}

	filenameBonus := 0
	if inName {
		filenameBonus = bonusFilename
	}

	specialBonus := 0
	stem := strings.ToLower(entry.Name)
	if dot := strings.LastIndexByte(stem, '.'); dot > 0 && dot != len(stem)-1 {
		if e.special[stem[:dot]] {
			specialBonus = bonusSpecialFilename
		}
	}
	if e.special[stem] {
		specialBonus = bonusSpecialFilename
	}

	frecencyBoost := int(frecencyScale * float64(entry.TotalFrecencyScore))
	if frecencyBoost > frecencyBoostCap {
		frecencyBoost = frecencyBoostCap
	}

	depth := strings.Count(entry.RelativePath, "/")
	dist := levenshtein(queryLower, strings.ToLower(matchedField))
	distancePenalty := depth*depthPenaltyPerSegment + dist*editDistancePenaltyPerOp
	if currentFile != "" && entry.AbsolutePath == currentFile {
		distancePenalty += currentFilePenalty
	}

	total := base + filenameBonus + specialBonus + frecencyBoost - distancePenalty

	return Score{
		Total:                total,
		BaseScore:            base,
		FilenameBonus:        filenameBonus,
		SpecialFilenameBonus: specialBonus,
		FrecencyBoost:        frecencyBoost,
		DistancePenalty:      distancePenalty,
		MatchType:            matchType,
		MatchedPositions:     positions,
	}, true
}

// scoreEmptyQuery ranks by frecency plus a small bump for files git
// considers dirty.
func (e *Engine) scoreEmptyQuery(entry *index.FileEntry, currentFile string) Score {
	frecencyBoost := int(frecencyScale * float64(entry.TotalFrecencyScore))
	if frecencyBoost > frecencyBoostCap {
		frecencyBoost = frecencyBoostCap
	}
	freshness := gitFreshnessBonus(entry.GitStatus)
	distancePenalty := 0
	if currentFile != "" && entry.AbsolutePath == currentFile {
		distancePenalty = currentFilePenalty
	}
	total := frecencyBoost + freshness - distancePenalty
	return Score{
		Total:           total,
		BaseScore:       freshness,
		FrecencyBoost:   frecencyBoost,
		DistancePenalty: distancePenalty,
		MatchType:       MatchNone,
	}
}

func gitFreshnessBonus(status index.GitStatus) int {
	switch status {
	case index.StatusModified, index.StatusStagedModified, index.StatusStagedNew, index.StatusUntracked, index.StatusRenamed:
		return 5
	default:
		return 0
	}
}

// levenshtein computes the classic single-row edit distance between two
// already-lowercased strings, used only to scale the distance penalty.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
