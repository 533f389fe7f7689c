// Package search implements semantic retrieval with context-aware
// reconstruction: matched chunks can be returned alone, expanded with
// their precomputed neighbors, or inlined into their whole document.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/notevec/notevec/internal/store"
	docsync "github.com/notevec/notevec/internal/sync"
)

// Mode selects how much context is reconstructed around each match.
type Mode string

const (
	// ModeChunkOnly returns matched chunks as stored.
	ModeChunkOnly Mode = "chunk"

	// ModeAdjacent expands each match with up to two neighboring chunks
	// on either side, using the adjacency metadata written at index time.
	ModeAdjacent Mode = "adjacent"

	// ModeDocument returns the whole document with the match marked.
	ModeDocument Mode = "document"
)

// ParseMode validates a mode string from config or CLI flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChunkOnly, ModeAdjacent, ModeDocument:
		return Mode(s), nil
	case "":
		return ModeAdjacent, nil
	default:
		return "", fmt.Errorf("unknown context mode %q (want chunk, adjacent, or document)", s)
	}
}

// Markers delimiting the matched chunk inside expanded content.
const (
	matchStartMarker = "<context match>"
	matchEndMarker   = "</context match>"
)

// Result is one search hit with its reconstructed context.
type Result struct {
	ChunkID string
	DocID   string
	Title   string
	Seq     int
	Score   float32
	Content string
}

// Expander reconstructs context windows around matched chunks. Expansion
// is best-effort: any failure degrades the affected match to chunk-only
// instead of failing the search response.
type Expander struct {
	logger *slog.Logger
}

// NewExpander creates an expander.
func NewExpander(logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{logger: logger}
}

// Expand converts raw query results into results carrying the requested
// amount of context. The whole batch is processed with at most two extra
// store reads regardless of match count.
func (e *Expander) Expand(ctx context.Context, col store.Collection, matches []*store.QueryResult, mode Mode) []*Result {
	results := make([]*Result, len(matches))
	for i, m := range matches {
		results[i] = &Result{
			ChunkID: m.Record.ID,
			DocID:   m.Record.DocID,
			Title:   m.Record.Title,
			Seq:     m.Record.Seq,
			Score:   m.Score,
			Content: m.Record.Content,
		}
	}

	switch mode {
	case ModeAdjacent:
		e.expandAdjacent(ctx, col, matches, results)
	case ModeDocument:
		e.expandDocument(ctx, col, matches, results)
	}
	return results
}

// expandAdjacent performs the two-phase batched expansion: the query
// response already carries each match's adjacency metadata (phase one),
// so the union of all referenced neighbor IDs is fetched in one request
// (phase two). Matches without adjacency metadata fall back to a single
// disjunctive sequence-range query; a match that still resolves nothing
// keeps its chunk-only content.
func (e *Expander) expandAdjacent(ctx context.Context, col store.Collection, matches []*store.QueryResult, results []*Result) {
	type matchAdj struct {
		index  int
		record docsync.AdjacencyRecord
	}
	var withAdj []matchAdj
	var legacy []int
	neighborIDs := make(map[string]bool)

	for i, m := range matches {
		adj, ok := docsync.DecodeAdjacency(m.Record.Adjacent)
		if !ok {
			legacy = append(legacy, i)
			continue
		}
		withAdj = append(withAdj, matchAdj{index: i, record: adj})
		for _, id := range adj.Neighbors() {
			neighborIDs[id] = true
		}
	}

	neighbors := e.fetchByIDs(ctx, col, neighborIDs)
	for _, ma := range withAdj {
		m := matches[ma.index]
		var parts []string
		for _, id := range []string{ma.record.Prev2, ma.record.Prev1} {
			if n, ok := neighbors[id]; ok {
				parts = append(parts, n.Content)
			}
		}
		parts = append(parts, matchStartMarker, m.Record.Content, matchEndMarker)
		for _, id := range []string{ma.record.Next1, ma.record.Next2} {
			if n, ok := neighbors[id]; ok {
				parts = append(parts, n.Content)
			}
		}
		results[ma.index].Content = strings.Join(parts, "\n\n")
	}

	if len(legacy) > 0 {
		e.expandLegacy(ctx, col, matches, results, legacy)
	}
}

// fetchByIDs loads records for an ID set in one request. On error it
// logs and returns an empty map, degrading affected matches.
func (e *Expander) fetchByIDs(ctx context.Context, col store.Collection, idSet map[string]bool) map[string]*store.Record {
	out := make(map[string]*store.Record)
	if len(idSet) == 0 {
		return out
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recs, err := col.Get(ctx, store.Filter{IDs: ids}, 0, 0)
	if err != nil {
		e.logger.Warn("neighbor fetch failed, degrading to chunk-only",
			slog.Int("ids", len(ids)), slog.String("error", err.Error()))
		return out
	}
	for _, r := range recs {
		out[r.ID] = r
	}
	return out
}

// expandLegacy handles matches whose stored records predate adjacency
// metadata: one disjunctive query covers every such match's sequence
// window, then windows are reassembled per match by sequence index.
func (e *Expander) expandLegacy(ctx context.Context, col store.Collection, matches []*store.QueryResult, results []*Result, legacy []int) {
	var filters []store.Filter
	for _, i := range legacy {
		m := matches[i]
		lo := m.Record.Seq - 2
		if lo < 0 {
			lo = 0
		}
		hi := m.Record.Seq + 2
		seqMin, seqMax := lo, hi
		filters = append(filters, store.Filter{
			DocID:  m.Record.DocID,
			SeqMin: &seqMin,
			SeqMax: &seqMax,
		})
	}

	recs, err := col.Get(ctx, store.Filter{Any: filters}, 0, 0)
	if err != nil {
		e.logger.Warn("range fallback failed, degrading to chunk-only",
			slog.Int("matches", len(legacy)), slog.String("error", err.Error()))
		return
	}

	byDoc := make(map[string][]*store.Record)
	for _, r := range recs {
		byDoc[r.DocID] = append(byDoc[r.DocID], r)
	}

	for _, i := range legacy {
		m := matches[i]
		window := windowAround(byDoc[m.Record.DocID], m.Record.Seq)
		if len(window) == 0 {
			// Nothing came back for this match; keep chunk-only.
			continue
		}
		var parts []string
		for _, r := range window {
			if r.Seq == m.Record.Seq {
				parts = append(parts, matchStartMarker, m.Record.Content, matchEndMarker)
			} else {
				parts = append(parts, r.Content)
			}
		}
		results[i].Content = strings.Join(parts, "\n\n")
	}
}

// windowAround filters a document's fetched records down to seq±2 in
// sequence order.
func windowAround(recs []*store.Record, seq int) []*store.Record {
	var out []*store.Record
	for _, r := range recs {
		if r.Seq >= seq-2 && r.Seq <= seq+2 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// expandDocument inlines each match into its complete document. All
// documents for the batch are fetched with one disjunctive query.
func (e *Expander) expandDocument(ctx context.Context, col store.Collection, matches []*store.QueryResult, results []*Result) {
	docIDs := make(map[string]bool)
	for _, m := range matches {
		docIDs[m.Record.DocID] = true
	}
	var filters []store.Filter
	ids := make([]string, 0, len(docIDs))
	for id := range docIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		filters = append(filters, store.Filter{DocID: id})
	}

	recs, err := col.Get(ctx, store.Filter{Any: filters}, 0, 0)
	if err != nil {
		e.logger.Warn("document fetch failed, degrading to chunk-only",
			slog.Int("documents", len(ids)), slog.String("error", err.Error()))
		return
	}
	byDoc := make(map[string][]*store.Record)
	for _, r := range recs {
		byDoc[r.DocID] = append(byDoc[r.DocID], r)
	}
	for _, group := range byDoc {
		sort.Slice(group, func(i, j int) bool { return group[i].Seq < group[j].Seq })
	}

	for i, m := range matches {
		group := byDoc[m.Record.DocID]
		if len(group) == 0 {
			continue
		}
		var parts []string
		for _, r := range group {
			if r.ID == m.Record.ID {
				parts = append(parts, matchStartMarker, r.Content, matchEndMarker)
			} else {
				parts = append(parts, r.Content)
			}
		}
		results[i].Content = strings.Join(parts, "\n\n")
	}
}
