package retrieval

import (
	"sort"

	"github.com/agenthands/ctigraph/internal/core/model"
)

const rrfK = 60

// fuseRRF merges two rankings of the same report with Reciprocal Rank Fusion:
// score = sum(1 / (rrfK + rank)). Chunks are matched by position.
func fuseRRF(vecResults, keywordResults []model.SearchResult, maxResults int) []model.SearchResult {
	type fusedEntry struct {
		result model.SearchResult
		score  float64
		first  int
	}

	fused := make(map[int]*fusedEntry)
	seen := 0
	add := func(results []model.SearchResult) {
		for rank, r := range results {
			entry, ok := fused[r.Position]
			if !ok {
				entry = &fusedEntry{result: r, first: seen}
				fused[r.Position] = entry
				seen++
			} else if entry.result.ChunkID == 0 {
				entry.result.ChunkID = r.ChunkID
			}
			entry.score += 1.0 / float64(rrfK+rank+1)
		}
	}
	add(vecResults)
	add(keywordResults)

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].first < entries[j].first
	})

	if maxResults > 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}
	out := make([]model.SearchResult, len(entries))
	for i, e := range entries {
		e.result.Score = e.score
		out[i] = e.result
	}
	return out
}
