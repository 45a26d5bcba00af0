package retrieval

import "sort"

const rrfK = 60 // RRF constant (standard value from literature)

// FusedInfo holds per-result method contribution metadata.
type FusedInfo struct {
	Methods []string `json:"methods"`
	VecRank int      `json:"vec_rank,omitempty"` // 1-based, 0 = not present
	FTSRank int      `json:"fts_rank,omitempty"` // 1-based, 0 = not present
}

// fuseRRF combines ranked hit lists with Reciprocal Rank Fusion:
// score = sum(weight_i / (k + rank_i)). Ties keep first-seen order, vector
// hits before lexical ones. maxResults <= 0 keeps everything.
func fuseRRF(vecHits, ftsHits []Hit, weightVec, weightFTS float64, maxResults int) ([]Hit, map[string]FusedInfo) {
	type fusedEntry struct {
		hit   Hit
		score float64
		info  FusedInfo
	}

	fused := make(map[string]*fusedEntry)
	var order []*fusedEntry

	add := func(hits []Hit, weight float64, method string, setRank func(*FusedInfo, int)) {
		for rank, h := range hits {
			entry, ok := fused[h.ID]
			if !ok {
				entry = &fusedEntry{hit: h}
				fused[h.ID] = entry
				order = append(order, entry)
			}
			entry.score += weight / float64(rrfK+rank+1)
			entry.info.Methods = append(entry.info.Methods, method)
			setRank(&entry.info, rank+1)
		}
	}
	add(vecHits, weightVec, "vector", func(i *FusedInfo, r int) { i.VecRank = r })
	add(ftsHits, weightFTS, "fts", func(i *FusedInfo, r int) { i.FTSRank = r })

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].score > order[j].score
	})

	if maxResults > 0 && len(order) > maxResults {
		order = order[:maxResults]
	}

	results := make([]Hit, len(order))
	infoMap := make(map[string]FusedInfo, len(order))
	for i, e := range order {
		results[i] = Hit{ID: e.hit.ID, Score: e.score}
		infoMap[e.hit.ID] = e.info
	}
	return results, infoMap
}
