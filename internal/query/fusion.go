package query

import "sort"

// minMaxNormalize scales scores in results to [0,1] within their own set.
// A set where every score is equal (including a single-element set) maps
// entirely to 1.0, since there's no meaningful spread to normalize against.
func minMaxNormalize(results []subResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}

	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	spread := max - min
	for _, r := range results {
		if spread == 0 {
			normalized[r.ID] = 1.0
			continue
		}
		normalized[r.ID] = (r.Score - min) / spread
	}
	return normalized
}

// fuse combines the three normalized sub-result sets with weights
// re-normalized over whichever sets are non-empty, dedups by id keeping the
// higher fused contribution (there's only one contribution per source per
// id since each source's map has unique keys), and returns results sorted
// by descending score with a deterministic id tie-break.
func fuse(vec, bm25, fuzzy []subResult, weights Weights) []Result {
	vecNorm := minMaxNormalize(vec)
	bm25Norm := minMaxNormalize(bm25)
	fuzzyNorm := minMaxNormalize(fuzzy)

	activeWeight := 0.0
	if len(vecNorm) > 0 {
		activeWeight += weights.Vector
	}
	if len(bm25Norm) > 0 {
		activeWeight += weights.BM25
	}
	if len(fuzzyNorm) > 0 {
		activeWeight += weights.Fuzzy
	}
	if activeWeight == 0 {
		return nil
	}

	results := make(map[string]*Result)
	get := func(id string) *Result {
		r, ok := results[id]
		if !ok {
			r = &Result{ChunkID: id}
			results[id] = r
		}
		return r
	}

	matchedTermsByID := make(map[string][]string)
	for _, r := range bm25 {
		if len(r.MatchedTerms) > 0 {
			matchedTermsByID[r.ID] = r.MatchedTerms
		}
	}

	for id, score := range vecNorm {
		r := get(id)
		r.VectorScore = score
		r.Score += weights.Vector / activeWeight * score
		r.Provenance = append(r.Provenance, "vector")
	}
	for id, score := range bm25Norm {
		r := get(id)
		r.BM25Score = score
		r.Score += weights.BM25 / activeWeight * score
		r.Provenance = append(r.Provenance, "bm25")
		r.MatchedTerms = matchedTermsByID[id]
	}
	for id, score := range fuzzyNorm {
		r := get(id)
		r.FuzzyScore = score
		r.Score += weights.Fuzzy / activeWeight * score
		r.Provenance = append(r.Provenance, "fuzzy")
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
