package rl

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// vectorizer turns a (state, action) pair into one fixed-width numeric
// vector: one leading dimension per known score type, then a hashed
// action block. The layout is fixed at construction and must not change
// for the lifetime of a model, so score types are sorted once up front.
type vectorizer struct {
	stateIndex map[string]int
	stateDims  int
	actionDims int
}

func newVectorizer(scoreTypes []string, actionDims int) *vectorizer {
	types := make([]string, len(scoreTypes))
	copy(types, scoreTypes)
	sort.Strings(types)

	index := make(map[string]int, len(types))
	for i, st := range types {
		index[st] = i
	}
	return &vectorizer{
		stateIndex: index,
		stateDims:  len(types),
		actionDims: actionDims,
	}
}

func (v *vectorizer) dims() int { return v.stateDims + v.actionDims }

// vector encodes state-then-action into out, which must have length
// dims(). Score types the vectorizer does not know are dropped; action
// features land in the hashed block, index from the low bits and sign
// from the top bit of the key hash.
func (v *vectorizer) vector(state, action map[string]float64, out []float64) []float64 {
	for i := range out {
		out[i] = 0
	}
	for k, val := range state {
		if i, ok := v.stateIndex[k]; ok {
			out[i] = val
		}
	}
	for k, val := range action {
		h := xxhash.Sum64String(k)
		i := v.stateDims + int(h%uint64(v.actionDims))
		if h&(1<<63) != 0 {
			val = -val
		}
		out[i] += val
	}
	return out
}
