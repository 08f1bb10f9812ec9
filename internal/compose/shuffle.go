package compose

import "math/rand"

// The shuffle functions take an explicit *rand.Rand so callers control the
// seed: the service seeds from time, tests seed deterministically.

// ShuffleQuestionOrder returns a fresh uniform permutation of ids. The input
// is not mutated; the result carries exactly the same ids, no more, no less.
func ShuffleQuestionOrder(ids []string, rng *rand.Rand) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// ShuffleAnswerOrder builds a new answer permutation for a question with n
// answers and merges it into ov, replacing any previous permutation. The
// hidden-answer mask is re-projected through the new permutation so an answer
// that was hidden stays hidden at its new position.
func ShuffleAnswerOrder(n int, ov Override, rng *rand.Rand) Override {
	if n <= 0 {
		return ov
	}
	// hidden-ness by canonical answer index, regardless of the current order
	hiddenByIndex := make([]bool, n)
	curOrder := ov.AnswerOrder
	if len(curOrder) != n {
		curOrder = identityOrder(n)
	}
	for pos, idx := range curOrder {
		if idx >= 0 && idx < n && pos < len(ov.HiddenAnswerMask) {
			hiddenByIndex[idx] = ov.HiddenAnswerMask[pos]
		}
	}

	perm := rng.Perm(n)
	ov.AnswerOrder = perm

	if ov.HiddenAnswerMask != nil {
		mask := make([]bool, n)
		for pos, idx := range perm {
			mask[pos] = hiddenByIndex[idx]
		}
		ov.HiddenAnswerMask = mask
	}
	return ov
}
