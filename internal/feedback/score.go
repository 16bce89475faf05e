package feedback

// editDistanceScore returns a normalized change magnitude in [0, 1]: 0 when
// final is identical to draft, 1 when they share no tokens. Derived from LCS
// length so it grows monotonically with the amount of change and stays
// comparable across versions of the same deliverable.
func editDistanceScore(draftLen, finalLen, lcs int) float64 {
	if draftLen == 0 && finalLen == 0 {
		return 0
	}
	return 1 - 2*float64(lcs)/float64(draftLen+finalLen)
}
