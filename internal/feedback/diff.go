// Package feedback turns the difference between a drafted version and the
// user-approved final text into structured, categorized edit signals and a
// normalized edit-distance score.
package feedback

import "strings"

// region is one contiguous changed stretch between two common anchors:
// tokens deleted from the draft and tokens inserted into the final.
type region struct {
	Deleted  []string
	Inserted []string
	DraftPos int // token index in the draft where the region starts
	FinalPos int // token index in the final where the region starts
}

// tokenize splits text on whitespace. Whitespace-only changes therefore never
// register as edits.
func tokenize(s string) []string {
	return strings.Fields(s)
}

// lcsTable builds the longest-common-subsequence length table for two token
// slices. table[i][j] is the LCS length of a[:i] and b[:j].
func lcsTable(a, b []string) [][]int {
	table := make([][]int, len(a)+1)
	for i := range table {
		table[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				table[i][j] = table[i-1][j-1] + 1
			} else if table[i-1][j] >= table[i][j-1] {
				table[i][j] = table[i-1][j]
			} else {
				table[i][j] = table[i][j-1]
			}
		}
	}
	return table
}

// diffRegions walks the LCS table back to front and collects the changed
// regions between common anchors. Also returns the LCS length.
func diffRegions(draft, final []string) ([]region, int) {
	table := lcsTable(draft, final)
	lcs := table[len(draft)][len(final)]

	var regions []region
	i, j := len(draft), len(final)
	var del, ins []string

	flush := func() {
		if len(del) == 0 && len(ins) == 0 {
			return
		}
		// del and ins were collected in reverse order.
		reverse(del)
		reverse(ins)
		regions = append(regions, region{
			Deleted:  del,
			Inserted: ins,
			DraftPos: i,
			FinalPos: j,
		})
		del, ins = nil, nil
	}

	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && draft[i-1] == final[j-1]:
			flush()
			i--
			j--
		case j > 0 && (i == 0 || table[i][j-1] >= table[i-1][j]):
			ins = append(ins, final[j-1])
			j--
		default:
			del = append(del, draft[i-1])
			i--
		}
	}
	flush()

	// Regions were collected back to front.
	for k, l := 0, len(regions)-1; k < l; k, l = k+1, l-1 {
		regions[k], regions[l] = regions[l], regions[k]
	}
	return regions, lcs
}

func reverse(s []string) {
	for k, l := 0, len(s)-1; k < l; k, l = k+1, l-1 {
		s[k], s[l] = s[l], s[k]
	}
}
