package feedback

import "strings"

// Edit categories, in classification priority order.
const (
	CategoryAddition    = "addition"    // final text with no draft counterpart: context gap
	CategoryDeletion    = "deletion"    // draft text absent from final: irrelevance
	CategoryRestructure = "restructure" // same content, different position: ordering preference
	CategoryRewrite     = "rewrite"     // same meaning, different wording: tone preference
)

// RewriteThreshold is the minimum similarity for a changed region to count as
// a rewrite rather than an unrelated deletion plus addition.
const RewriteThreshold = 0.3

// Edit is one categorized changed span.
type Edit struct {
	Category  string `json:"category"`
	DraftText string `json:"draft_text,omitempty"`
	FinalText string `json:"final_text,omitempty"`
}

// categorize classifies every changed region. Restructures are detected by
// exact text matching across regions (pure diff result); the scorer is only
// consulted to split rewrite from addition+deletion.
func categorize(regions []region, scorer SimilarityScorer) []Edit {
	var edits []Edit

	// First pass: pair deleted spans with identical inserted spans elsewhere.
	// Content present on both sides at different positions is a restructure.
	inserted := make(map[string][]int) // span text -> region indexes with unused insert
	for idx, r := range regions {
		if len(r.Inserted) > 0 {
			text := strings.Join(r.Inserted, " ")
			inserted[text] = append(inserted[text], idx)
		}
	}

	usedInsert := make(map[int]bool)
	usedDelete := make(map[int]bool)
	for idx, r := range regions {
		if len(r.Deleted) == 0 {
			continue
		}
		text := strings.Join(r.Deleted, " ")
		candidates := inserted[text]
		for _, c := range candidates {
			if c == idx || usedInsert[c] {
				continue
			}
			usedInsert[c] = true
			usedDelete[idx] = true
			edits = append(edits, Edit{
				Category:  CategoryRestructure,
				DraftText: text,
				FinalText: text,
			})
			break
		}
	}

	// Second pass: classify what remains of each region.
	for idx, r := range regions {
		del := r.Deleted
		ins := r.Inserted
		if usedDelete[idx] {
			del = nil
		}
		if usedInsert[idx] {
			ins = nil
		}

		switch {
		case len(del) > 0 && len(ins) > 0:
			draftText := strings.Join(del, " ")
			finalText := strings.Join(ins, " ")
			if scorer.Score(draftText, finalText) >= RewriteThreshold {
				edits = append(edits, Edit{
					Category:  CategoryRewrite,
					DraftText: draftText,
					FinalText: finalText,
				})
			} else {
				edits = append(edits,
					Edit{Category: CategoryDeletion, DraftText: draftText},
					Edit{Category: CategoryAddition, FinalText: finalText},
				)
			}
		case len(ins) > 0:
			edits = append(edits, Edit{Category: CategoryAddition, FinalText: strings.Join(ins, " ")})
		case len(del) > 0:
			edits = append(edits, Edit{Category: CategoryDeletion, DraftText: strings.Join(del, " ")})
		}
	}

	return edits
}
