package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/inkwell/internal/memory"
	"github.com/zulandar/inkwell/internal/models"
	"gorm.io/gorm"
)

// ErrDiffComputation marks a feedback scoring failure. Callers log and move
// on; approval is never blocked on feedback computation.
var ErrDiffComputation = errors.New("feedback: diff computation failed")

const (
	// aggregationWindow is how many recent approved versions feed recurring-
	// category detection.
	aggregationWindow = 5
	// recurrenceMin is how many versions a category must appear in before a
	// preference memory is emitted.
	recurrenceMin = 3
)

// Result holds the structured feedback for one draft/final pair.
type Result struct {
	Edits  []Edit
	Counts map[string]int // category -> occurrences in this diff
	Score  float64        // normalized edit distance in [0, 1]
}

// Compute diffs a draft against the user-approved final text and categorizes
// every changed span. A nil scorer falls back to the lexical default.
func Compute(draft, final string, scorer SimilarityScorer) (*Result, error) {
	if strings.TrimSpace(final) == "" {
		return nil, fmt.Errorf("%w: final content is empty", ErrDiffComputation)
	}
	if scorer == nil {
		scorer = LexicalScorer{}
	}

	draftTokens := tokenize(draft)
	finalTokens := tokenize(final)
	regions, lcs := diffRegions(draftTokens, finalTokens)
	edits := categorize(regions, scorer)

	counts := make(map[string]int)
	for _, e := range edits {
		counts[e.Category]++
	}

	return &Result{
		Edits:  edits,
		Counts: counts,
		Score:  editDistanceScore(len(draftTokens), len(finalTokens), lcs),
	}, nil
}

// ProcessApproval computes feedback for an approved version, stores the edit
// categories and score on the version row, and emits preference memories for
// categories that recur across recent versions. Best-effort: the approval
// itself has already been committed by the caller.
func ProcessApproval(db *gorm.DB, versionID string, scorer SimilarityScorer) error {
	var version models.DeliverableVersion
	if err := db.Where("id = ?", versionID).First(&version).Error; err != nil {
		return fmt.Errorf("feedback: load version %s: %w", versionID, err)
	}

	result, err := Compute(version.DraftContent, version.FinalContent, scorer)
	if err != nil {
		return err
	}

	categoriesJSON, err := json.Marshal(result.Counts)
	if err != nil {
		return fmt.Errorf("feedback: marshal categories: %w", err)
	}
	if err := db.Model(&models.DeliverableVersion{}).Where("id = ?", versionID).Updates(map[string]interface{}{
		"edit_categories":     string(categoriesJSON),
		"edit_distance_score": result.Score,
	}).Error; err != nil {
		return fmt.Errorf("feedback: store feedback for %s: %w", versionID, err)
	}

	return aggregateRecurring(db, &version, result)
}

// aggregateRecurring looks across the last few approved versions and records
// a preference memory for every category that keeps coming back. Single-diff
// signals are too noisy to act on; recurrence is what future runs should see.
func aggregateRecurring(db *gorm.DB, version *models.DeliverableVersion, current *Result) error {
	var recent []models.DeliverableVersion
	if err := db.Where("deliverable_id = ? AND status = ? AND edit_categories != ''",
		version.DeliverableID, models.VersionApproved).
		Order("version_number DESC").Limit(aggregationWindow).
		Find(&recent).Error; err != nil {
		return fmt.Errorf("feedback: load recent versions: %w", err)
	}

	// Count versions (including the current one) in which each category appears.
	occurrences := make(map[string]int)
	seenCurrent := false
	for _, v := range recent {
		if v.ID == version.ID {
			seenCurrent = true
		}
		var counts map[string]int
		if err := json.Unmarshal([]byte(v.EditCategories), &counts); err != nil {
			continue
		}
		for cat, n := range counts {
			if n > 0 {
				occurrences[cat]++
			}
		}
	}
	if !seenCurrent {
		for cat, n := range current.Counts {
			if n > 0 {
				occurrences[cat]++
			}
		}
	}

	total := len(recent)
	if !seenCurrent {
		total++
	}

	for cat, n := range occurrences {
		if n < recurrenceMin {
			continue
		}
		content := recurringMemoryContent(cat, n, total, current.Edits)
		if memoryExists(db, version.DeliverableID, content) {
			continue
		}
		if _, err := memory.Append(db, version.OwnerID, content, models.MemorySourceFeedback, memory.AppendOpts{
			DeliverableID: version.DeliverableID,
			Confidence:    float64(n) / float64(total),
		}); err != nil {
			return err
		}
	}
	return nil
}

// recurringMemoryContent phrases a recurring category as guidance for future
// synthesis, anchored on the dominant keywords of the current edits.
func recurringMemoryContent(category string, occurrences, total int, edits []Edit) string {
	var guidance string
	switch category {
	case CategoryAddition:
		guidance = "User repeatedly adds content the draft was missing"
	case CategoryDeletion:
		guidance = "User repeatedly removes content as irrelevant"
	case CategoryRestructure:
		guidance = "User repeatedly reorders sections; drafted ordering does not match their preference"
	case CategoryRewrite:
		guidance = "User repeatedly rewords content; drafted tone does not match their voice"
	default:
		guidance = "User repeatedly edits drafts"
	}

	kw := topKeywords(edits, category, 3)
	if len(kw) > 0 {
		return fmt.Sprintf("%s (in %d of the last %d approved versions, around: %s)",
			guidance, occurrences, total, strings.Join(kw, ", "))
	}
	return fmt.Sprintf("%s (in %d of the last %d approved versions)", guidance, occurrences, total)
}

// topKeywords extracts the most frequent substantive words from the edits of
// one category.
func topKeywords(edits []Edit, category string, n int) []string {
	freq := make(map[string]int)
	for _, e := range edits {
		if e.Category != category {
			continue
		}
		for _, tok := range tokenize(e.DraftText + " " + e.FinalText) {
			word := strings.ToLower(strings.Trim(tok, ".,;:!?()\"'"))
			if len(word) < 4 || stopwords[word] {
				continue
			}
			freq[word]++
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"were": true, "been": true, "their": true, "about": true, "which": true,
	"would": true, "there": true, "these": true, "those": true, "into": true,
}

// memoryExists reports whether an identical memory is already recorded for
// the deliverable, so unchanged recurrence does not spam duplicates.
func memoryExists(db *gorm.DB, deliverableID, content string) bool {
	var count int64
	db.Model(&models.PreferenceMemory{}).
		Where("deliverable_id = ? AND content = ? AND created_at > ?",
			deliverableID, content, time.Now().AddDate(0, -1, 0)).
		Count(&count)
	return count > 0
}
