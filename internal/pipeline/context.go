package pipeline

import (
	"fmt"
	"strings"

	"github.com/zulandar/inkwell/internal/memory"
	"github.com/zulandar/inkwell/internal/models"
	"gorm.io/gorm"
)

const (
	// historyWindow is how many recent approved versions enrich synthesis.
	historyWindow = 5
	// historyExcerptLen caps how much of each prior final version is quoted.
	historyExcerptLen = 600
)

// buildSynthesisPrompt assembles the full context for the synthesize step:
// the deliverable's template, the gathered source content, the last few
// approved versions with their edit categories, and preference memories.
// This enrichment is the mechanism by which drafts improve over time.
func buildSynthesisPrompt(db *gorm.DB, d *models.Deliverable, gathered string) (string, error) {
	var history []models.DeliverableVersion
	if err := db.Where("deliverable_id = ? AND status = ?", d.ID, models.VersionApproved).
		Order("version_number DESC").Limit(historyWindow).
		Find(&history).Error; err != nil {
		return "", fmt.Errorf("pipeline: load version history: %w", err)
	}

	deliverableMems, err := memory.ForDeliverable(db, d.ID, 10)
	if err != nil {
		return "", err
	}
	ownerMems, err := memory.ForOwner(db, d.OwnerID, 5)
	if err != nil {
		return "", err
	}

	var w strings.Builder
	writeHeader(&w, d)
	writeGathered(&w, gathered)
	writeHistory(&w, history)
	writeMemories(&w, deliverableMems, ownerMems)
	writeInstructions(&w, d)
	return w.String(), nil
}

func writeHeader(w *strings.Builder, d *models.Deliverable) {
	fmt.Fprintf(w, "# Deliverable: %s\n", d.Title)
	if d.TemplateStructure != "" {
		w.WriteString("\n## Required Structure\n")
		w.WriteString(d.TemplateStructure)
		w.WriteString("\n")
	}
	w.WriteString("\n")
}

func writeGathered(w *strings.Builder, gathered string) {
	if gathered == "" {
		return
	}
	w.WriteString("## Source Content\n")
	w.WriteString(gathered)
	w.WriteString("\n\n")
}

func writeHistory(w *strings.Builder, history []models.DeliverableVersion) {
	if len(history) == 0 {
		return
	}
	w.WriteString("## Recent Approved Versions\n")
	for _, v := range history {
		fmt.Fprintf(w, "### v%d\n", v.VersionNumber)
		w.WriteString(excerpt(v.FinalContent, historyExcerptLen))
		w.WriteString("\n")
		if v.EditCategories != "" && v.EditCategories != "{}" {
			fmt.Fprintf(w, "Edits the user made to this version: %s\n", v.EditCategories)
		}
		w.WriteString("\n")
	}
}

func writeMemories(w *strings.Builder, deliverableMems, ownerMems []models.PreferenceMemory) {
	if len(deliverableMems) == 0 && len(ownerMems) == 0 {
		return
	}
	w.WriteString("## Known Preferences\n")
	for _, m := range deliverableMems {
		fmt.Fprintf(w, "- %s\n", m.Content)
	}
	for _, m := range ownerMems {
		fmt.Fprintf(w, "- %s\n", m.Content)
	}
	w.WriteString("\n")
}

func writeInstructions(w *strings.Builder, d *models.Deliverable) {
	w.WriteString("## Instructions\n")
	fmt.Fprintf(w, "Draft the next issue of %q from the source content above.\n", d.Title)
	w.WriteString("Follow the required structure and the known preferences. Output only the draft.\n")
}

// excerpt truncates s to at most n runes, marking the cut.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + " […]"
}
