package pattern

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/notify"
	"gorm.io/gorm"
)

const (
	defaultWindow       = 7 * 24 * time.Hour
	defaultMinSessions  = 2
	defaultSessionLimit = 500
	maxConfidence       = 0.95

	sessionWeight = 0.15 // confidence per distinct session mentioning the signal
	catchUpBoost  = 0.10 // recurring "catch me up" phrasing strengthens the signal
)

// catchUpPhrases mark sessions where the user asked to be brought current.
var catchUpPhrases = []string{
	"catch me up",
	"what did i miss",
	"bring me up to speed",
	"fill me in",
	"what's new with",
}

// schedulingPhrases mark sessions with explicit scheduling intent. Those users
// should create a deliverable directly, not be suggested one.
var schedulingPhrases = []string{
	"every monday", "every tuesday", "every wednesday", "every thursday",
	"every friday", "every saturday", "every sunday",
	"every day", "every week", "every month", "every morning",
	"each week", "schedule this",
}

// Detector scans recent sessions for repetition signals and persists
// suggestions that clear the owner's stage threshold.
type Detector struct {
	DB           *gorm.DB
	Notifier     notify.Notifier
	Window       time.Duration // session lookback, default 7 days
	MinSessions  int           // distinct sessions required, default 2
	SessionLimit int           // max session rows scanned per pass, default 500
}

// candidate is one cross-session repetition signal under evaluation.
type candidate struct {
	topic      string
	sessions   map[string]bool // distinct session IDs mentioning it
	catchUp    bool
	scheduling bool
	weekdays   map[time.Weekday]int
}

// Analyze runs one detection pass for the owner and returns the suggestions it
// persisted. Owners still in onboarding are skipped entirely.
func (dt *Detector) Analyze(ctx context.Context, acct *models.Account, now time.Time) ([]models.SuggestedDeliverable, error) {
	stage := StageFor(acct, now)
	threshold, ok := ThresholdFor(stage)
	if !ok {
		return nil, nil
	}

	if err := dt.sendIntroOnce(ctx, acct); err != nil {
		log.Printf("pattern: suggestion intro for %s: %v", acct.ID, err)
	}

	window := dt.Window
	if window <= 0 {
		window = defaultWindow
	}
	limit := dt.SessionLimit
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	// Newest first so a hyperactive owner truncates at the old end of the
	// window rather than loading an unbounded slice.
	var sessions []models.InteractionSession
	if err := dt.DB.Where("owner_id = ? AND started_at >= ?", acct.ID, now.Add(-window)).
		Order("started_at DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("pattern: load sessions: %w", err)
	}

	candidates := collectCandidates(sessions)

	minSessions := dt.MinSessions
	if minSessions <= 0 {
		minSessions = defaultMinSessions
	}

	var created []models.SuggestedDeliverable
	for _, c := range candidates {
		if c.scheduling || len(c.sessions) < minSessions {
			continue
		}
		confidence := c.confidence()
		if confidence < threshold {
			continue
		}

		dup, err := dt.alreadyCovered(acct.ID, c.topic)
		if err != nil {
			return created, err
		}
		if dup {
			continue
		}

		s := models.SuggestedDeliverable{
			ID:                models.NewID(),
			OwnerID:           acct.ID,
			Confidence:        confidence,
			DetectionReason:   fmt.Sprintf("%q came up in %d sessions over the last %d days.", c.topic, len(c.sessions), int(window.Hours()/24)),
			ProposedTitle:     proposedTitle(c.topic),
			ProposedFrequency: "weekly",
			ProposedDay:       c.commonWeekday(),
			ProposedTime:      "09:00",
			ProposedTimezone:  acct.Timezone,
			Status:            models.SuggestionPending,
			CreatedAt:         now,
		}
		if err := dt.DB.Create(&s).Error; err != nil {
			return created, fmt.Errorf("pattern: create suggestion: %w", err)
		}
		created = append(created, s)

		if dt.Notifier != nil {
			if err := dt.Notifier.Send(ctx, notify.SuggestionCreated(&s)); err != nil {
				log.Printf("pattern: suggestion notification for %s: %v", acct.ID, err)
			}
		}
	}
	return created, nil
}

// collectCandidates folds sessions into per-topic signals. Topics and
// resources are both repetition signals; malformed session metadata is
// skipped, never fatal.
func collectCandidates(sessions []models.InteractionSession) []*candidate {
	byTopic := make(map[string]*candidate)

	add := func(sess *models.InteractionSession, topic string) {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic == "" {
			return
		}
		c, ok := byTopic[topic]
		if !ok {
			c = &candidate{
				topic:    topic,
				sessions: make(map[string]bool),
				weekdays: make(map[time.Weekday]int),
			}
			byTopic[topic] = c
		}
		c.sessions[sess.ID] = true
		c.weekdays[sess.StartedAt.Weekday()]++

		text := strings.ToLower(sess.Text)
		if containsAny(text, catchUpPhrases) {
			c.catchUp = true
		}
		if containsAny(text, schedulingPhrases) {
			c.scheduling = true
		}
	}

	for i := range sessions {
		sess := &sessions[i]
		for _, topic := range decodeStrings(sess.Topics) {
			add(sess, topic)
		}
		for _, res := range decodeStrings(sess.Resources) {
			add(sess, res)
		}
	}

	out := make([]*candidate, 0, len(byTopic))
	for _, c := range byTopic {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].topic < out[j].topic })
	return out
}

// confidence scales with how many distinct sessions mention the signal.
func (c *candidate) confidence() float64 {
	conf := sessionWeight * float64(len(c.sessions)+1)
	if c.catchUp {
		conf += catchUpBoost
	}
	if conf > maxConfidence {
		conf = maxConfidence
	}
	return conf
}

// commonWeekday proposes the weekday the topic most often comes up on.
func (c *candidate) commonWeekday() string {
	best, bestCount := time.Monday, 0
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if n := c.weekdays[wd]; n > bestCount {
			best, bestCount = wd, n
		}
	}
	return strings.ToLower(best.String())
}

// alreadyCovered reports whether the topic already has a deliverable or a
// prior suggestion (any status: dismissals stay on record so the same pattern
// is not re-suggested).
func (dt *Detector) alreadyCovered(ownerID, topic string) (bool, error) {
	pat := "%" + topic + "%"

	var n int64
	if err := dt.DB.Model(&models.Deliverable{}).
		Where("owner_id = ? AND LOWER(title) LIKE ?", ownerID, pat).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("pattern: check deliverables: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if err := dt.DB.Model(&models.SuggestedDeliverable{}).
		Where("owner_id = ? AND LOWER(proposed_title) LIKE ?", ownerID, pat).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("pattern: check suggestions: %w", err)
	}
	return n > 0, nil
}

// sendIntroOnce sends the one-time feature explanation to owners past
// onboarding who have never received a suggestion. The persisted flag makes
// it idempotent.
func (dt *Detector) sendIntroOnce(ctx context.Context, acct *models.Account) error {
	if acct.SuggestionIntroSent {
		return nil
	}

	var n int64
	if err := dt.DB.Model(&models.SuggestedDeliverable{}).
		Where("owner_id = ?", acct.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if dt.Notifier != nil {
		if err := dt.Notifier.Send(ctx, notify.SuggestionIntro()); err != nil {
			return err
		}
	}

	if err := dt.DB.Model(&models.Account{}).Where("id = ?", acct.ID).
		Update("suggestion_intro_sent", true).Error; err != nil {
		return err
	}
	acct.SuggestionIntroSent = true
	return nil
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func decodeStrings(raw string) []string {
	if strings.TrimSpace(raw) == "" || raw == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func proposedTitle(topic string) string {
	runes := []rune(topic)
	if len(runes) > 0 {
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	}
	return fmt.Sprintf("%s weekly digest", string(runes))
}
