package pattern

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/notify"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var detectNow = time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Deliverable{},
		&models.SuggestedDeliverable{},
		&models.InteractionSession{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testAccount(t *testing.T, db *gorm.DB, sessions, approvals int) *models.Account {
	t.Helper()
	acct := &models.Account{
		ID:            models.NewID(),
		Timezone:      "UTC",
		SessionCount:  sessions,
		ApprovalCount: approvals,
		CreatedAt:     detectNow.Add(-30 * 24 * time.Hour),
	}
	if err := db.Create(acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

func seedSessions(t *testing.T, db *gorm.DB, ownerID, topic, text string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		s := models.InteractionSession{
			ID:        models.NewID(),
			OwnerID:   ownerID,
			Topics:    `["` + topic + `"]`,
			Text:      text,
			StartedAt: detectNow.Add(-time.Duration(i+1) * 24 * time.Hour),
		}
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
}

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Send(_ context.Context, ev notify.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestStageFor(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		sessions  int
		approvals int
		want      string
	}{
		{"brand new account", 2 * 24 * time.Hour, 50, 20, StageOnboarding},
		{"old but idle", 60 * 24 * time.Hour, 2, 0, StageOnboarding},
		{"past onboarding, light use", 30 * 24 * time.Hour, 6, 0, StageExploring},
		{"regular sessions", 30 * 24 * time.Hour, 20, 0, StageActive},
		{"few sessions but approving", 30 * 24 * time.Hour, 6, 5, StageActive},
		{"heavy use", 90 * 24 * time.Hour, 60, 15, StagePowerUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := &models.Account{
				SessionCount:  tt.sessions,
				ApprovalCount: tt.approvals,
				CreatedAt:     detectNow.Add(-tt.age),
			}
			if got := StageFor(acct, detectNow); got != tt.want {
				t.Errorf("StageFor = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThresholdFor(t *testing.T) {
	if _, ok := ThresholdFor(StageOnboarding); ok {
		t.Error("onboarding must have no threshold")
	}
	exploring, _ := ThresholdFor(StageExploring)
	active, _ := ThresholdFor(StageActive)
	power, _ := ThresholdFor(StagePowerUser)
	if !(exploring > active && active > power) {
		t.Errorf("thresholds must get looser with maturity: %v / %v / %v", exploring, active, power)
	}
}

func TestAnalyze_StageGatesConfidence(t *testing.T) {
	// Three sessions in seven days mentioning the same topic scores 0.60:
	// enough for an active owner (0.50) but not an exploring one (0.70).
	db := testDB(t)
	active := testAccount(t, db, 20, 0)
	seedSessions(t, db, active.ID, "acme account", "what happened with acme this week", 3)

	dt := &Detector{DB: db}
	created, err := dt.Analyze(context.Background(), active, detectNow)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(created))
	}
	if created[0].Confidence < 0.50 {
		t.Errorf("confidence = %v, want >= 0.50", created[0].Confidence)
	}
	if created[0].Status != models.SuggestionPending {
		t.Errorf("status = %q, want pending", created[0].Status)
	}
	if !strings.Contains(created[0].ProposedTitle, "cme account") {
		t.Errorf("proposed title = %q", created[0].ProposedTitle)
	}

	exploring := testAccount(t, db, 6, 0)
	seedSessions(t, db, exploring.ID, "acme account", "what happened with acme this week", 3)

	created, err = dt.Analyze(context.Background(), exploring, detectNow)
	if err != nil {
		t.Fatalf("Analyze exploring: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("exploring suggestions = %d, want 0 (0.60 < 0.70)", len(created))
	}
}

func TestAnalyze_OnboardingNeverSuggests(t *testing.T) {
	db := testDB(t)
	acct := &models.Account{
		ID:           models.NewID(),
		SessionCount: 100,
		CreatedAt:    detectNow.Add(-24 * time.Hour),
	}
	if err := db.Create(acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	seedSessions(t, db, acct.ID, "board prep", "catch me up on board prep", 6)

	notifier := &recordingNotifier{}
	created, err := (&Detector{DB: db, Notifier: notifier}).Analyze(context.Background(), acct, detectNow)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("suggestions = %d, want 0 for onboarding", len(created))
	}
	if len(notifier.events) != 0 {
		t.Errorf("events = %d, want 0 (no intro during onboarding)", len(notifier.events))
	}
}

func TestAnalyze_CatchUpPhrasingBoostsConfidence(t *testing.T) {
	db := testDB(t)
	acct := testAccount(t, db, 60, 15) // power_user, threshold 0.40
	seedSessions(t, db, acct.ID, "sprint status", "catch me up on the sprint status", 2)

	created, err := (&Detector{DB: db}).Analyze(context.Background(), acct, detectNow)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(created))
	}
	// Two sessions score 0.45; the catch-up boost lifts it to 0.55.
	if created[0].Confidence <= 0.45 {
		t.Errorf("confidence = %v, want boosted above 0.45", created[0].Confidence)
	}
}

func TestAnalyze_SkipsExplicitSchedulingLanguage(t *testing.T) {
	db := testDB(t)
	acct := testAccount(t, db, 60, 15)
	seedSessions(t, db, acct.ID, "team digest", "send me the team digest every monday", 4)

	created, err := (&Detector{DB: db}).Analyze(context.Background(), acct, detectNow)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("suggestions = %d, want 0 for explicit scheduling requests", len(created))
	}
}

func TestAnalyze_SkipsTopicsAlreadyCovered(t *testing.T) {
	db := testDB(t)
	acct := testAccount(t, db, 20, 5)
	seedSessions(t, db, acct.ID, "client digest", "what happened with the client", 3)

	d := models.Deliverable{
		ID:      models.NewID(),
		OwnerID: acct.ID,
		Title:   "Client digest for Meridian",
		Status:  models.DeliverableActive,
	}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("create deliverable: %v", err)
	}

	created, err := (&Detector{DB: db}).Analyze(context.Background(), acct, detectNow)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("suggestions = %d, want 0 (deliverable already covers the topic)", len(created))
	}
}

func TestAnalyze_DismissalBlocksResuggestion(t *testing.T) {
	db := testDB(t)
	acct := testAccount(t, db, 20, 5)
	seedSessions(t, db, acct.ID, "vendor review", "how did the vendor review go", 3)

	dt := &Detector{DB: db}
	created, err := dt.Analyze(context.Background(), acct, detectNow)
	if err != nil || len(created) != 1 {
		t.Fatalf("first Analyze = %d suggestions, err %v", len(created), err)
	}
	if err := Dismiss(db, created[0].ID, detectNow); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	created, err = dt.Analyze(context.Background(), acct, detectNow)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("suggestions = %d, want 0 after dismissal", len(created))
	}
}

func TestAnalyze_IntroSentExactlyOnce(t *testing.T) {
	db := testDB(t)
	acct := testAccount(t, db, 6, 0) // exploring, no sessions seeded
	notifier := &recordingNotifier{}
	dt := &Detector{DB: db, Notifier: notifier}

	if _, err := dt.Analyze(context.Background(), acct, detectNow); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("events = %d, want 1 intro", len(notifier.events))
	}

	var stored models.Account
	if err := db.First(&stored, "id = ?", acct.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if !stored.SuggestionIntroSent {
		t.Error("suggestion_intro_sent not persisted")
	}

	if _, err := dt.Analyze(context.Background(), &stored, detectNow); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if len(notifier.events) != 1 {
		t.Errorf("events = %d, want still 1 (idempotent)", len(notifier.events))
	}
}

func TestEnable(t *testing.T) {
	db := testDB(t)
	s := models.SuggestedDeliverable{
		ID:                models.NewID(),
		OwnerID:           "owner1",
		Confidence:        0.6,
		ProposedTitle:     "Acme account weekly digest",
		ProposedFrequency: "weekly",
		ProposedDay:       "monday",
		ProposedTime:      "09:00",
		ProposedTimezone:  "UTC",
		Status:            models.SuggestionPending,
		CreatedAt:         detectNow,
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create suggestion: %v", err)
	}

	d, err := Enable(db, s.ID, detectNow)
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if d.Title != s.ProposedTitle || d.Frequency != "weekly" || d.Day != "monday" {
		t.Errorf("deliverable = %+v", d)
	}
	if d.NextRunAt == nil || !d.NextRunAt.After(detectNow) {
		t.Errorf("next_run_at = %v, want after now", d.NextRunAt)
	}

	var stored models.SuggestedDeliverable
	if err := db.First(&stored, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("reload suggestion: %v", err)
	}
	if stored.Status != models.SuggestionEnabled || stored.ResolvedAt == nil {
		t.Errorf("suggestion = %+v, want enabled with resolved_at", stored)
	}

	if _, err := Enable(db, s.ID, detectNow); err == nil {
		t.Error("enabling twice must fail")
	}
}

func TestDismiss_OnlyPending(t *testing.T) {
	db := testDB(t)
	s := models.SuggestedDeliverable{
		ID:            models.NewID(),
		OwnerID:       "owner1",
		ProposedTitle: "t",
		Status:        models.SuggestionEnabled,
		CreatedAt:     detectNow,
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	if err := Dismiss(db, s.ID, detectNow); err == nil {
		t.Error("dismissing an enabled suggestion must fail")
	}
}

func TestListPending(t *testing.T) {
	db := testDB(t)
	for _, status := range []string{models.SuggestionPending, models.SuggestionDismissed, models.SuggestionPending} {
		s := models.SuggestedDeliverable{
			ID:            models.NewID(),
			OwnerID:       "owner1",
			ProposedTitle: "t",
			Status:        status,
			CreatedAt:     detectNow,
		}
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("create suggestion: %v", err)
		}
	}

	got, err := ListPending(db, "owner1")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("pending = %d, want 2", len(got))
	}
}

func TestAnalyze_SessionScanIsBounded(t *testing.T) {
	// With the scan capped at two rows, three sessions only count as two:
	// 0.45 confidence, under the active threshold.
	db := testDB(t)
	acct := testAccount(t, db, 20, 0)
	seedSessions(t, db, acct.ID, "acme account", "what happened with acme this week", 3)

	dt := &Detector{DB: db, SessionLimit: 2}
	created, err := dt.Analyze(context.Background(), acct, detectNow)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("suggestions = %d, want 0 when the scan cap trims the signal", len(created))
	}
}
