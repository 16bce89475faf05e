package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/inkwell/internal/config"
	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/pattern"
	"github.com/zulandar/inkwell/internal/pipeline"
	"github.com/zulandar/inkwell/internal/scheduler"
	"github.com/zulandar/inkwell/internal/sources"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// Background feedback goroutines share this db; a second pool connection
	// to :memory: would be a different empty database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Deliverable{},
		&models.DeliverableVersion{},
		&models.WorkTicket{},
		&models.PreferenceMemory{},
		&models.SuggestedDeliverable{},
		&models.InteractionSession{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type staticDrafter struct{ draft string }

func (s *staticDrafter) Draft(_ context.Context, _ string) (string, error) {
	return s.draft, nil
}

func testOpts(db *gorm.DB) StartOpts {
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{ManualCooldown: 5 * time.Minute, PageSize: 50, Workers: 1},
		Sources:   []config.SourceConfig{{Platform: "slack", FetchCommand: "true"}},
	}
	executor := &pipeline.Executor{
		DB: db,
		Fetcher: &sources.StaticFetcher{Content: map[string]string{
			"slack/#updates": "content",
		}},
		Drafter:     &staticDrafter{draft: "the draft"},
		CallTimeout: 5 * time.Second,
		MaxRetries:  1,
		Backoff:     time.Millisecond,
	}
	return StartOpts{
		DB:       db,
		Cfg:      cfg,
		Executor: executor,
		Sweeper: &scheduler.Sweeper{
			DB:       db,
			Cfg:      cfg,
			Executor: executor,
			Detector: &pattern.Detector{DB: db},
		},
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("parse response %q: %v", w.Body.String(), err)
		}
	}
	return w, parsed
}

func seedDeliverable(t *testing.T, db *gorm.DB) *models.Deliverable {
	t.Helper()
	d := &models.Deliverable{
		ID:        models.NewID(),
		OwnerID:   "owner1",
		Title:     "Weekly status report",
		Frequency: "weekly",
		Sources:   `[{"platform":"slack","resource":"#updates"}]`,
		Status:    models.DeliverableActive,
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("create deliverable: %v", err)
	}
	return d
}

func seedStagedVersion(t *testing.T, db *gorm.DB, d *models.Deliverable, draft string) *models.DeliverableVersion {
	t.Helper()
	now := time.Now()
	v := &models.DeliverableVersion{
		ID:            models.NewID(),
		DeliverableID: d.ID,
		OwnerID:       d.OwnerID,
		VersionNumber: 1,
		Status:        models.VersionStaged,
		DraftContent:  draft,
		CreatedAt:     now,
		StagedAt:      &now,
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create version: %v", err)
	}
	return v
}

func TestRunDeliverable(t *testing.T) {
	db := testDB(t)
	d := seedDeliverable(t, db)
	router := newRouter(testOpts(db))

	w, resp := doJSON(t, router, http.MethodPost, "/deliverables/"+d.ID+"/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["status"] != models.VersionStaged {
		t.Errorf("run status = %v, want staged", resp["status"])
	}
	if resp["version_id"] == "" {
		t.Error("missing version_id")
	}
}

func TestRunDeliverable_NotFound(t *testing.T) {
	db := testDB(t)
	router := newRouter(testOpts(db))

	w, _ := doJSON(t, router, http.MethodPost, "/deliverables/nope/run", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRunDeliverable_ConflictOnActiveRun(t *testing.T) {
	db := testDB(t)
	d := seedDeliverable(t, db)
	active := models.DeliverableVersion{
		ID:            models.NewID(),
		DeliverableID: d.ID,
		OwnerID:       d.OwnerID,
		VersionNumber: 1,
		Status:        models.VersionGenerating,
	}
	if err := db.Create(&active).Error; err != nil {
		t.Fatalf("seed version: %v", err)
	}
	router := newRouter(testOpts(db))

	w, _ := doJSON(t, router, http.MethodPost, "/deliverables/"+d.ID+"/run", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestApproveVersion(t *testing.T) {
	db := testDB(t)
	acct := &models.Account{ID: "owner1", CreatedAt: time.Now()}
	if err := db.Create(acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	d := seedDeliverable(t, db)
	v := seedStagedVersion(t, db, d, "Q3 revenue: $1.2M across all product lines.")
	router := newRouter(testOpts(db))

	body := `{"final_content": "Q3 revenue: $1.2M (up 8% YoY) across all product lines."}`
	w, resp := doJSON(t, router, http.MethodPatch, "/versions/"+v.ID+"/approve", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["status"] != models.VersionApproved {
		t.Errorf("status = %v, want approved", resp["status"])
	}

	var stored models.DeliverableVersion
	if err := db.First(&stored, "id = ?", v.ID).Error; err != nil {
		t.Fatalf("reload version: %v", err)
	}
	if stored.Status != models.VersionApproved || stored.ApprovedAt == nil {
		t.Errorf("version = %+v, want approved with approved_at", stored)
	}
	if !strings.Contains(stored.FinalContent, "up 8% YoY") {
		t.Errorf("final_content = %q", stored.FinalContent)
	}

	var storedAcct models.Account
	if err := db.First(&storedAcct, "id = ?", acct.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if storedAcct.ApprovalCount != 1 {
		t.Errorf("approval_count = %d, want 1", storedAcct.ApprovalCount)
	}

	// Feedback runs in the background; poll until the score appears.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := db.First(&stored, "id = ?", v.ID).Error; err != nil {
			t.Fatalf("reload version: %v", err)
		}
		if stored.EditDistanceScore != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("feedback never computed a score")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if *stored.EditDistanceScore <= 0 {
		t.Errorf("edit_distance_score = %v, want > 0", *stored.EditDistanceScore)
	}
	if !strings.Contains(stored.EditCategories, "addition") {
		t.Errorf("edit_categories = %q, want an addition entry", stored.EditCategories)
	}
}

func TestApproveVersion_EmptyBodyApprovesAsIs(t *testing.T) {
	db := testDB(t)
	d := seedDeliverable(t, db)
	v := seedStagedVersion(t, db, d, "the draft")
	router := newRouter(testOpts(db))

	w, _ := doJSON(t, router, http.MethodPatch, "/versions/"+v.ID+"/approve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var stored models.DeliverableVersion
	if err := db.First(&stored, "id = ?", v.ID).Error; err != nil {
		t.Fatalf("reload version: %v", err)
	}
	if stored.FinalContent != "the draft" {
		t.Errorf("final_content = %q, want the draft unchanged", stored.FinalContent)
	}
}

func TestApproveVersion_OnlyStaged(t *testing.T) {
	db := testDB(t)
	d := seedDeliverable(t, db)
	v := seedStagedVersion(t, db, d, "draft")
	if err := db.Model(v).Update("status", models.VersionApproved).Error; err != nil {
		t.Fatalf("update version: %v", err)
	}
	router := newRouter(testOpts(db))

	w, _ := doJSON(t, router, http.MethodPatch, "/versions/"+v.ID+"/approve", "{}")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for double approval", w.Code)
	}
}

func TestRejectVersion_StoresNotesAsMemory(t *testing.T) {
	db := testDB(t)
	d := seedDeliverable(t, db)
	v := seedStagedVersion(t, db, d, "draft")
	router := newRouter(testOpts(db))

	body := `{"feedback_notes": "Too formal, keep it conversational."}`
	w, resp := doJSON(t, router, http.MethodPatch, "/versions/"+v.ID+"/reject", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["status"] != models.VersionRejected {
		t.Errorf("status = %v, want rejected", resp["status"])
	}

	var mems []models.PreferenceMemory
	if err := db.Where("owner_id = ? AND source = ?", d.OwnerID, "feedback").Find(&mems).Error; err != nil {
		t.Fatalf("load memories: %v", err)
	}
	if len(mems) != 1 || mems[0].Content != "Too formal, keep it conversational." {
		t.Errorf("memories = %+v, want the rejection notes", mems)
	}
	if mems[0].DeliverableID == nil || *mems[0].DeliverableID != d.ID {
		t.Error("rejection memory not tagged to the deliverable")
	}
}

func TestSuggestionLifecycleOverAPI(t *testing.T) {
	db := testDB(t)
	s := models.SuggestedDeliverable{
		ID:                models.NewID(),
		OwnerID:           "owner1",
		Confidence:        0.6,
		ProposedTitle:     "Acme weekly digest",
		ProposedFrequency: "weekly",
		ProposedDay:       "monday",
		ProposedTime:      "09:00",
		ProposedTimezone:  "UTC",
		Status:            models.SuggestionPending,
		CreatedAt:         time.Now(),
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	router := newRouter(testOpts(db))

	w, resp := doJSON(t, router, http.MethodGet, "/owners/owner1/suggested", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if listed, ok := resp["suggested"].([]interface{}); !ok || len(listed) != 1 {
		t.Fatalf("suggested = %v, want 1 entry", resp["suggested"])
	}

	w, resp = doJSON(t, router, http.MethodPatch, "/suggested/"+s.ID+"/enable", "")
	if w.Code != http.StatusOK {
		t.Fatalf("enable status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["deliverable_id"] == "" {
		t.Error("enable response missing deliverable_id")
	}

	// Enabled suggestions no longer show as pending.
	w, resp = doJSON(t, router, http.MethodGet, "/owners/owner1/suggested", "")
	if listed, ok := resp["suggested"].([]interface{}); !ok || len(listed) != 0 {
		t.Errorf("suggested after enable = %v, want empty", resp["suggested"])
	}

	// And cannot be dismissed afterwards.
	w, _ = doJSON(t, router, http.MethodPatch, "/suggested/"+s.ID+"/dismiss", "")
	if w.Code != http.StatusConflict {
		t.Errorf("dismiss-after-enable status = %d, want 409", w.Code)
	}
}

func TestTriggerEndpoint_RateLimited(t *testing.T) {
	db := testDB(t)
	recent := time.Now().Add(-time.Minute)
	acct := &models.Account{ID: "owner1", LastManualTriggerAt: &recent, CreatedAt: time.Now().Add(-30 * 24 * time.Hour)}
	if err := db.Create(acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	router := newRouter(testOpts(db))

	w, resp := doJSON(t, router, http.MethodPost, "/owners/owner1/trigger", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (rate limiting is a status, not an error)", w.Code)
	}
	if resp["status"] != scheduler.TriggerRateLimited {
		t.Errorf("status = %v, want rate_limited", resp["status"])
	}
}

func TestHealthz(t *testing.T) {
	db := testDB(t)
	router := newRouter(testOpts(db))

	w, resp := doJSON(t, router, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("healthz = %d %v", w.Code, resp)
	}
}
