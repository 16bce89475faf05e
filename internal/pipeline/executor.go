// Package pipeline turns a due deliverable into a chain of dependent work
// tickets (gather → synthesize → stage), executes them in order, and threads
// each step's output into the next.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zulandar/inkwell/internal/memory"
	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/notify"
	"github.com/zulandar/inkwell/internal/ratelimit"
	"github.com/zulandar/inkwell/internal/sources"
	"gorm.io/gorm"
)

const (
	defaultCallTimeout = 60 * time.Second
	defaultBackoff     = time.Second
	// memoryExcerptLen caps how much chained step output is stored as memory.
	memoryExcerptLen = 2000
)

// Executor runs generation chains for deliverables.
type Executor struct {
	DB          *gorm.DB
	Fetcher     sources.Fetcher
	Drafter     Drafter
	Notifier    notify.Notifier
	Limiter     *ratelimit.Limiter
	SourceRates map[string]int // platform -> per-owner calls/min, 0 = unlimited
	CallTimeout time.Duration
	MaxRetries  int // retries after the first attempt; 0 means none
	Backoff     time.Duration
}

// Run executes one full generation chain for the deliverable and returns the
// version it produced. On step failure the returned version carries status
// "failed" alongside the error; a non-nil version is returned whenever one
// was allocated.
func (e *Executor) Run(ctx context.Context, d *models.Deliverable) (*models.DeliverableVersion, error) {
	if e.DB == nil {
		return nil, fmt.Errorf("pipeline: db is required")
	}
	if e.Fetcher == nil {
		return nil, fmt.Errorf("pipeline: fetcher is required")
	}
	if e.Drafter == nil {
		return nil, fmt.Errorf("pipeline: drafter is required")
	}
	if d == nil {
		return nil, fmt.Errorf("pipeline: deliverable is required")
	}

	version, err := e.allocateVersion(d)
	if err != nil {
		return nil, err
	}

	tickets, err := e.createTickets(d, version)
	if err != nil {
		e.failVersion(d, version, err)
		return version, err
	}

	outputs := make(map[string]string, len(tickets))
	for i := range tickets {
		t := &tickets[i]

		if t.DependsOnWorkID != nil {
			var dep models.WorkTicket
			if err := e.DB.Where("id = ?", *t.DependsOnWorkID).First(&dep).Error; err != nil {
				err = fmt.Errorf("%w: load dependency of %s: %v", ErrDependencyNotMet, t.PipelineStep, err)
				e.failTicket(t)
				e.failVersion(d, version, err)
				return version, err
			}
			if dep.Status != models.TicketCompleted {
				err = fmt.Errorf("%w: %s requires %s to be completed, found %q",
					ErrDependencyNotMet, t.PipelineStep, dep.PipelineStep, dep.Status)
				e.failTicket(t)
				e.failVersion(d, version, err)
				return version, err
			}
		}

		if err := e.markRunning(t); err != nil {
			e.failVersion(d, version, err)
			return version, err
		}

		out, err := e.execStep(ctx, d, version, t, outputs)
		if err != nil {
			e.failTicket(t)
			e.failVersion(d, version, err)
			return version, err
		}

		if err := e.completeTicket(t, out); err != nil {
			e.failVersion(d, version, err)
			return version, err
		}
		outputs[t.PipelineStep] = out

		if t.ChainOutputAsMemory && out != "" {
			if _, err := memory.Append(e.DB, d.OwnerID, excerpt(out, memoryExcerptLen),
				"pipeline:"+t.PipelineStep, memory.AppendOpts{DeliverableID: d.ID}); err != nil {
				log.Printf("pipeline: chain memory for %s/%s: %v", d.ID, t.PipelineStep, err)
			}
		}
	}

	if err := e.DB.Where("id = ?", version.ID).First(version).Error; err != nil {
		return version, fmt.Errorf("pipeline: reload version: %w", err)
	}
	return version, nil
}

// allocateVersion creates the next version row for the deliverable. The
// check and the insert happen inside one transaction, and the unique
// (deliverable_id, version_number) index backstops the monotonic allocation;
// this is what enforces at-most-one-active-run without process-level locks.
func (e *Executor) allocateVersion(d *models.Deliverable) (*models.DeliverableVersion, error) {
	var version *models.DeliverableVersion

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.DeliverableVersion{}).
			Where("deliverable_id = ? AND status = ?", d.ID, models.VersionGenerating).
			Count(&active).Error; err != nil {
			return fmt.Errorf("pipeline: count active versions: %w", err)
		}
		if active > 0 {
			return ErrActiveRun
		}

		var maxVersion int
		if err := tx.Model(&models.DeliverableVersion{}).
			Where("deliverable_id = ?", d.ID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&maxVersion).Error; err != nil {
			return fmt.Errorf("pipeline: max version number: %w", err)
		}

		version = &models.DeliverableVersion{
			ID:            models.NewID(),
			DeliverableID: d.ID,
			OwnerID:       d.OwnerID,
			VersionNumber: maxVersion + 1,
			Status:        models.VersionGenerating,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("pipeline: create version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// createTickets persists the three-step chain for a version. Gather output is
// chained into preference memory so later steps and later runs can reference
// what was collected; the synthesize output already lives on the version row.
func (e *Executor) createTickets(d *models.Deliverable, version *models.DeliverableVersion) ([]models.WorkTicket, error) {
	now := time.Now()
	gather := models.WorkTicket{
		ID:                   models.NewID(),
		OwnerID:              d.OwnerID,
		DeliverableID:        d.ID,
		DeliverableVersionID: version.ID,
		PipelineStep:         models.StepGather,
		Status:               models.TicketPending,
		ChainOutputAsMemory:  true,
		CreatedAt:            now,
	}
	synthesize := models.WorkTicket{
		ID:                   models.NewID(),
		OwnerID:              d.OwnerID,
		DeliverableID:        d.ID,
		DeliverableVersionID: version.ID,
		PipelineStep:         models.StepSynthesize,
		DependsOnWorkID:      &gather.ID,
		Status:               models.TicketPending,
		CreatedAt:            now,
	}
	stage := models.WorkTicket{
		ID:                   models.NewID(),
		OwnerID:              d.OwnerID,
		DeliverableID:        d.ID,
		DeliverableVersionID: version.ID,
		PipelineStep:         models.StepStage,
		DependsOnWorkID:      &synthesize.ID,
		Status:               models.TicketPending,
		CreatedAt:            now,
	}

	tickets := []models.WorkTicket{gather, synthesize, stage}
	if err := e.DB.Create(&tickets).Error; err != nil {
		return nil, fmt.Errorf("pipeline: create tickets: %w", err)
	}
	return tickets, nil
}

// execStep runs the work for one ticket and returns its output.
func (e *Executor) execStep(ctx context.Context, d *models.Deliverable, version *models.DeliverableVersion, t *models.WorkTicket, outputs map[string]string) (string, error) {
	switch t.PipelineStep {
	case models.StepGather:
		return e.gather(ctx, d)

	case models.StepSynthesize:
		prompt, err := buildSynthesisPrompt(e.DB, d, outputs[models.StepGather])
		if err != nil {
			return "", err
		}
		return e.withRetry(ctx, func(callCtx context.Context) (string, error) {
			return e.Drafter.Draft(callCtx, prompt)
		})

	case models.StepStage:
		return e.stage(ctx, d, version, outputs[models.StepSynthesize])

	default:
		return "", fmt.Errorf("pipeline: unknown step %q", t.PipelineStep)
	}
}

// gather fetches every configured source and joins the results into one
// document. An empty source list is valid: synthesis then runs on history and
// preferences alone.
func (e *Executor) gather(ctx context.Context, d *models.Deliverable) (string, error) {
	srcs, err := parseSources(d.Sources)
	if err != nil {
		return "", err
	}

	var sections []string
	for _, src := range srcs {
		key := ratelimit.Key(src.Platform, d.OwnerID)
		rate := e.SourceRates[src.Platform]

		text, err := e.withRetry(ctx, func(callCtx context.Context) (string, error) {
			if e.Limiter != nil && !e.Limiter.Allow(key, rate) {
				return "", fmt.Errorf("platform quota exhausted for %s", key)
			}
			return e.Fetcher.Fetch(callCtx, src)
		})
		if err != nil {
			return "", err
		}
		sections = append(sections, fmt.Sprintf("### %s/%s\n%s", src.Platform, src.Resource, strings.TrimSpace(text)))
	}
	return strings.Join(sections, "\n\n"), nil
}

// stage marks the version staged with the synthesized draft and notifies the
// owner. Notification failure never fails the run.
func (e *Executor) stage(ctx context.Context, d *models.Deliverable, version *models.DeliverableVersion, draft string) (string, error) {
	if strings.TrimSpace(draft) == "" {
		return "", fmt.Errorf("pipeline: refusing to stage an empty draft")
	}

	now := time.Now()
	if err := e.DB.Model(&models.DeliverableVersion{}).Where("id = ?", version.ID).Updates(map[string]interface{}{
		"status":        models.VersionStaged,
		"draft_content": draft,
		"staged_at":     now,
	}).Error; err != nil {
		return "", fmt.Errorf("pipeline: stage version %s: %w", version.ID, err)
	}
	version.Status = models.VersionStaged
	version.DraftContent = draft
	version.StagedAt = &now

	if e.Notifier != nil {
		if err := e.Notifier.Send(ctx, notify.VersionStaged(d, version)); err != nil {
			log.Printf("pipeline: staged notification for %s: %v", d.ID, err)
		}
	}
	return draft, nil
}

// withRetry runs op with the per-call timeout, retrying with exponential
// backoff up to the configured attempt budget. A hung external call fails
// this one unit of work, never the caller's sweep.
func (e *Executor) withRetry(ctx context.Context, op func(context.Context) (string, error)) (string, error) {
	timeout := e.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	retries := e.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := e.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := op(callCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt < retries {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrExternalCall, ctx.Err())
			case <-time.After(backoff << attempt):
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrExternalCall, lastErr)
}

func (e *Executor) markRunning(t *models.WorkTicket) error {
	now := time.Now()
	if err := e.DB.Model(&models.WorkTicket{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"status":     models.TicketRunning,
		"started_at": now,
	}).Error; err != nil {
		return fmt.Errorf("pipeline: mark %s running: %w", t.PipelineStep, err)
	}
	t.Status = models.TicketRunning
	t.StartedAt = &now
	return nil
}

func (e *Executor) completeTicket(t *models.WorkTicket, output string) error {
	now := time.Now()
	if err := e.DB.Model(&models.WorkTicket{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"status":       models.TicketCompleted,
		"output":       output,
		"completed_at": now,
	}).Error; err != nil {
		return fmt.Errorf("pipeline: complete %s: %w", t.PipelineStep, err)
	}
	t.Status = models.TicketCompleted
	t.Output = output
	t.CompletedAt = &now
	return nil
}

// failTicket marks a ticket failed. Best-effort: the version-level failure is
// what callers observe.
func (e *Executor) failTicket(t *models.WorkTicket) {
	now := time.Now()
	if err := e.DB.Model(&models.WorkTicket{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"status":       models.TicketFailed,
		"completed_at": now,
	}).Error; err != nil {
		log.Printf("pipeline: mark ticket %s failed: %v", t.ID, err)
	}
}

// failVersion marks the version failed so no partial draft is ever staged,
// and notifies the owner.
func (e *Executor) failVersion(d *models.Deliverable, version *models.DeliverableVersion, cause error) {
	if err := e.DB.Model(&models.DeliverableVersion{}).Where("id = ?", version.ID).Updates(map[string]interface{}{
		"status":         models.VersionFailed,
		"failure_reason": cause.Error(),
	}).Error; err != nil {
		log.Printf("pipeline: mark version %s failed: %v", version.ID, err)
	}
	version.Status = models.VersionFailed
	version.FailureReason = cause.Error()

	if e.Notifier != nil {
		if err := e.Notifier.Send(context.Background(), notify.RunFailed(d, version, cause)); err != nil {
			log.Printf("pipeline: failure notification for %s: %v", d.ID, err)
		}
	}
}

// parseSources decodes the deliverable's JSON source list.
func parseSources(raw string) ([]models.SourceDescriptor, error) {
	if strings.TrimSpace(raw) == "" || raw == "null" {
		return nil, nil
	}
	var srcs []models.SourceDescriptor
	if err := json.Unmarshal([]byte(raw), &srcs); err != nil {
		return nil, fmt.Errorf("pipeline: parse sources: %w", err)
	}
	return srcs, nil
}
