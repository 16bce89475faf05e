// Package scheduler runs the periodic sweeps: the due-deliverable sweep that
// triggers pipeline runs, and the slower pattern/quality sweep. One sweep
// tick is logically single-threaded; pipeline runs within a tick fan out to a
// bounded worker pool. Failures are isolated per deliverable and never abort
// the sweep.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/zulandar/inkwell/internal/config"
	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/pattern"
	"github.com/zulandar/inkwell/internal/pipeline"
	"github.com/zulandar/inkwell/internal/schedule"
	"gorm.io/gorm"
)

// Sweeper owns the sweep loops.
type Sweeper struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Executor *pipeline.Executor
	Detector *pattern.Detector
	Clock    func() time.Time // defaults to time.Now
}

func (s *Sweeper) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// RunDaemon runs the sweep loop until the context is cancelled. The
// due-deliverable sweep runs every tick; the pattern/quality sweep runs on
// its own slower interval.
func (s *Sweeper) RunDaemon(ctx context.Context, out io.Writer) error {
	if s.DB == nil {
		return fmt.Errorf("scheduler: db is required")
	}
	if s.Cfg == nil {
		return fmt.Errorf("scheduler: config is required")
	}
	if s.Executor == nil {
		return fmt.Errorf("scheduler: executor is required")
	}
	if out == nil {
		out = io.Discard
	}

	sweepInterval := s.Cfg.Scheduler.SweepInterval
	patternInterval := s.Cfg.Scheduler.PatternInterval

	fmt.Fprintf(out, "Scheduler starting (sweep every %s, patterns every %s)...\n", sweepInterval, patternInterval)
	defer fmt.Fprintf(out, "Scheduler stopped.\n")

	var lastPattern time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := s.now()

		triggered, err := s.SweepDue(ctx, now)
		if err != nil {
			log.Printf("scheduler: sweep error: %v", err)
		}
		if triggered > 0 {
			fmt.Fprintf(out, "Sweep triggered %d run(s)\n", triggered)
		}

		if now.Sub(lastPattern) >= patternInterval {
			lastPattern = now
			if err := s.SweepPatterns(ctx, now); err != nil {
				log.Printf("scheduler: pattern sweep error: %v", err)
			}
			if err := s.UpdateQualityScores(now); err != nil {
				log.Printf("scheduler: quality sweep error: %v", err)
			}
		}

		sleepWithContext(ctx, sweepInterval)
	}
}

// SweepDue finds active deliverables whose next_run_at has passed and runs
// their pipelines on a bounded worker pool. Returns how many runs were
// triggered. Deliverables inside their quiet hours are skipped without
// advancing next_run_at, so they retry each tick until the window exits.
func (s *Sweeper) SweepDue(ctx context.Context, now time.Time) (int, error) {
	pageSize := s.Cfg.Scheduler.PageSize
	workers := s.Cfg.Scheduler.Workers
	if workers <= 0 {
		workers = 1
	}

	triggered := 0
	var skipped []string // quiet-skipped this sweep; excluded from later pages

	for {
		q := s.DB.Where("status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?",
			models.DeliverableActive, now).
			Order("next_run_at ASC").Limit(pageSize)
		if len(skipped) > 0 {
			q = q.Where("id NOT IN ?", skipped)
		}

		var due []models.Deliverable
		if err := q.Find(&due).Error; err != nil {
			return triggered, fmt.Errorf("scheduler: query due deliverables: %w", err)
		}
		if len(due) == 0 {
			return triggered, nil
		}

		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		var mu sync.Mutex

		for i := range due {
			d := due[i]

			if s.inQuietHours(&d, now) {
				skipped = append(skipped, d.ID)
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				if _, err := s.Executor.Run(ctx, &d); err != nil {
					log.Printf("scheduler: run %s (%s): %v", d.ID, d.Title, err)
				}
				// Advance regardless of run outcome: a failed run waits for
				// the next scheduled slot, it does not hot-loop.
				if err := s.advance(&d, now); err != nil {
					log.Printf("scheduler: advance %s: %v", d.ID, err)
				}
				mu.Lock()
				triggered++
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(due) < pageSize {
			return triggered, nil
		}
	}
}

// inQuietHours checks the deliverable's quiet window, falling back to the
// scheduler-wide default.
func (s *Sweeper) inQuietHours(d *models.Deliverable, now time.Time) bool {
	start, end := d.QuietStart, d.QuietEnd
	if start == "" && end == "" {
		start, end = s.Cfg.Scheduler.QuietStart, s.Cfg.Scheduler.QuietEnd
	}
	return schedule.InQuietHours(start, end, d.Timezone, now)
}

// advance recomputes and persists next_run_at strictly after now. A schedule
// that fails to compute still pushes next_run_at one sweep interval out, so
// the failure surfaces in logs each interval instead of re-running the
// pipeline every tick.
func (s *Sweeper) advance(d *models.Deliverable, now time.Time) error {
	next, err := schedule.Next(schedule.Spec{
		Frequency: d.Frequency,
		Day:       d.Day,
		TimeOfDay: d.TimeOfDay,
		Timezone:  d.Timezone,
		CronExpr:  d.CronExpr,
	}, now)
	if err != nil {
		next = now.Add(s.Cfg.Scheduler.SweepInterval)
		if uerr := s.DB.Model(&models.Deliverable{}).Where("id = ?", d.ID).
			Update("next_run_at", next).Error; uerr != nil {
			return uerr
		}
		return err
	}
	return s.DB.Model(&models.Deliverable{}).Where("id = ?", d.ID).
		Update("next_run_at", next).Error
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
