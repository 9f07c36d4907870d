package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/tasks"
)

const reportCleanupSchedule = "0 3 * * *"

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a five field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// Enqueuer accepts background tasks.
type Enqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

type LibraryScanConfig struct {
	Dir      string
	Schedule string
	// ReportRetentionDays > 0 also schedules a nightly report cleanup.
	ReportRetentionDays int
}

// ScanResult is what one pass over the library directory queued.
type ScanResult struct {
	Enqueued  []string `json:"enqueued"`
	Unchanged int      `json:"unchanged"`
	Warnings  []string `json:"warnings,omitempty"`
}

// LibraryScanScheduler periodically pairs the books and sidecars in a
// directory and queues an extraction for every pair that is new or was
// modified since it was last queued.
type LibraryScanScheduler struct {
	config LibraryScanConfig
	queue  Enqueuer

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc

	scanMu sync.Mutex
	seen   map[string]time.Time
}

func NewLibraryScanScheduler(config LibraryScanConfig, queue Enqueuer) *LibraryScanScheduler {
	return &LibraryScanScheduler{
		config: config,
		queue:  queue,
		cron:   cron.New(cron.WithParser(cronParser)),
		seen:   make(map[string]time.Time),
	}
}

// Start begins the scheduler.
func (s *LibraryScanScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.config.Dir == "" {
		log.Printf("Library scan scheduler: library directory not configured, skipping")
		return nil
	}

	if err := ValidateCronSchedule(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runScan()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule scan job: %w", err)
	}
	s.entryID = entryID

	if s.config.ReportRetentionDays > 0 {
		_, err := s.cron.AddFunc(reportCleanupSchedule, func() {
			s.enqueueCleanup()
		})
		if err != nil {
			return fmt.Errorf("failed to schedule report cleanup: %w", err)
		}
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Library scan scheduler: started with schedule '%s' for %s", s.config.Schedule, s.config.Dir)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running scan and stops the scheduler.
func (s *LibraryScanScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	log.Printf("Library scan scheduler: stopped")
}

// RunNow triggers an immediate scan in the background.
func (s *LibraryScanScheduler) RunNow() {
	go s.runScan()
}

func (s *LibraryScanScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next scan will occur.
func (s *LibraryScanScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// Scan pairs the library directory and queues every new or modified pair.
// Scans never overlap.
func (s *LibraryScanScheduler) Scan() (ScanResult, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	var result ScanResult
	pairs, warnings, err := extract.Discover(s.config.Dir)
	if err != nil {
		return result, err
	}
	result.Warnings = warnings

	for _, pair := range pairs {
		modified, err := modTime(pair)
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			continue
		}
		if last, ok := s.seen[pair.Annotations]; ok && !modified.After(last) {
			result.Unchanged++
			continue
		}
		if _, err := s.queue.Enqueue(tasks.ExtractBookTask{Book: pair.Book, Annotations: pair.Annotations}); err != nil {
			return result, err
		}
		s.seen[pair.Annotations] = modified
		result.Enqueued = append(result.Enqueued, pair.Book)
	}
	return result, nil
}

// modTime is the later of the two files' modification times.
func modTime(pair extract.Pair) (time.Time, error) {
	book, err := os.Stat(pair.Book)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat book: %w", err)
	}
	sidecar, err := os.Stat(pair.Annotations)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat annotations: %w", err)
	}
	if sidecar.ModTime().After(book.ModTime()) {
		return sidecar.ModTime(), nil
	}
	return book.ModTime(), nil
}

func (s *LibraryScanScheduler) runScan() {
	startTime := time.Now()
	result, err := s.Scan()
	if err != nil {
		log.Printf("Library scan: failed: %v", err)
		return
	}
	for _, w := range result.Warnings {
		log.Printf("Library scan: %s", w)
	}
	log.Printf("Library scan: queued %d books, %d unchanged in %v",
		len(result.Enqueued), result.Unchanged, time.Since(startTime).Round(time.Millisecond))
}

func (s *LibraryScanScheduler) enqueueCleanup() {
	if _, err := s.queue.Enqueue(tasks.CleanupReportsTask{RetentionDays: s.config.ReportRetentionDays}); err != nil {
		log.Printf("Library scan: failed to queue report cleanup: %v", err)
	}
}
