package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Observer is told the outcome of every run.
type Observer interface {
	ObserveJob(jobType, status string)
}

type RunFunc func(context.Context) (any, error)

// Service runs background work on a single worker: delayed one-off jobs,
// cron schedules and queued runs. Runs are logged to job_runs when a pool is
// configured.
type Service struct {
	DB       *pgxpool.Pool
	Observer Observer
	Timeout  time.Duration

	queue chan job
	cron  *cron.Cron

	mu      sync.Mutex
	stopped bool
	timers  map[*time.Timer]struct{}
}

type job struct {
	Type string
	Run  RunFunc
}

func New(db *pgxpool.Pool, observer Observer, timeout time.Duration) *Service {
	return &Service{
		DB:       db,
		Observer: observer,
		Timeout:  timeout,
		queue:    make(chan job, 128),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		timers:   map[*time.Timer]struct{}{},
	}
}

// Start runs the worker and the cron scheduler until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop cancels pending delayed jobs and halts the scheduler.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = map[*time.Timer]struct{}{}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

func (s *Service) Enqueue(jobType string, run RunFunc) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

// After queues run once delay has passed.
func (s *Service) After(delay time.Duration, jobType string, run func(context.Context) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		s.Enqueue(jobType, run)
	})
	s.timers[timer] = struct{}{}
}

// Schedule queues run on a standard five-field cron spec. A run still going
// when the next tick fires is not doubled up.
func (s *Service) Schedule(spec, jobType string, run RunFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.Enqueue(jobType, run)
	})
	return err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	runID := s.recordStart(ctx, j.Type)
	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	if s.Observer != nil {
		s.Observer.ObserveJob(j.Type, status)
	}
	s.recordFinish(context.WithoutCancel(ctx), runID, status, details, err)
	return details, err
}

func (s *Service) recordStart(ctx context.Context, jobType string) string {
	if s.DB == nil {
		return ""
	}
	runID := uuid.NewString()
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO job_runs (id, job_type, status)
    VALUES ($1,$2,$3)
  `, runID, jobType, "running"); err != nil {
		slog.Warn("job run insert failed", "err", err)
		return ""
	}
	return runID
}

func (s *Service) recordFinish(ctx context.Context, runID, status string, details any, runErr error) {
	if runID == "" {
		return
	}
	if runErr != nil {
		details = map[string]any{"error": runErr.Error(), "details": details}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil || string(detailsJSON) == "null" {
		detailsJSON = []byte("{}")
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID); err != nil {
		slog.Warn("job run update failed", "err", err)
	}
}
