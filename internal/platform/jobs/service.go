package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrQueueFull = errors.New("job queue full")

// RunStore records each job run. Failures to record never block the job itself.
type RunStore interface {
	StartRun(ctx context.Context, tenantID, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
}

type RunFunc func(context.Context) (any, error)

type Service struct {
	runs    RunStore
	queue   chan job
	workers int
	wg      sync.WaitGroup
}

type job struct {
	Type     string
	TenantID string
	Run      RunFunc
}

func New(runs RunStore, queueSize, workers int) *Service {
	if queueSize <= 0 {
		queueSize = 128
	}
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		runs:    runs,
		queue:   make(chan job, queueSize),
		workers: workers,
	}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks until they have.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx)
		}()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Enqueue(jobType, tenantID string, run RunFunc) error {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
		return nil
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		return ErrQueueFull
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.runs != nil {
		id, err := s.runs.StartRun(ctx, j.TenantID, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error(), "result": details}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.runs.FinishRun(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "runId", runID, "err", updErr)
		}
	}
	return details, err
}
