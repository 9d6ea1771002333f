package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/canvas"
	"github.com/mikeboe/market-research/pkg/competitors"
	"github.com/mikeboe/market-research/pkg/landscape"
	"github.com/mikeboe/market-research/pkg/metrics"
	"github.com/mikeboe/market-research/pkg/report"
	"github.com/mikeboe/market-research/pkg/workflow"
)

const (
	KindCompetitors = competitors.Pipeline
	KindReport      = report.Pipeline
	KindLandscape   = landscape.Pipeline
	KindCanvas      = "canvas"
)

// Runtime carries the per-job logger and observer into a pipeline.
type Runtime struct {
	Logger   *slog.Logger
	Observer workflow.Observer
}

type (
	CompetitorRunner interface {
		Run(ctx context.Context, in competitors.Input) (*competitors.Result, error)
	}
	ReportRunner interface {
		Run(ctx context.Context, in report.Input) (*report.Report, error)
	}
	LandscapeRunner interface {
		Run(ctx context.Context, in landscape.Input) (*landscape.Landscape, error)
	}
	CanvasGenerator interface {
		Generate(ctx context.Context, businessIdea string) (*canvas.Canvas, error)
	}
)

// Pipelines builds a fresh pipeline per job so that concurrent jobs never
// share a logger or observer.
type Pipelines struct {
	Competitors func(rt Runtime) CompetitorRunner
	Reports     func(rt Runtime) ReportRunner
	Landscape   func(rt Runtime) LandscapeRunner
	Canvas      func(rt Runtime) CanvasGenerator
}

// SourceIndexer archives the sources collected during a job.
type SourceIndexer interface {
	Index(ctx context.Context, jobID string, entries []archive.Entry) (int, error)
}

type Service struct {
	Store     JobStore
	Pipelines Pipelines
	Indexer   SourceIndexer
	// Console receives a copy of every job log record.
	Console slog.Handler

	wg sync.WaitGroup
}

func NewService(store JobStore, pipelines Pipelines, indexer SourceIndexer) *Service {
	return &Service{
		Store:     store,
		Pipelines: pipelines,
		Indexer:   indexer,
		Console:   slog.NewTextHandler(os.Stdout, nil),
	}
}

type runFunc func(ctx context.Context, rt Runtime) (any, error)

func (s *Service) StartCompetitors(ctx context.Context, in competitors.Input) (*Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.start(ctx, KindCompetitors, in.BusinessIdea, in, func(ctx context.Context, rt Runtime) (any, error) {
		return s.Pipelines.Competitors(rt).Run(ctx, in)
	})
}

func (s *Service) StartReport(ctx context.Context, in report.Input) (*Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.start(ctx, KindReport, in.Topic, in, func(ctx context.Context, rt Runtime) (any, error) {
		return s.Pipelines.Reports(rt).Run(ctx, in)
	})
}

func (s *Service) StartLandscape(ctx context.Context, in landscape.Input) (*Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.start(ctx, KindLandscape, in.BusinessIdea, in, func(ctx context.Context, rt Runtime) (any, error) {
		return s.Pipelines.Landscape(rt).Run(ctx, in)
	})
}

type CanvasRequest struct {
	BusinessIdea string `json:"business_idea"`
}

func (s *Service) StartCanvas(ctx context.Context, req CanvasRequest) (*Job, error) {
	if req.BusinessIdea == "" {
		return nil, canvas.ErrEmptyBusinessIdea
	}
	return s.start(ctx, KindCanvas, req.BusinessIdea, req, func(ctx context.Context, rt Runtime) (any, error) {
		return s.Pipelines.Canvas(rt).Generate(ctx, req.BusinessIdea)
	})
}

func (s *Service) start(ctx context.Context, kind, subject string, input any, run runFunc) (*Job, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job input: %w", err)
	}
	job, err := s.Store.CreateJob(ctx, kind, subject, inputJSON)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runWorker(job.ID, kind, run)
	}()
	return job, nil
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.Store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	return s.Store.ListJobs(ctx, 50)
}

func (s *Service) GetJobLogs(ctx context.Context, id uuid.UUID) ([]LogEntry, error) {
	return s.Store.GetJobLogs(ctx, id)
}

func (s *Service) jobLogger(jobID uuid.UUID, kind string) *slog.Logger {
	var handler slog.Handler = NewDBLogHandler(s.Store, jobID)
	if s.Console != nil {
		handler = newTeeHandler(handler, s.Console)
	}
	return slog.New(handler).With("job_id", jobID.String(), "kind", kind)
}

func (s *Service) runWorker(jobID uuid.UUID, kind string, run runFunc) {
	ctx := context.Background()
	metrics.JobsActive.WithLabelValues(kind).Inc()
	defer metrics.JobsActive.WithLabelValues(kind).Dec()

	logger := s.jobLogger(jobID, kind)
	if err := s.Store.SetStatus(ctx, jobID, StatusRunning); err != nil {
		logger.Error("Failed to mark job running", "error", err)
	}

	collector := archive.NewCollector()
	observer := func(e workflow.Event) {
		collector.Observe(e)
		attrs := []any{"pipeline", e.Pipeline, "stage", string(e.Stage)}
		if e.Entity != "" {
			attrs = append(attrs, "entity", e.Entity)
		}
		if e.Err != "" {
			logger.Warn(e.Message, append(attrs, "error", e.Err)...)
			return
		}
		logger.Info(e.Message, attrs...)
	}

	result, err := run(ctx, Runtime{Logger: logger, Observer: observer})
	if err != nil {
		s.failJob(ctx, logger, jobID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		s.failJob(ctx, logger, jobID, fmt.Sprintf("Failed to encode result: %v", err))
		return
	}

	// Sources are archived before the job is reported complete so that chat
	// over a completed job sees every source.
	if s.Indexer != nil {
		entries := collector.Entries()
		n, err := s.Indexer.Index(ctx, jobID.String(), entries)
		if err != nil {
			logger.Error("Failed to archive sources", "error", err)
		} else {
			logger.Info("Archived sources", "entities", len(entries), "chunks", n)
		}
	}

	if err := s.Store.CompleteJob(ctx, jobID, resultJSON); err != nil {
		logger.Error("Failed to save result", "error", err)
		return
	}
	logger.Info("Job completed")
}

func (s *Service) failJob(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, reason string) {
	logger.Error(reason)
	if err := s.Store.FailJob(ctx, jobID, reason); err != nil {
		logger.Error("Failed to mark job failed", "error", err)
	}
}
