// Package service is the submission layer. It normalizes incoming
// sources, deduplicates them against finished reports and in-flight
// tasks, enrolls accepted work in the task manager, and hands it to the
// worker pool. The HTTP handlers and the post-processing pipeline both
// submit through it, so the dedup and rollback rules live in one place.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/observe"
	"github.com/deepread-ai/deepread/pkg/queue"
	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/source"
	"github.com/deepread-ai/deepread/pkg/store"
	"github.com/deepread-ai/deepread/pkg/task"
)

// SubmissionStatus is the synchronous outcome of a submit call.
type SubmissionStatus string

const (
	// SubmissionCreated means a new task was enrolled and queued.
	SubmissionCreated SubmissionStatus = "created"
	// SubmissionExists means a finished report already covers the source.
	SubmissionExists SubmissionStatus = "exists"
	// SubmissionInProgress means another task for the source is queued or
	// running.
	SubmissionInProgress SubmissionStatus = "in_progress"
)

// Submission is the synchronous answer to a submit call. Exactly one of
// the three statuses is set; the identifying fields depend on it.
type Submission struct {
	Status  SubmissionStatus `json:"status"`
	DocHash string           `json:"doc_hash,omitempty"`

	// TaskID is set when a task was created.
	TaskID string `json:"task_id,omitempty"`

	// Filename is the existing default report (status exists).
	Filename string `json:"filename,omitempty"`

	// ExistingTaskID is the in-flight task (status in_progress).
	ExistingTaskID string `json:"existing_task_id,omitempty"`
}

// SubmitVideoInput carries a video submission from the transport layer.
type SubmitVideoInput struct {
	URL      string
	Priority string // low, normal, high, urgent
	Mode     string // deep, ultra
	Force    bool
}

// SubmitDocumentInput carries an uploaded document and its submission
// options.
type SubmitDocumentInput struct {
	Data     []byte
	Filename string
	Priority string
	Mode     string
	Force    bool
}

// Service coordinates submissions across the manager, the pool, and the
// document store.
type Service struct {
	manager  *task.Manager
	pool     *queue.WorkerPool
	registry *store.HashRegistry
	docs     *store.DocumentStore
	limits   *config.LimitsConfig
	metrics  *observe.Metrics
	log      *slog.Logger
}

// New creates the submission service. metrics may be nil.
func New(manager *task.Manager, pool *queue.WorkerPool, registry *store.HashRegistry,
	docs *store.DocumentStore, limits *config.LimitsConfig, metrics *observe.Metrics, log *slog.Logger) *Service {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Service{
		manager:  manager,
		pool:     pool,
		registry: registry,
		docs:     docs,
		limits:   limits,
		metrics:  metrics,
		log:      log.With("component", "service"),
	}
}

// SubmitVideo normalizes the URL, dedups against finished reports and
// in-flight tasks, and enqueues a video interpretation.
func (s *Service) SubmitVideo(ctx context.Context, input SubmitVideoInput) (*Submission, error) {
	normalized, err := source.NormalizeVideoURL(input.URL)
	if err != nil {
		s.metrics.RecordSubmission(ctx, string(task.KindVideo), "invalid")
		return nil, err
	}

	hash := store.GenerateDocHash(normalized)
	if !input.Force {
		if dup := s.dedup(ctx, task.KindVideo, normalized, hash); dup != nil {
			return dup, nil
		}
	}

	return s.enroll(ctx, task.Task{
		ID:          uuid.NewString(),
		Kind:        task.KindVideo,
		Mode:        task.ParseMode(input.Mode),
		Priority:    task.ParsePriority(input.Priority),
		SourceID:    normalized,
		DocHash:     hash,
		VideoURL:    normalized,
		SubmittedAt: time.Now(),
	})
}

// SubmitDocument validates and stores an uploaded document, dedups on its
// content hash, and enqueues a document interpretation.
func (s *Service) SubmitDocument(ctx context.Context, input SubmitDocumentInput) (*Submission, error) {
	docType, err := source.DetectDocType(input.Filename)
	if err != nil {
		s.metrics.RecordSubmission(ctx, string(task.KindDocument), "invalid")
		return nil, err
	}
	if err := source.CheckSize(docType, int64(len(input.Data)), s.limits); err != nil {
		s.metrics.RecordSubmission(ctx, string(task.KindDocument), "invalid")
		return nil, err
	}

	// Identity is the content, not the filename: re-uploading the same
	// bytes under another name dedups to the same report.
	sourceID := source.ContentIdentifier(docType, input.Data)
	hash := store.GenerateDocHash(sourceID)
	if !input.Force {
		if dup := s.dedup(ctx, task.KindDocument, sourceID, hash); dup != nil {
			return dup, nil
		}
	}

	stored := hash + strings.ToLower(filepath.Ext(input.Filename))
	path, err := s.docs.SaveUpload(stored, input.Data)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	return s.enroll(ctx, task.Task{
		ID:           uuid.NewString(),
		Kind:         task.KindDocument,
		Mode:         task.ParseMode(input.Mode),
		Priority:     task.ParsePriority(input.Priority),
		SourceID:     sourceID,
		DocHash:      hash,
		DocumentPath: path,
		SubmittedAt:  time.Now(),
	})
}

// SubmitUltraReprocess enqueues an ultra-mode rereading of an existing
// report lineage. The base is the default version at submission time;
// the result is written as the next version of the same hash.
func (s *Service) SubmitUltraReprocess(ctx context.Context, docHash, priority string, force bool) (*Submission, error) {
	filename, ok := s.registry.Lookup(docHash)
	if !ok {
		s.metrics.RecordSubmission(ctx, string(task.KindUltraReprocess), "invalid")
		return nil, task.NewError(task.ErrKindInvalidInput, "no document found for hash %s", docHash)
	}

	// The task inherits the base document's source identity so its
	// in-flight dedup and the original submission's agree.
	content, err := s.docs.ReadDocument(filename)
	if err != nil {
		return nil, task.WrapError(task.ErrKindInvalidInput, fmt.Errorf("loading base document %s: %w", filename, err))
	}
	meta, _, err := report.ParseFrontMatter(content)
	if err != nil {
		return nil, task.WrapError(task.ErrKindInvalidInput, fmt.Errorf("base document %s: %w", filename, err))
	}
	sourceID := meta.SourceIdentifier()

	if !force {
		if otherID, running := s.pool.FindActive(sourceID, ""); running {
			s.metrics.RecordSubmission(ctx, string(task.KindUltraReprocess), "in_progress")
			return &Submission{Status: SubmissionInProgress, DocHash: docHash, ExistingTaskID: otherID}, nil
		}
	}

	return s.enroll(ctx, task.Task{
		ID:           uuid.NewString(),
		Kind:         task.KindUltraReprocess,
		Mode:         task.ModeUltra,
		Priority:     task.ParsePriority(priority),
		SourceID:     sourceID,
		DocHash:      docHash,
		VideoURL:     meta.VideoURL,
		BaseDocument: filename,
		SubmittedAt:  time.Now(),
	})
}

// SubmitVisualInterpretation enqueues the internal follow-up task that
// builds a visual page for a finished report. Implements the
// post-processing pipeline's TaskSubmitter. Idempotent per report: a
// visual task already in flight for the hash is returned instead of a
// duplicate.
func (s *Service) SubmitVisualInterpretation(docHash, filename string) (string, error) {
	sourceID := "visual://" + docHash
	if otherID, running := s.pool.FindActive(sourceID, ""); running {
		return otherID, nil
	}

	sub, err := s.enroll(context.Background(), task.Task{
		ID:           uuid.NewString(),
		Kind:         task.KindVisual,
		Mode:         task.ModeDeep,
		Priority:     task.PriorityLow,
		SourceID:     sourceID,
		DocHash:      docHash,
		BaseDocument: filename,
		SubmittedAt:  time.Now(),
	})
	if err != nil {
		return "", err
	}
	return sub.TaskID, nil
}

// ConfirmPreAnalysis resumes a task paused at the confirmation gate,
// merging the submitter's overrides into the analysis profile.
func (s *Service) ConfirmPreAnalysis(taskID string, overrides map[string]any) error {
	return s.manager.Confirm(taskID, overrides)
}

// dedup returns the non-created submission answer for a source, or nil
// when the source is new. Existence wins over in-flight: a finished
// report answers the submission even while a forced rerun is active.
func (s *Service) dedup(ctx context.Context, kind task.Kind, sourceID, hash string) *Submission {
	if filename, ok := s.registry.Lookup(hash); ok {
		s.metrics.RecordSubmission(ctx, string(kind), "exists")
		s.log.Info("Submission already satisfied", "kind", kind, "doc_hash", hash, "file", filename)
		return &Submission{Status: SubmissionExists, DocHash: hash, Filename: filename}
	}
	if otherID, running := s.pool.FindActive(sourceID, ""); running {
		s.metrics.RecordSubmission(ctx, string(kind), "in_progress")
		s.log.Info("Submission already in flight", "kind", kind, "doc_hash", hash, "task_id", otherID)
		return &Submission{Status: SubmissionInProgress, DocHash: hash, ExistingTaskID: otherID}
	}
	return nil
}

// enroll registers the task with the manager and queues it. A full queue
// rolls the enrollment back so the failed submission leaves no trace.
func (s *Service) enroll(ctx context.Context, t task.Task) (*Submission, error) {
	if _, err := s.manager.Create(t); err != nil {
		return nil, err
	}
	if err := s.pool.Submit(t); err != nil {
		if dropErr := s.manager.Drop(t.ID); dropErr != nil {
			s.log.Warn("Rolling back unqueued task failed", "task_id", t.ID, "error", dropErr)
		}
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrPoolStopped) {
			s.metrics.RecordSubmission(ctx, string(t.Kind), "queue_full")
			return nil, task.WrapError(task.ErrKindQueueFull, err)
		}
		return nil, err
	}

	s.metrics.RecordSubmission(ctx, string(t.Kind), "created")
	s.log.Info("Task submitted",
		"task_id", t.ID, "kind", t.Kind, "mode", t.Mode, "priority", t.Priority, "doc_hash", t.DocHash)
	return &Submission{Status: SubmissionCreated, DocHash: t.DocHash, TaskID: t.ID}, nil
}
