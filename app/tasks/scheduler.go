package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/video-comb/app/catalog"
	"github.com/lysyi3m/video-comb/app/cfg"
	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/search"
	"github.com/lysyi3m/video-comb/app/source"
	"github.com/lysyi3m/video-comb/app/tenant"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	tenantCache *tenant.ConfigCache
	sourceRepo  database.SourceRepository
	importRepo  database.ImportRepository
	videoRepo   database.VideoRepository
	index       *search.Index
	normalizer  *catalog.Normalizer
	reconciler  *catalog.Reconciler
	enricher    *source.Enricher
	httpClient  *http.Client
	userAgent   string
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(tenantCache *tenant.ConfigCache, sourceRepo database.SourceRepository,
	importRepo database.ImportRepository, videoRepo database.VideoRepository,
	index *search.Index, httpClient *http.Client) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		tenantCache: tenantCache,
		sourceRepo:  sourceRepo,
		importRepo:  importRepo,
		videoRepo:   videoRepo,
		index:       index,
		normalizer:  catalog.NewNormalizer(videoRepo, importRepo),
		reconciler:  catalog.NewReconciler(sourceRepo, importRepo, videoRepo, index),
		enricher:    source.NewEnricher(httpClient, cfg.UserAgent),
		httpClient:  httpClient,
		userAgent:   cfg.UserAgent,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueDueSourceUpdates()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueSourceUpdates()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) EnqueueSourceUpdate(sourceID int64) error {
	src, err := s.sourceRepo.GetSource(sourceID)
	if err != nil {
		return fmt.Errorf("failed to load source %d: %w", sourceID, err)
	}
	if src == nil {
		return fmt.Errorf("source %d not found", sourceID)
	}

	tenantConfig, err := s.tenantCache.GetConfig(src.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant config for %s: %w", src.TenantID, err)
	}

	return s.EnqueueTask(NewSourceUpdateTask(src, tenantConfig, s))
}

func (s *Scheduler) EnqueueVideoIndex(videoID int64) error {
	return s.EnqueueTask(NewIndexVideoTask(videoID, s))
}

func (s *Scheduler) enqueueDueSourceUpdates() {
	sources, err := s.sourceRepo.GetAutoUpdateSources()
	if err != nil {
		slog.Error("Failed to list auto-update sources", "error", err)
		return
	}
	if len(sources) == 0 {
		slog.Debug("No auto-update sources found")
		return
	}

	slog.Debug("Checking sources for scheduled updates", "count", len(sources))

	now := time.Now().UTC()
	for i := range sources {
		src := &sources[i]

		tenantConfig, err := s.tenantCache.GetConfig(src.TenantID)
		if err != nil {
			slog.Warn("Failed to load tenant config, skipping source", "tenant", src.TenantID, "source_id", src.ID, "error", err)
			continue
		}

		refreshInterval := time.Duration(tenantConfig.Settings.RefreshInterval) * time.Second
		if src.LastUpdated != nil && src.LastUpdated.Add(refreshInterval).After(now) {
			slog.Debug("Source not due for refresh yet", "source_id", src.ID, "last_updated", src.LastUpdated)
			continue
		}

		if err := s.EnqueueTask(NewSourceUpdateTask(src, tenantConfig, s)); err != nil {
			slog.Warn("Failed to enqueue SourceUpdateTask", "source_id", src.ID, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	// Re-check requests are not failures: the task is waiting for another
	// part of the pipeline to catch up and keeps its retry budget.
	if delay, ok := RetryDelay(err); ok {
		slog.Debug("Task re-check scheduled", "type", string(task.GetType()), "id", task.GetID(), "delay", delay.String(), "reason", err.Error())
		s.requeueAfter(task, delay)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if IsPermanent(err) {
		slog.Error("Task failed permanently", "type", string(task.GetType()), "id", task.GetID(), "error", err)
		return
	}

	if task.CanRetry() {
		task.IncrementRetryCount()
		retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}

		slog.Warn("Task retry scheduled", "type", string(task.GetType()), "label", task.GetLabel(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())
		s.requeueAfter(task, retryDelay)
	} else {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
	}
}

// requeueAfter re-enqueues the task once the delay has passed. The goroutine
// joins the WaitGroup so Stop cannot close the queue while a delayed
// re-enqueue is still in flight.
func (s *Scheduler) requeueAfter(task TaskInterface, delay time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, dropping queued task", "type", string(task.GetType()), "id", task.GetID())
			return
		}

		if err := s.EnqueueTask(task); err != nil {
			slog.Error("Failed to re-enqueue task", "type", string(task.GetType()), "id", task.GetID(), "error", err)
		}
	}()
}
