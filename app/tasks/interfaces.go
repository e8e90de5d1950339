package tasks

// TaskSchedulerInterface defines the interface for background task
// processing. The scheduler runs a worker pool over a shared queue and
// periodically enqueues update tasks for sources that are due a refresh.
// Example usage:
//
//	scheduler := NewScheduler(tenantCache, sourceRepo, importRepo, videoRepo, index, httpClient)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	// EnqueueSourceUpdate queues an immediate update for one source,
	// bypassing the refresh interval. Used by the HTTP API.
	EnqueueSourceUpdate(sourceID int64) error
	// EnqueueVideoIndex queues a search index synchronization for one
	// video. Used by the HTTP API after submissions and moderation.
	EnqueueVideoIndex(videoID int64) error
}
