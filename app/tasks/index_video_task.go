package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/search"
)

// IndexVideoTask synchronizes one video with the search index: active
// videos are upserted, everything else is removed. It re-reads the video
// at execution time, so a moderation decision taken after enqueueing wins.
type IndexVideoTask struct {
	Task
	VideoID   int64
	scheduler *Scheduler
}

func NewIndexVideoTask(videoID int64, scheduler *Scheduler) *IndexVideoTask {
	return &IndexVideoTask{
		Task:      NewTask(TaskTypeIndexVideo, fmt.Sprintf("video %d", videoID)),
		VideoID:   videoID,
		scheduler: scheduler,
	}
}

func (t *IndexVideoTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	video, err := t.scheduler.videoRepo.GetVideo(t.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video %d: %w", t.VideoID, err)
	}

	if video == nil || video.Status != database.VideoActive {
		if err := t.scheduler.index.Remove(ctx, t.VideoID); err != nil {
			return fmt.Errorf("failed to remove video %d from index: %w", t.VideoID, err)
		}
		slog.Debug("Video removed from search index", "video_id", t.VideoID)
		return nil
	}

	err = t.scheduler.index.Upsert(ctx, search.Entry{
		VideoID:     video.ID,
		TenantID:    video.TenantID,
		Name:        video.Name,
		Description: video.Description,
	})
	if err != nil {
		return fmt.Errorf("failed to index video %d: %w", t.VideoID, err)
	}

	slog.Debug("Video indexed", "video_id", t.VideoID)
	return nil
}
