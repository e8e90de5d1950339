package api

import (
	"github.com/lysyi3m/video-comb/app/catalog"
	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/search"
	"github.com/lysyi3m/video-comb/app/tasks"
	"github.com/lysyi3m/video-comb/app/tenant"
)

type Handler struct {
	sourceRepo  database.SourceRepository
	importRepo  database.ImportRepository
	videoRepo   database.VideoRepository
	index       *search.Index
	normalizer  *catalog.Normalizer
	tenantCache *tenant.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
}
