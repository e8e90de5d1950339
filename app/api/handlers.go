package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/video-comb/app/catalog"
	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/search"
	"github.com/lysyi3m/video-comb/app/tasks"
	"github.com/lysyi3m/video-comb/app/tenant"
)

func NewHandler(tenantCache *tenant.ConfigCache, sourceRepo database.SourceRepository,
	importRepo database.ImportRepository, videoRepo database.VideoRepository,
	index *search.Index, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sourceRepo:  sourceRepo,
		importRepo:  importRepo,
		videoRepo:   videoRepo,
		index:       index,
		normalizer:  catalog.NewNormalizer(videoRepo, importRepo),
		tenantCache: tenantCache,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}
	if videoCount, err := h.videoRepo.GetVideoCount(); err == nil {
		health["videos"] = videoCount
	}

	health["loaded_tenants"] = h.tenantCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		stats["sources"] = sourceCount
	}
	if videoCount, err := h.videoRepo.GetVideoCount(); err == nil {
		stats["videos"] = videoCount
	}

	tenants := make([]map[string]interface{}, 0)
	for _, tenantConfig := range h.tenantCache.GetConfigs() {
		tenantInfo := map[string]interface{}{
			"id":            tenantConfig.ID,
			"name":          tenantConfig.Name,
			"enforce_tiers": tenantConfig.Settings.EnforceTiers,
			"video_limit":   tenantConfig.Settings.VideoLimit,
		}
		if active, err := h.videoRepo.CountActiveVideos(tenantConfig.ID); err == nil {
			tenantInfo["active_videos"] = active
		}
		tenants = append(tenants, tenantInfo)
	}
	stats["tenants"] = tenants

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListSources(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant_id parameter"})
		return
	}

	sources, err := h.sourceRepo.ListSources(tenantID)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "tenant", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]map[string]interface{}, 0, len(sources))
	for i := range sources {
		list = append(list, sourceInfo(&sources[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": list,
		"total":   len(list),
	})
}

type createSourceRequest struct {
	TenantID    string   `json:"tenant_id" binding:"required"`
	Kind        string   `json:"kind" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	FeedURL     string   `json:"feed_url"`
	QueryString string   `json:"query_string"`
	Webpage     string   `json:"webpage"`
	Description string   `json:"description"`
	AutoApprove bool     `json:"auto_approve"`
	AutoUpdate  *bool    `json:"auto_update"`
	Authors     []string `json:"authors"`
	Categories  []string `json:"categories"`
	CreatedBy   string   `json:"created_by"`
}

func (h *Handler) APICreateSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if _, err := h.tenantCache.GetConfig(req.TenantID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant", "details": err.Error()})
		return
	}

	src := &database.Source{
		TenantID:       req.TenantID,
		Kind:           req.Kind,
		Name:           req.Name,
		Webpage:        req.Webpage,
		Description:    req.Description,
		AutoApprove:    req.AutoApprove,
		AutoUpdate:     true,
		CreatedBy:      req.CreatedBy,
		AutoAuthors:    req.Authors,
		AutoCategories: req.Categories,
		WhenSubmitted:  time.Now().UTC(),
	}
	if req.AutoUpdate != nil {
		src.AutoUpdate = *req.AutoUpdate
	}

	switch req.Kind {
	case database.SourceKindFeed:
		if req.FeedURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "feed_url is required for feed sources"})
			return
		}
		src.FeedURL = req.FeedURL
		// Feed sources earn their status: the first completed import
		// activates them.
		src.Status = database.SourceUnapproved
	case database.SourceKindSearch:
		if req.QueryString == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query_string is required for search sources"})
			return
		}
		src.QueryString = req.QueryString
		src.Status = database.SourceActive
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be feed or search"})
		return
	}

	sourceID, err := h.sourceRepo.CreateSource(src)
	if err != nil {
		slog.Error("Database error", "operation", "create_source", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      sourceID,
	})
}

func (h *Handler) APIUpdateSource(c *gin.Context) {
	sourceID, ok := pathID(c)
	if !ok {
		return
	}

	src, err := h.sourceRepo.GetSource(sourceID)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source_id", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	if err = h.scheduler.EnqueueSourceUpdate(sourceID); err != nil {
		slog.Error("Error enqueueing source update", "source_id", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue source update",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Source update enqueued",
		"source":  sourceInfo(src),
	})
}

func (h *Handler) APIListImports(c *gin.Context) {
	sourceID, ok := pathID(c)
	if !ok {
		return
	}

	jobs, err := h.importRepo.ListImportJobs(sourceID)
	if err != nil {
		slog.Error("Database error", "operation", "list_imports", "source_id", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]map[string]interface{}, 0, len(jobs))
	for i := range jobs {
		list = append(list, importInfo(&jobs[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"imports": list,
		"total":   len(list),
	})
}

func (h *Handler) APIGetImport(c *gin.Context) {
	importID, ok := pathID(c)
	if !ok {
		return
	}

	job, err := h.importRepo.GetImportJob(importID)
	if err != nil {
		slog.Error("Database error", "operation", "get_import", "import_id", importID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
		return
	}

	details := importInfo(job)

	if importErrors, err := h.importRepo.ListErrors(importID); err == nil {
		errorList := make([]map[string]interface{}, 0, len(importErrors))
		for _, importError := range importErrors {
			errorList = append(errorList, map[string]interface{}{
				"message":    importError.Message,
				"detail":     importError.Detail,
				"is_skip":    importError.IsSkip,
				"created_at": importError.CreatedAt,
			})
		}
		details["errors"] = errorList
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListVideos(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant_id parameter"})
		return
	}

	limit := 100
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	videos, err := h.videoRepo.ListVideos(tenantID, c.Query("status"), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_videos", "tenant", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]map[string]interface{}, 0, len(videos))
	for i := range videos {
		list = append(list, videoInfo(&videos[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"videos": list,
		"total":  len(list),
	})
}

type submitVideoRequest struct {
	TenantID     string   `json:"tenant_id" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	WebsiteURL   string   `json:"website_url"`
	EmbedCode    string   `json:"embed_code"`
	FileURL      string   `json:"file_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Tags         []string `json:"tags"`
	Authors      []string `json:"authors"`
	Categories   []string `json:"categories"`
	Status       string   `json:"status"`
}

func (h *Handler) APISubmitVideo(c *gin.Context) {
	var req submitVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if _, err := h.tenantCache.GetConfig(req.TenantID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tenant", "details": err.Error()})
		return
	}

	if req.Status != "" && req.Status != database.VideoUnapproved && req.Status != database.VideoActive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be unapproved or active"})
		return
	}

	video := &database.Video{
		TenantID:     req.TenantID,
		Name:         req.Name,
		Description:  req.Description,
		WebsiteURL:   req.WebsiteURL,
		EmbedCode:    req.EmbedCode,
		FileURL:      req.FileURL,
		ThumbnailURL: req.ThumbnailURL,
		Authors:      req.Authors,
		Categories:   req.Categories,
		Status:       req.Status,
	}

	videoID, err := h.normalizer.Submit(c.Request.Context(), video, req.Tags)
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicateVideo) {
			c.JSON(http.StatusConflict, gin.H{"error": "A video with this link already exists"})
			return
		}
		slog.Error("Video submission failed", "tenant", req.TenantID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Submission failed", "details": err.Error()})
		return
	}

	if video.Status == database.VideoActive {
		if err = h.scheduler.EnqueueVideoIndex(videoID); err != nil {
			slog.Warn("Failed to enqueue video indexing", "video_id", videoID, "error", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      videoID,
	})
}

type moderateVideoRequest struct {
	Action string `json:"action" binding:"required"`
}

func (h *Handler) APIModerateVideo(c *gin.Context) {
	videoID, ok := pathID(c)
	if !ok {
		return
	}

	var req moderateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var status string
	switch req.Action {
	case "approve":
		status = database.VideoActive
	case "reject":
		status = database.VideoRejected
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be approve or reject"})
		return
	}

	video, err := h.videoRepo.GetVideo(videoID)
	if err != nil {
		slog.Error("Database error", "operation", "get_video", "video_id", videoID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if video == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	if err = h.videoRepo.SetVideoStatus(videoID, status); err != nil {
		slog.Error("Database error", "operation", "moderate_video", "video_id", videoID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// The search index follows asynchronously; the task re-reads the video
	// and applies whichever status it finds.
	if err = h.scheduler.EnqueueVideoIndex(videoID); err != nil {
		slog.Warn("Failed to enqueue video indexing", "video_id", videoID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      videoID,
		"status":  status,
	})
}

func (h *Handler) APISearch(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	query := c.Query("q")
	if tenantID == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant_id or q parameter"})
		return
	}

	limit := 50
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	results, err := h.index.Search(c.Request.Context(), tenantID, query, limit)
	if err != nil {
		slog.Error("Search index error", "tenant", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	list := make([]map[string]interface{}, 0, len(results))
	for _, result := range results {
		list = append(list, map[string]interface{}{
			"video_id": result.VideoID,
			"name":     result.Name,
			"rank":     result.Rank,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"results": list,
		"total":   len(list),
	})
}

func (h *Handler) APIInvalidateTenant(c *gin.Context) {
	tenantID := c.Param("id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant id parameter"})
		return
	}

	tenantConfig, err := h.tenantCache.Invalidate(tenantID)
	if err != nil {
		slog.Error("Tenant invalidation failed", "tenant", tenantID, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to reload tenant config", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tenant": gin.H{
			"id":            tenantConfig.ID,
			"name":          tenantConfig.Name,
			"enforce_tiers": tenantConfig.Settings.EnforceTiers,
			"video_limit":   tenantConfig.Settings.VideoLimit,
		},
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id parameter"})
		return 0, false
	}
	return id, true
}

func sourceInfo(src *database.Source) map[string]interface{} {
	info := map[string]interface{}{
		"id":             src.ID,
		"tenant_id":      src.TenantID,
		"kind":           src.Kind,
		"name":           src.Name,
		"status":         src.Status,
		"auto_approve":   src.AutoApprove,
		"auto_update":    src.AutoUpdate,
		"when_submitted": src.WhenSubmitted,
	}
	if src.Kind == database.SourceKindFeed {
		info["feed_url"] = src.FeedURL
	} else {
		info["query_string"] = src.QueryString
	}
	if src.LastUpdated != nil {
		info["last_updated"] = src.LastUpdated
	}
	return info
}

func importInfo(job *database.ImportJob) map[string]interface{} {
	info := map[string]interface{}{
		"id":              job.ID,
		"source_id":       job.SourceID,
		"status":          job.Status,
		"auto_approve":    job.AutoApprove,
		"videos_imported": job.VideosImported,
		"videos_skipped":  job.VideosSkipped,
		"started_at":      job.StartedAt,
	}
	if job.TotalVideos != nil {
		info["total_videos"] = *job.TotalVideos
	}
	if job.LastActivity != nil {
		info["last_activity"] = job.LastActivity
	}
	return info
}

func videoInfo(video *database.Video) map[string]interface{} {
	info := map[string]interface{}{
		"id":             video.ID,
		"tenant_id":      video.TenantID,
		"guid":           video.GUID,
		"name":           video.Name,
		"website_url":    video.WebsiteURL,
		"status":         video.Status,
		"when_submitted": video.WhenSubmitted,
	}
	if video.SourceID != nil {
		info["source_id"] = *video.SourceID
	}
	if video.ImportID != nil {
		info["import_id"] = *video.ImportID
	}
	if video.WhenApproved != nil {
		info["when_approved"] = video.WhenApproved
	}
	if video.WhenPublished != nil {
		info["when_published"] = video.WhenPublished
	}
	return info
}
