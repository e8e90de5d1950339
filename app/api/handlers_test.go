package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/video-comb/app/cfg"
	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/search"
	"github.com/lysyi3m/video-comb/app/tasks"
	"github.com/lysyi3m/video-comb/app/tenant"
)

const testAPIKey = "test-key"

// MockScheduler records enqueue calls for assertions
type MockScheduler struct {
	sourceUpdates []int64
	videoIndexes  []int64
}

var _ tasks.TaskSchedulerInterface = (*MockScheduler)(nil)

func (m *MockScheduler) Start() {}
func (m *MockScheduler) Stop()  {}

func (m *MockScheduler) EnqueueTask(task tasks.TaskInterface) error {
	return nil
}

func (m *MockScheduler) EnqueueSourceUpdate(sourceID int64) error {
	m.sourceUpdates = append(m.sourceUpdates, sourceID)
	return nil
}

func (m *MockScheduler) EnqueueVideoIndex(videoID int64) error {
	m.videoIndexes = append(m.videoIndexes, videoID)
	return nil
}

type testServer struct {
	router    *gin.Engine
	scheduler *MockScheduler
	sources   database.SourceRepository
	imports   database.ImportRepository
	videos    database.VideoRepository
	index     *search.Index
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg.Set(&cfg.Cfg{APIAccessKey: testAPIKey})

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err = database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	index, err := search.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open search index: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	tenantsDir := t.TempDir()
	tenantYAML := "name: Test Tenant\nsettings:\n  video_limit: 100\n"
	if err = os.WriteFile(filepath.Join(tenantsDir, "testtenant.yml"), []byte(tenantYAML), 0o644); err != nil {
		t.Fatalf("Failed to write tenant config: %v", err)
	}

	tenantCache := tenant.NewConfigCache(tenantsDir)
	if err = tenantCache.Run(); err != nil {
		t.Fatalf("Failed to load tenant configs: %v", err)
	}

	scheduler := &MockScheduler{}
	sources := database.NewSourceRepository(db)
	imports := database.NewImportRepository(db)
	videos := database.NewVideoRepository(db)

	handler := NewHandler(tenantCache, sources, imports, videos, index, scheduler)

	return &testServer{
		router:    NewServer(handler),
		scheduler: scheduler,
		sources:   sources,
		imports:   imports,
		videos:    videos,
		index:     index,
	}
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/sources?tenant_id=testtenant", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without API key, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/sources?tenant_id=testtenant", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := decodeResponse(t, w)
	if body["loaded_tenants"] != float64(1) {
		t.Errorf("Expected 1 loaded tenant, got %v", body["loaded_tenants"])
	}
}

func TestCreateSource(t *testing.T) {
	s := newTestServer(t)

	w := s.request(t, "POST", "/api/sources", map[string]interface{}{
		"tenant_id":    "testtenant",
		"kind":         "feed",
		"name":         "Test Feed",
		"feed_url":     "https://example.com/feed.rss",
		"auto_approve": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Feed sources start unapproved until their first import completes.
	sources, err := s.sources.ListSources("testtenant")
	if err != nil {
		t.Fatalf("Failed to list sources: %v", err)
	}
	if len(sources) != 1 || sources[0].Status != database.SourceUnapproved {
		t.Errorf("Expected 1 unapproved source, got %+v", sources)
	}

	// Missing feed_url is rejected.
	w = s.request(t, "POST", "/api/sources", map[string]interface{}{
		"tenant_id": "testtenant",
		"kind":      "feed",
		"name":      "Broken",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for feed without URL, got %d", w.Code)
	}

	// Unknown tenants are rejected.
	w = s.request(t, "POST", "/api/sources", map[string]interface{}{
		"tenant_id": "nobody",
		"kind":      "feed",
		"name":      "Orphan",
		"feed_url":  "https://example.com/feed.rss",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown tenant, got %d", w.Code)
	}

	// Search sources are immediately active.
	w = s.request(t, "POST", "/api/sources", map[string]interface{}{
		"tenant_id":    "testtenant",
		"kind":         "search",
		"name":         "Search",
		"query_string": "jazz",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	sources, _ = s.sources.ListSources("testtenant")
	for _, src := range sources {
		if src.Kind == database.SourceKindSearch && src.Status != database.SourceActive {
			t.Errorf("Expected search source active, got '%s'", src.Status)
		}
	}
}

func TestTriggerSourceUpdate(t *testing.T) {
	s := newTestServer(t)

	sourceID, err := s.sources.CreateSource(&database.Source{
		TenantID:      "testtenant",
		Kind:          database.SourceKindFeed,
		Name:          "Test Feed",
		FeedURL:       "https://example.com/feed.rss",
		Status:        database.SourceUnapproved,
		WhenSubmitted: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	w := s.request(t, "POST", "/api/sources/9999/update", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown source, got %d", w.Code)
	}

	w = s.request(t, "POST", "/api/sources/1/update", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if len(s.scheduler.sourceUpdates) != 1 || s.scheduler.sourceUpdates[0] != sourceID {
		t.Errorf("Expected update enqueued for source %d, got %v", sourceID, s.scheduler.sourceUpdates)
	}
}

func TestImportInspection(t *testing.T) {
	s := newTestServer(t)

	sourceID, err := s.sources.CreateSource(&database.Source{
		TenantID:      "testtenant",
		Kind:          database.SourceKindFeed,
		Name:          "Test Feed",
		FeedURL:       "https://example.com/feed.rss",
		Status:        database.SourceUnapproved,
		WhenSubmitted: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	jobID, err := s.imports.CreateImportJob(sourceID, true)
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if err = s.imports.RecordError(jobID, "duplicate guid", "guid-1", true); err != nil {
		t.Fatalf("Failed to record error: %v", err)
	}

	w := s.request(t, "GET", "/api/sources/1/imports", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decodeResponse(t, w)
	if body["total"] != float64(1) {
		t.Errorf("Expected 1 import, got %v", body["total"])
	}

	w = s.request(t, "GET", "/api/imports/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body = decodeResponse(t, w)
	if body["status"] != "started" {
		t.Errorf("Expected started status, got %v", body["status"])
	}
	errorList, ok := body["errors"].([]interface{})
	if !ok || len(errorList) != 1 {
		t.Errorf("Expected 1 recorded error, got %v", body["errors"])
	}

	w = s.request(t, "GET", "/api/imports/9999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown import, got %d", w.Code)
	}
}

func TestSubmitAndModerateVideo(t *testing.T) {
	s := newTestServer(t)

	w := s.request(t, "POST", "/api/videos", map[string]interface{}{
		"tenant_id":   "testtenant",
		"name":        "Submitted Video",
		"website_url": "https://example.com/v/1",
		"embed_code":  "<iframe></iframe>",
		"tags":        []string{"music"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Duplicate link is refused.
	w = s.request(t, "POST", "/api/videos", map[string]interface{}{
		"tenant_id":   "testtenant",
		"name":        "Again",
		"website_url": "https://example.com/v/1",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate link, got %d", w.Code)
	}

	w = s.request(t, "POST", "/api/videos/1/moderate", map[string]interface{}{"action": "approve"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	video, err := s.videos.GetVideo(1)
	if err != nil {
		t.Fatalf("Failed to load video: %v", err)
	}
	if video.Status != database.VideoActive {
		t.Errorf("Expected active video, got '%s'", video.Status)
	}
	if video.WhenApproved == nil {
		t.Error("Expected approval timestamp")
	}
	if len(s.scheduler.videoIndexes) != 1 || s.scheduler.videoIndexes[0] != 1 {
		t.Errorf("Expected index sync enqueued, got %v", s.scheduler.videoIndexes)
	}

	w = s.request(t, "POST", "/api/videos/1/moderate", map[string]interface{}{"action": "purge"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown action, got %d", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t)

	err := s.index.Upsert(context.Background(), search.Entry{
		VideoID:  1,
		TenantID: "testtenant",
		Name:     "Jazz Concert",
	})
	if err != nil {
		t.Fatalf("Failed to index entry: %v", err)
	}

	w := s.request(t, "GET", "/api/search?tenant_id=testtenant&q=jazz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeResponse(t, w)
	if body["total"] != float64(1) {
		t.Errorf("Expected 1 result, got %v", body["total"])
	}

	w = s.request(t, "GET", "/api/search?tenant_id=testtenant", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without query, got %d", w.Code)
	}
}

func TestInvalidateTenant(t *testing.T) {
	s := newTestServer(t)

	w := s.request(t, "POST", "/api/tenants/testtenant/invalidate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.request(t, "POST", "/api/tenants/nobody/invalidate", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown tenant, got %d", w.Code)
	}
}
