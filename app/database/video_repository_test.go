package database

import (
	"testing"
	"time"
)

func TestFindByGUIDAndWebsiteURL(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	_, err := repo.CreateVideo(&Video{
		TenantID:   "tenant-1",
		GUID:       "guid-1",
		Name:       "First",
		WebsiteURL: "https://example.com/v/1",
		EmbedCode:  "<iframe></iframe>",
	})
	if err != nil {
		t.Fatalf("Failed to create video: %v", err)
	}

	matches, err := repo.FindByGUID("tenant-1", "guid-1")
	if err != nil {
		t.Fatalf("FindByGUID failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("Expected 1 match by guid, got %d", len(matches))
	}

	// Dedup is tenant-scoped; another tenant sees nothing.
	matches, err = repo.FindByGUID("tenant-2", "guid-1")
	if err != nil {
		t.Fatalf("FindByGUID failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches for other tenant, got %d", len(matches))
	}

	matches, err = repo.FindByWebsiteURL("tenant-1", "https://example.com/v/1")
	if err != nil {
		t.Fatalf("FindByWebsiteURL failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("Expected 1 match by website url, got %d", len(matches))
	}
}

func TestSetVideoStatusesSetsApprovalTime(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	id, err := repo.CreateVideo(&Video{
		TenantID:  "tenant-1",
		Name:      "Awaiting approval",
		EmbedCode: "<iframe></iframe>",
	})
	if err != nil {
		t.Fatalf("Failed to create video: %v", err)
	}

	if err := repo.SetVideoStatuses([]int64{id}, VideoActive); err != nil {
		t.Fatalf("Failed to set status: %v", err)
	}

	v, err := repo.GetVideo(id)
	if err != nil {
		t.Fatalf("Failed to get video: %v", err)
	}
	if v.Status != VideoActive {
		t.Errorf("Expected active status, got %s", v.Status)
	}
	if v.WhenApproved == nil {
		t.Error("Expected when_approved to be set on activation")
	}

	if err := repo.SetVideoStatus(id, VideoRejected); err != nil {
		t.Fatalf("Failed to reject video: %v", err)
	}
	v, err = repo.GetVideo(id)
	if err != nil {
		t.Fatalf("Failed to get video: %v", err)
	}
	if v.Status != VideoRejected {
		t.Errorf("Expected rejected status, got %s", v.Status)
	}
}

func TestCreateVideoBornActiveIsApproved(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	id, err := repo.CreateVideo(&Video{
		TenantID:  "tenant-1",
		Name:      "Admin submission",
		EmbedCode: "<iframe></iframe>",
		Status:    VideoActive,
	})
	if err != nil {
		t.Fatalf("Failed to create video: %v", err)
	}

	v, err := repo.GetVideo(id)
	if err != nil {
		t.Fatalf("Failed to get video: %v", err)
	}
	if v.WhenApproved == nil {
		t.Fatal("Expected when_approved to be set for a video created active")
	}
	if !v.WhenApproved.Equal(v.WhenSubmitted) {
		t.Errorf("Expected approval time %v to match submission time %v", v.WhenApproved, v.WhenSubmitted)
	}

	id, err = repo.CreateVideo(&Video{
		TenantID:  "tenant-1",
		Name:      "Awaiting moderation",
		EmbedCode: "<iframe></iframe>",
	})
	if err != nil {
		t.Fatalf("Failed to create video: %v", err)
	}
	v, err = repo.GetVideo(id)
	if err != nil {
		t.Fatalf("Failed to get video: %v", err)
	}
	if v.WhenApproved != nil {
		t.Errorf("Expected no approval time for an unapproved video, got %v", v.WhenApproved)
	}
}

func TestGetImportVideosOrderedBySubmission(t *testing.T) {
	db := newTestDB(t)
	sourceID := createTestSource(t, db)
	imports := NewImportRepository(db)
	repo := NewVideoRepository(db)

	jobID, err := imports.CreateImportJob(sourceID, true)
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	names := []string{"oldest", "middle", "newest"}
	for i, name := range names {
		_, err := repo.CreateVideo(&Video{
			TenantID:      "tenant-1",
			ImportID:      &jobID,
			Name:          name,
			EmbedCode:     "<iframe></iframe>",
			WhenSubmitted: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Failed to create video %s: %v", name, err)
		}
	}

	videos, err := repo.GetImportVideos(jobID, VideoUnapproved)
	if err != nil {
		t.Fatalf("Failed to get import videos: %v", err)
	}
	if len(videos) != 3 {
		t.Fatalf("Expected 3 videos, got %d", len(videos))
	}
	for i, name := range names {
		if videos[i].Name != name {
			t.Errorf("Expected video %d to be %s, got %s", i, name, videos[i].Name)
		}
	}
}

func TestAttachTags(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	id, err := repo.CreateVideo(&Video{
		TenantID:  "tenant-1",
		Name:      "Tagged",
		EmbedCode: "<iframe></iframe>",
	})
	if err != nil {
		t.Fatalf("Failed to create video: %v", err)
	}

	if err := repo.AttachTags(id, []string{"music", "live"}); err != nil {
		t.Fatalf("Failed to attach tags: %v", err)
	}
	// Attaching again must be idempotent.
	if err := repo.AttachTags(id, []string{"music"}); err != nil {
		t.Fatalf("Re-attaching tag failed: %v", err)
	}

	tags, err := repo.GetTags(id)
	if err != nil {
		t.Fatalf("Failed to get tags: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("Expected 2 tags, got %d: %v", len(tags), tags)
	}
}

func TestCountActiveVideos(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	for i := 0; i < 2; i++ {
		id, err := repo.CreateVideo(&Video{
			TenantID:  "tenant-1",
			Name:      "Video",
			EmbedCode: "<iframe></iframe>",
		})
		if err != nil {
			t.Fatalf("Failed to create video: %v", err)
		}
		if err := repo.SetVideoStatus(id, VideoActive); err != nil {
			t.Fatalf("Failed to activate video: %v", err)
		}
	}
	if _, err := repo.CreateVideo(&Video{
		TenantID:  "tenant-1",
		Name:      "Unapproved",
		EmbedCode: "<iframe></iframe>",
	}); err != nil {
		t.Fatalf("Failed to create video: %v", err)
	}

	count, err := repo.CountActiveVideos("tenant-1")
	if err != nil {
		t.Fatalf("Failed to count active videos: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 active videos, got %d", count)
	}
}
