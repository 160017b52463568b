package ops

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"timecapsule/internal/capsule"
)

func TestListUpcoming_CapsAtSix(t *testing.T) {
	database, files := setupTest(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	for i := 0; i < 8; i++ {
		seedCapsule(t, database, fmt.Sprintf("cap-%d", i), capsule.TypeMemory,
			capsule.StatusLocked, now+int64(i+1)*time.Minute.Milliseconds())
	}

	// limit 0 falls back to the home-screen capacity of 6
	views, err := ListUpcoming(ctx, database, files, 0)
	if err != nil {
		t.Fatalf("ListUpcoming failed: %v", err)
	}
	if len(views) != DefaultUpcomingLimit {
		t.Fatalf("len = %d, want %d", len(views), DefaultUpcomingLimit)
	}
	if views[0].ID != "cap-0" {
		t.Errorf("first = %s, want the soonest unlock", views[0].ID)
	}
}

func TestListUpcoming_IncludesReadyExcludesOpened(t *testing.T) {
	database, files := setupTest(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	seedCapsule(t, database, "locked", capsule.TypeMemory, capsule.StatusLocked, now+time.Hour.Milliseconds())
	seedCapsule(t, database, "ready", capsule.TypeMemory, capsule.StatusReady, now-1)
	seedCapsule(t, database, "opened", capsule.TypeMemory, capsule.StatusOpened, now-1)

	views, err := ListUpcoming(ctx, database, files, 0)
	if err != nil {
		t.Fatalf("ListUpcoming failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	for _, v := range views {
		if v.ID == "opened" {
			t.Error("opened capsule leaked into the upcoming list")
		}
	}
}

func TestListOpened_OrderedByOpenedAtDesc(t *testing.T) {
	database, files := setupTest(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("cap-%d", i)
		seedCapsule(t, database, id, capsule.TypeMemory, capsule.StatusReady, now-1)
		if _, err := database.Exec(
			`UPDATE capsule SET status = 'opened', opened_at = ? WHERE id = ?`,
			now+int64(i)*1000, id,
		); err != nil {
			t.Fatalf("fixup failed: %v", err)
		}
	}

	views, err := ListOpened(ctx, database, files)
	if err != nil {
		t.Fatalf("ListOpened failed: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("len = %d, want 3", len(views))
	}
	if views[0].ID != "cap-2" {
		t.Errorf("first = %s, want most recently opened", views[0].ID)
	}
}

func TestGet_NotFoundIsNil(t *testing.T) {
	database, files := setupTest(t)

	view, err := Get(context.Background(), database, files, "missing")
	if err != nil {
		t.Fatalf("Get should not error on missing capsule: %v", err)
	}
	if view != nil {
		t.Errorf("view = %+v, want nil", view)
	}
}

func TestGet_FiltersVanishedImageFiles(t *testing.T) {
	database, files := setupTest(t)
	ctx := context.Background()

	view, err := Create(ctx, database, files, CreateInput{
		Type:       capsule.TypeMemory,
		Content:    "Two photos",
		UnlockAt:   time.Now().Add(time.Hour),
		ImagePaths: []string{writeImage(t, "a.jpg", 50), writeImage(t, "b.png", 50)},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Remove one backing file behind the store's back
	if err := os.Remove(view.Images[0].FilePath); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	got, err := Get(ctx, database, files, view.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Images) != 1 {
		t.Fatalf("images = %d, want the surviving one only", len(got.Images))
	}
	if got.Images[0].FilePath != view.Images[1].FilePath {
		t.Errorf("surviving image = %s", got.Images[0].FilePath)
	}

	// The row itself is untouched; filtering is read-time only
	if countRows(t, database, "capsule_image", "capsule_id", view.ID) != 2 {
		t.Error("image rows should not be mutated by read-time filtering")
	}
}
