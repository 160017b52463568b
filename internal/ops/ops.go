package ops

import (
	"context"

	"timecapsule/internal/capsule"
	"timecapsule/internal/db"
	"timecapsule/internal/filestore"
)

// DefaultUpcomingLimit is the home-screen capacity for the upcoming list.
// A product bound, not a safety limit.
const DefaultUpcomingLimit = 6

// ImageView is the caller-facing shape of an attached image.
type ImageView struct {
	ID         string `json:"id"`
	FilePath   string `json:"file_path"`
	OrderIndex int    `json:"order_index"`
	CreatedAt  string `json:"created_at"`
}

// CapsuleView is the caller-facing shape of a capsule. Timestamps are
// RFC3339 UTC strings; internally they are epoch milliseconds.
type CapsuleView struct {
	ID                 string      `json:"id"`
	Type               string      `json:"type"`
	Status             string      `json:"status"`
	Content            string      `json:"content"`
	ReflectionQuestion *string     `json:"reflection_question"`
	ReflectionAnswer   *string     `json:"reflection_answer"`
	CreatedAt          string      `json:"created_at"`
	UnlockAt           string      `json:"unlock_at"`
	OpenedAt           *string     `json:"opened_at"`
	UpdatedAt          string      `json:"updated_at"`
	Images             []ImageView `json:"images"`
}

// NewCapsuleView converts a domain capsule to its caller-facing shape.
func NewCapsuleView(c *capsule.Capsule) *CapsuleView {
	view := &CapsuleView{
		ID:                 c.ID,
		Type:               string(c.Type),
		Status:             string(c.Status),
		Content:            c.Content,
		ReflectionQuestion: c.ReflectionQuestion,
		ReflectionAnswer:   c.ReflectionAnswer,
		CreatedAt:          capsule.FormatTime(c.CreatedAt),
		UnlockAt:           capsule.FormatTime(c.UnlockAt),
		UpdatedAt:          capsule.FormatTime(c.UpdatedAt),
		Images:             make([]ImageView, 0, len(c.Images)),
	}
	if c.OpenedAt != nil {
		opened := capsule.FormatTime(*c.OpenedAt)
		view.OpenedAt = &opened
	}
	for _, img := range c.Images {
		view.Images = append(view.Images, ImageView{
			ID:         img.ID,
			FilePath:   img.FilePath,
			OrderIndex: img.OrderIndex,
			CreatedAt:  capsule.FormatTime(img.CreatedAt),
		})
	}
	return view
}

// loadCapsule reads a capsule plus its image rows, dropping rows whose
// backing file has vanished from disk.
func loadCapsule(ctx context.Context, q db.Queryer, files *filestore.Store, id string) (*capsule.Capsule, error) {
	c, err := db.GetByID(ctx, q, id)
	if err != nil {
		return nil, err
	}

	images, err := db.ListImages(ctx, q, id)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		if files != nil && !files.Exists(img.FilePath) {
			continue
		}
		c.Images = append(c.Images, img)
	}

	return c, nil
}

// loadView is loadCapsule plus view conversion.
func loadView(ctx context.Context, q db.Queryer, files *filestore.Store, id string) (*CapsuleView, error) {
	c, err := loadCapsule(ctx, q, files, id)
	if err != nil {
		return nil, err
	}
	return NewCapsuleView(c), nil
}
