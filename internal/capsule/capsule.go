package capsule

import "time"

// Type is the capsule category. It is fixed at creation and decides whether
// a reflection question is mandatory (memory never carries one, the rest do).
type Type string

const (
	TypeEmotion  Type = "emotion"
	TypeGoal     Type = "goal"
	TypeMemory   Type = "memory"
	TypeDecision Type = "decision"
)

// Status is the lifecycle state. Progression is strictly one-way:
// locked -> ready -> opened. Opened is terminal except for deletion.
type Status string

const (
	StatusLocked Status = "locked"
	StatusReady  Status = "ready"
	StatusOpened Status = "opened"
)

// Field limits.
const (
	MaxContentChars  = 2000
	MaxQuestionChars = 500
	MaxImages        = 3
)

// MinUnlockLead is the minimum distance between "now" and the unlock time at creation.
const MinUnlockLead = time.Minute

// Capsule represents a locked message tied to a future unlock date.
// Timestamps are epoch milliseconds.
type Capsule struct {
	// ID is a UUID that uniquely identifies this capsule
	ID string

	// Type is the capsule category (immutable after creation)
	Type Type

	// Status is the current lifecycle state
	Status Status

	// Content is the message text (trimmed, 1-2000 chars)
	Content string

	// ReflectionQuestion is required unless Type is memory, in which case it is nil
	ReflectionQuestion *string

	// ReflectionAnswer is written exactly once, when the capsule is opened (nullable)
	ReflectionAnswer *string

	// CreatedAt is when the capsule was created
	CreatedAt int64

	// UnlockAt is when the capsule becomes ready; always after CreatedAt
	UnlockAt int64

	// OpenedAt is set once, when status becomes opened (nullable)
	OpenedAt *int64

	// UpdatedAt is when the capsule was last written
	UpdatedAt int64

	// Images are the attached photos, 0-3, in selection order
	Images []Image
}

// Image is a photo attached to a capsule. The capsule exclusively owns the
// row and the backing file; both are removed with the capsule.
type Image struct {
	// ID is a ULID that uniquely identifies this image
	ID string

	// CapsuleID is the owning capsule
	CapsuleID string

	// FilePath is the copied file on disk (not the original picker URI)
	FilePath string

	// OrderIndex preserves selection order, 0-2, unique per capsule
	OrderIndex int

	// CreatedAt is when the image was copied in
	CreatedAt int64
}

// ValidType reports whether t is one of the four known capsule types.
func ValidType(t Type) bool {
	switch t {
	case TypeEmotion, TypeGoal, TypeMemory, TypeDecision:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the three known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusLocked, StatusReady, StatusOpened:
		return true
	}
	return false
}

// RequiresReflection reports whether the type carries a reflection question.
func (t Type) RequiresReflection() bool {
	return t != TypeMemory
}

// ValidAnswer reports whether answer matches the type's vocabulary:
// yes/no for emotion and goal, "1".."5" for decision. Memory takes no answer.
func ValidAnswer(t Type, answer string) bool {
	switch t {
	case TypeEmotion, TypeGoal:
		return answer == "yes" || answer == "no"
	case TypeDecision:
		switch answer {
		case "1", "2", "3", "4", "5":
			return true
		}
	}
	return false
}

// FormatTime renders an epoch-millisecond timestamp as RFC3339 UTC.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
