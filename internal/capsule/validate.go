package capsule

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"timecapsule/internal/errors"
)

// ValidateContent trims the message text and checks its length.
// Returns the trimmed content on success.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errors.NewValidationField("content", "Content is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxContentChars {
		return "", errors.NewValidationField("content",
			fmt.Sprintf("Content must be at most %d characters", MaxContentChars))
	}
	return trimmed, nil
}

// ValidateReflectionQuestion enforces the per-type reflection rules:
// memory capsules must not carry a question, every other type must.
func ValidateReflectionQuestion(t Type, question *string) error {
	if t == TypeMemory {
		if question != nil {
			return errors.NewValidationField("reflectionQuestion",
				"Memory capsules do not take a reflection question")
		}
		return nil
	}
	if question == nil || strings.TrimSpace(*question) == "" {
		return errors.NewValidationField("reflectionQuestion", "Reflection question is required")
	}
	if utf8.RuneCountInString(*question) > MaxQuestionChars {
		return errors.NewValidationField("reflectionQuestion",
			fmt.Sprintf("Reflection question must be at most %d characters", MaxQuestionChars))
	}
	return nil
}

// ValidateUnlockAt checks that the unlock time is far enough in the future.
// Both arguments are epoch milliseconds.
func ValidateUnlockAt(unlockAt, now int64) error {
	if unlockAt < now+MinUnlockLead.Milliseconds() {
		return errors.NewValidationField("unlockAt",
			"Unlock date must be at least 1 minute in the future")
	}
	return nil
}

// ValidateImageCount caps attachments at MaxImages.
func ValidateImageCount(n int) error {
	if n > MaxImages {
		return errors.NewValidationField("images",
			fmt.Sprintf("At most %d images are allowed", MaxImages))
	}
	return nil
}

// ValidateAnswer checks the reflection answer against the type's vocabulary.
func ValidateAnswer(t Type, answer string) error {
	switch t {
	case TypeMemory:
		return errors.NewValidationField("reflectionAnswer",
			"Memory capsules do not take a reflection answer")
	case TypeEmotion, TypeGoal:
		if !ValidAnswer(t, answer) {
			return errors.NewValidationField("reflectionAnswer",
				`Reflection answer must be "yes" or "no"`)
		}
	case TypeDecision:
		if !ValidAnswer(t, answer) {
			return errors.NewValidationField("reflectionAnswer",
				`Reflection answer must be a rating from "1" to "5"`)
		}
	default:
		return errors.NewValidationField("type", fmt.Sprintf("Unknown capsule type %q", t))
	}
	return nil
}

// NowMillis returns the current wall-clock time as epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
