package scheduler

import (
	"context"
	"log/slog"

	"timecapsule/internal/capsule"
)

// Notifier is the external notification collaborator: it schedules a local
// alert for a capsule's unlock time and cancels one by capsule id. Calls are
// best-effort; a failure must never block or fail repository flow.
type Notifier interface {
	Schedule(ctx context.Context, c capsule.Capsule) error
	Cancel(ctx context.Context, capsuleID string) error
}

// LogNotifier is a stand-in Notifier that only logs. Used by the dev CLI and
// as the default when no platform notifier is wired.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}

// Schedule logs the would-be notification.
func (n *LogNotifier) Schedule(_ context.Context, c capsule.Capsule) error {
	n.logger().Info("notification scheduled",
		"capsule_id", c.ID, "unlock_at", capsule.FormatTime(c.UnlockAt))
	return nil
}

// Cancel logs the would-be cancellation.
func (n *LogNotifier) Cancel(_ context.Context, capsuleID string) error {
	n.logger().Info("notification cancelled", "capsule_id", capsuleID)
	return nil
}
