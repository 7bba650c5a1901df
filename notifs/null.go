package notifs

import (
	"context"
)

// NullNotifier drops every push. Used when no delivery transport is
// configured; flag mutations must never depend on delivery.
type NullNotifier struct {
}

var _ Notifier = (*NullNotifier)(nil)

func (nn *NullNotifier) Push(ctx context.Context, note *Notification, recipients []string) error {
	return nil
}
