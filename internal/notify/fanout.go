package notify

import (
	"context"
	"errors"

	"github.com/saaga0h/guardian-platform/internal/detection"
)

// Fanout delivers each escalation to every notifier, even when an earlier
// one fails
type Fanout []detection.Notifier

// NotifyEscalation calls every notifier and joins their errors
func (f Fanout) NotifyEscalation(ctx context.Context, esc detection.Escalation) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyEscalation(ctx, esc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
