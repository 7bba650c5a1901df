package flags

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/willowbb/willow/target"
	"github.com/willowbb/willow/users"
)

// Report is a flag submission to validate.
type Report struct {
	Type target.Kind
	ID   string
	UID  string
}

// Validate checks a report before any write happens: the target must
// exist and not be deleted, the reporter must not be banned, and the
// reporter must meet the reputation threshold unless they hold edit
// rights on the target.
func (e *Engine) Validate(ctx context.Context, report Report) error {
	res, err := e.Targets.Resolver(report.Type)
	if err != nil {
		return fmt.Errorf("%w: unknown target type %q", ErrInvalidData, report.Type)
	}

	var (
		exists   bool
		payload  *target.Payload
		reporter *users.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exists, err = res.Exists(gctx, report.ID)
		return err
	})
	g.Go(func() error {
		var err error
		payload, err = res.Render(gctx, report.ID, report.UID)
		return err
	})
	g.Go(func() error {
		var err error
		reporter, err = e.Users.GetUserData(gctx, report.UID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("validating report: %w", err)
	}

	if !exists {
		return ErrInvalidTarget
	}
	if payload.Deleted {
		return ErrTargetGone
	}
	if reporter.Banned {
		return ErrUserBanned
	}

	editable, err := e.Users.CanEdit(ctx, string(report.Type), report.ID, report.UID)
	if err != nil {
		return fmt.Errorf("checking edit capability: %w", err)
	}
	// the reputation floor does not apply to reporters who could edit the
	// target anyway
	if !editable && reporter.Reputation < e.Config.MinReputation {
		return ErrNotEnoughReputation
	}
	return nil
}
