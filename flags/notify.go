package flags

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/willowbb/willow/notifs"
	"github.com/willowbb/willow/target"
	"github.com/willowbb/willow/users"
)

// Notify fans a freshly created flag out to the relevant moderators. Post
// flags reach administrators, global moderators, and the moderators of the
// post's category; user flags reach administrators and global moderators.
// The merge key collapses repeated flags on one target into a single
// notification thread. Delivery failure is surfaced but must not fail the
// flag itself; callers log and move on.
func (e *Engine) Notify(ctx context.Context, flag *Flag, fromUID string) error {
	reporterName := ""
	if flag.Reporter != nil {
		reporterName = flag.Reporter.Username
	}
	if reporterName == "" {
		reporter, err := e.Users.GetUserFields(ctx, flag.UID, []string{"username"})
		if err != nil {
			return fmt.Errorf("resolving reporter: %w", err)
		}
		reporterName = reporter.Username
	}

	switch flag.Type {
	case target.KindPost:
		var (
			payload    *target.Payload
			admins     []string
			globalMods []string
			catMods    []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			payload, err = e.GetTarget(gctx, flag.Type, flag.TargetID, fromUID)
			return err
		})
		g.Go(func() error {
			var err error
			admins, err = e.Users.GetMembers(gctx, users.RoleAdministrators)
			return err
		})
		g.Go(func() error {
			var err error
			globalMods, err = e.Users.GetMembers(gctx, users.RoleGlobalModerators)
			return err
		})
		g.Go(func() error {
			cid, err := e.GetTargetCid(gctx, flag.Type, flag.TargetID)
			if err != nil || cid == "" {
				return err
			}
			catMods, err = e.Users.GetMembers(gctx, users.CategoryModerators(cid))
			return err
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("resolving notification recipients: %w", err)
		}

		title := payload.Fields["title"]
		note := &notifs.Notification{
			Type:       "new-post-flag",
			BodyShort:  fmt.Sprintf("%s flagged a post in %s", reporterName, title),
			BodyLong:   flag.Description,
			Path:       "/post/" + flag.TargetID,
			NID:        "topic-flagged|" + flag.TargetID,
			From:       fromUID,
			TopicTitle: title,
		}
		return e.push(ctx, note, mergeRecipients(admins, globalMods, catMods))

	case target.KindUser:
		var (
			payload    *target.Payload
			admins     []string
			globalMods []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			payload, err = e.GetTarget(gctx, flag.Type, flag.TargetID, fromUID)
			return err
		})
		g.Go(func() error {
			var err error
			admins, err = e.Users.GetMembers(gctx, users.RoleAdministrators)
			return err
		})
		g.Go(func() error {
			var err error
			globalMods, err = e.Users.GetMembers(gctx, users.RoleGlobalModerators)
			return err
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("resolving notification recipients: %w", err)
		}

		note := &notifs.Notification{
			Type:      "new-user-flag",
			BodyShort: fmt.Sprintf("%s flagged user %s", reporterName, payload.Fields["username"]),
			BodyLong:  flag.Description,
			Path:      "/uid/" + flag.TargetID,
			NID:       "user-flagged|" + flag.TargetID,
			From:      fromUID,
		}
		return e.push(ctx, note, mergeRecipients(admins, globalMods))

	default:
		return fmt.Errorf("%w: cannot notify for target type %q", ErrInvalidData, flag.Type)
	}
}

func (e *Engine) push(ctx context.Context, note *notifs.Notification, recipients []string) error {
	if err := e.Notifier.Push(ctx, note, recipients); err != nil {
		flagNotificationErrors.WithLabelValues(note.Type).Inc()
		return fmt.Errorf("pushing notification %s: %w", note.NID, err)
	}
	flagNotificationsPushed.WithLabelValues(note.Type).Inc()
	return nil
}

func mergeRecipients(pools ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pool := range pools {
		for _, uid := range pool {
			if !seen[uid] {
				seen[uid] = true
				out = append(out, uid)
			}
		}
	}
	return out
}
