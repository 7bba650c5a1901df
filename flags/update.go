package flags

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/willowbb/willow/notifs"
)

// Changeset maps record field names to new values. The reserved key
// "datetime" overrides the change's timestamp (epoch milliseconds) and is
// never written to the record.
type Changeset map[string]string

// Update applies a changeset to a flag. Fields whose new value equals the
// current value are dropped first; if nothing remains the update is a
// complete no-op (no write, no history, no hooks). State and assignee
// changes move the flag between the corresponding indexes; a new non-empty
// assignee is notified. The applied changeset is appended to history
// attributed to actorUID. Fails with ErrNotFound when no such flag exists.
func (e *Engine) Update(ctx context.Context, flagID int64, actorUID string, changeset Changeset) error {
	now := time.Now().UnixMilli()
	if raw, ok := changeset["datetime"]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			now = ms
		}
	}

	fields := make([]string, 0, len(changeset))
	for field := range changeset {
		if field != "datetime" {
			fields = append(fields, field)
		}
	}
	current, err := e.Store.GetObjectFields(ctx, flagKey(flagID), append(fields, "flagId"))
	if err != nil {
		return fmt.Errorf("reading flag %d: %w", flagID, err)
	}
	if current["flagId"] == "" {
		return fmt.Errorf("%w: %d", ErrNotFound, flagID)
	}

	// immutable diff: both the index movers and the history append see the
	// same pruned changeset, never the caller's map
	effective := make(Changeset, len(changeset))
	for _, field := range fields {
		if current[field] != changeset[field] {
			effective[field] = changeset[field]
		}
	}
	if len(effective) == 0 {
		return nil
	}

	if newState, ok := effective["state"]; ok {
		if !State(newState).Valid() {
			return fmt.Errorf("%w: unknown state %q", ErrInvalidData, newState)
		}
	}

	member := strconv.FormatInt(flagID, 10)
	if newState, ok := effective["state"]; ok {
		if err := e.Store.SortedSetAdd(ctx, prefixByState+newState, float64(now), member); err != nil {
			return fmt.Errorf("indexing flag %d by state: %w", flagID, err)
		}
		if old := current["state"]; old != "" {
			if err := e.Store.SortedSetRemove(ctx, prefixByState+old, member); err != nil {
				return fmt.Errorf("unindexing flag %d from state %s: %w", flagID, old, err)
			}
		}
	}
	if newAssignee, ok := effective["assignee"]; ok {
		if err := e.Store.SortedSetAdd(ctx, prefixByAssignee+newAssignee, float64(now), member); err != nil {
			return fmt.Errorf("indexing flag %d by assignee: %w", flagID, err)
		}
		if old := current["assignee"]; old != "" {
			if err := e.Store.SortedSetRemove(ctx, prefixByAssignee+old, member); err != nil {
				return fmt.Errorf("unindexing flag %d from assignee %s: %w", flagID, old, err)
			}
		}
	}

	record := make(map[string]string, len(effective))
	for field, value := range effective {
		record[field] = value
	}
	if err := e.Store.SetObject(ctx, flagKey(flagID), record); err != nil {
		return fmt.Errorf("writing flag %d: %w", flagID, err)
	}

	historyFields := make(map[string]any, len(effective))
	for field, value := range effective {
		historyFields[field] = value
	}
	if err := e.AppendHistory(ctx, flagID, actorUID, historyFields, now); err != nil {
		return err
	}

	flagsUpdatedCount.Inc()

	if assignee, ok := effective["assignee"]; ok && assignee != "" {
		e.notifyAssignee(ctx, flagID, actorUID, assignee)
	}

	evt := UpdateEvent{FlagID: flagID, ActorUID: actorUID, Changeset: effective}
	for _, hook := range e.onUpdate {
		hook(ctx, evt)
	}
	return nil
}

// notifyAssignee is best-effort: delivery failure never fails or rolls
// back the update.
func (e *Engine) notifyAssignee(ctx context.Context, flagID int64, actorUID, assignee string) {
	note := &notifs.Notification{
		Type:      "my-flags",
		BodyShort: fmt.Sprintf("Flag %d has been assigned to you", flagID),
		Path:      fmt.Sprintf("/flags/%d", flagID),
		NID:       fmt.Sprintf("flag-assign|%d|%s", flagID, assignee),
		From:      actorUID,
	}
	if err := e.Notifier.Push(ctx, note, []string{assignee}); err != nil {
		flagNotificationErrors.WithLabelValues(note.Type).Inc()
		e.Logger.Error("assignee notification failed", "flagId", flagID, "assignee", assignee, "err", err)
		return
	}
	flagNotificationsPushed.WithLabelValues(note.Type).Inc()
}
