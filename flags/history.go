package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/willowbb/willow/users"
)

// HistoryEntry is one recorded state change. Fields carries the changeset
// as written, except that state values are resolved to display labels at
// read time. A note append shows up here as a sentinel "notes" field with
// no content.
type HistoryEntry struct {
	UID         string         `json:"uid"`
	Fields      map[string]any `json:"fields"`
	Datetime    int64          `json:"datetime"`
	DatetimeISO string         `json:"datetimeISO"`
	User        *users.User    `json:"user,omitempty"`
}

// NoteEntry is one free-text moderator note.
type NoteEntry struct {
	UID         string      `json:"uid"`
	Content     string      `json:"content"`
	Datetime    int64       `json:"datetime"`
	DatetimeISO string      `json:"datetimeISO"`
	User        *users.User `json:"user,omitempty"`
}

// AppendHistory records one changeset in the flag's append-only history.
// A zero datetime means now. Entries are never edited or removed;
// corrections are new entries.
func (e *Engine) AppendHistory(ctx context.Context, flagID int64, actorUID string, fields map[string]any, datetime int64) error {
	if datetime == 0 {
		datetime = time.Now().UnixMilli()
	}
	// the timestamp inside the member keeps it unique when the same actor
	// applies the same changeset twice
	payload, err := json.Marshal([]any{actorUID, fields, datetime})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return e.Store.SortedSetAdd(ctx, historyKey(flagID), float64(datetime), string(payload))
}

// GetHistory returns the flag's history in reverse-chronological order,
// with actor identities joined in one batched lookup.
func (e *Engine) GetHistory(ctx context.Context, flagID int64) ([]HistoryEntry, error) {
	raw, err := e.Store.SortedSetRevRangeWithScores(ctx, historyKey(flagID), 0, -1)
	if err != nil {
		return nil, err
	}

	history := make([]HistoryEntry, 0, len(raw))
	uids := make([]string, 0, len(raw))
	for _, entry := range raw {
		var parts []json.RawMessage
		if err := json.Unmarshal([]byte(entry.Member), &parts); err != nil || len(parts) < 2 {
			return nil, fmt.Errorf("%w: malformed history entry for flag %d", ErrSerialization, flagID)
		}
		var uid string
		var fields map[string]any
		if err := json.Unmarshal(parts[0], &uid); err != nil {
			return nil, fmt.Errorf("%w: malformed history actor for flag %d", ErrSerialization, flagID)
		}
		if err := json.Unmarshal(parts[1], &fields); err != nil {
			return nil, fmt.Errorf("%w: malformed history changeset for flag %d", ErrSerialization, flagID)
		}

		if rawState, ok := fields["state"]; ok {
			s, _ := rawState.(string)
			fields["state"] = e.stateLabel(s)
		}

		datetime := int64(entry.Score)
		uids = append(uids, uid)
		history = append(history, HistoryEntry{
			UID:         uid,
			Fields:      fields,
			Datetime:    datetime,
			DatetimeISO: millisToISO(datetime),
		})
	}

	actors, err := e.Users.GetUsersFields(ctx, uids, []string{"uid", "username", "userslug", "picture"})
	if err != nil {
		return nil, err
	}
	for i := range history {
		history[i].User = actors[i]
	}
	return history, nil
}

// AppendNote records a moderator note and a matching sentinel history
// entry, so the unified timeline shows that a note was added without
// duplicating its content. A zero datetime means now. Fails with
// ErrNotFound when no such flag exists.
func (e *Engine) AppendNote(ctx context.Context, flagID int64, actorUID, content string, datetime int64) error {
	fields, err := e.Store.GetObjectFields(ctx, flagKey(flagID), []string{"flagId"})
	if err != nil {
		return fmt.Errorf("reading flag %d: %w", flagID, err)
	}
	if fields["flagId"] == "" {
		return fmt.Errorf("%w: %d", ErrNotFound, flagID)
	}
	if datetime == 0 {
		datetime = time.Now().UnixMilli()
	}
	payload, err := json.Marshal([]any{actorUID, content})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := e.Store.SortedSetAdd(ctx, notesKey(flagID), float64(datetime), string(payload)); err != nil {
		return err
	}
	return e.AppendHistory(ctx, flagID, actorUID, map[string]any{"notes": nil}, datetime)
}

// GetNotes returns the flag's notes in reverse-chronological order, with
// author identities joined in one batched lookup.
func (e *Engine) GetNotes(ctx context.Context, flagID int64) ([]NoteEntry, error) {
	raw, err := e.Store.SortedSetRevRangeWithScores(ctx, notesKey(flagID), 0, -1)
	if err != nil {
		return nil, err
	}

	notes := make([]NoteEntry, 0, len(raw))
	uids := make([]string, 0, len(raw))
	for _, entry := range raw {
		var parts []string
		if err := json.Unmarshal([]byte(entry.Member), &parts); err != nil || len(parts) < 2 {
			return nil, fmt.Errorf("%w: malformed note entry for flag %d", ErrSerialization, flagID)
		}
		datetime := int64(entry.Score)
		uids = append(uids, parts[0])
		notes = append(notes, NoteEntry{
			UID:         parts[0],
			Content:     parts[1],
			Datetime:    datetime,
			DatetimeISO: millisToISO(datetime),
		})
	}

	authors, err := e.Users.GetUsersFields(ctx, uids, []string{"uid", "username", "userslug", "picture"})
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].User = authors[i]
	}
	return notes, nil
}
