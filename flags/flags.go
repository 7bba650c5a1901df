// Package flags implements the moderation-flag engine: reports against
// posts and user accounts, stored as records with mutable moderation state,
// secondary sorted-set indexes for filtered retrieval, an append-only
// history and notes ledger, and notification fan-out to moderators.
package flags

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/willowbb/willow/flags/store"
	"github.com/willowbb/willow/notifs"
	"github.com/willowbb/willow/target"
	"github.com/willowbb/willow/users"
)

// Flag is a hydrated moderation report.
type Flag struct {
	ID          int64       `json:"flagId"`
	Type        target.Kind `json:"type"`
	TargetID    string      `json:"targetId"`
	UID         string      `json:"uid"`
	Description string      `json:"description"`
	Datetime    int64       `json:"datetime"`
	State       State       `json:"state"`
	Assignee    string      `json:"assignee"`

	DatetimeISO    string          `json:"datetimeISO,omitempty"`
	TargetReadable string          `json:"target_readable,omitempty"`
	LabelClass     string          `json:"labelClass,omitempty"`
	Target         *target.Payload `json:"target,omitempty"`
	Reporter       *users.User     `json:"reporter,omitempty"`
	History        []HistoryEntry  `json:"history,omitempty"`
	Notes          []NoteEntry     `json:"notes,omitempty"`
}

// Config carries engine tunables.
type Config struct {
	// MinReputation is the reputation floor for reporters without edit
	// rights on the target.
	MinReputation int64

	// StateLabels overrides the default display labels resolved into
	// history reads.
	StateLabels map[State]string
}

// Engine is the flag store plus its collaborators. All fields must be set;
// use NewEngine.
type Engine struct {
	Logger   *slog.Logger
	Store    store.Store
	Users    users.Directory
	Targets  *target.Registry
	Notifier notifs.Notifier
	Config   Config

	onCreate []CreateHook
	onUpdate []UpdateHook
}

// CreateHook runs after a flag is successfully created.
type CreateHook func(ctx context.Context, flag *Flag)

// UpdateEvent describes one applied update, with the effective (pruned)
// changeset.
type UpdateEvent struct {
	FlagID    int64
	ActorUID  string
	Changeset Changeset
}

// UpdateHook runs after a non-empty update is applied.
type UpdateHook func(ctx context.Context, evt UpdateEvent)

func NewEngine(logger *slog.Logger, st store.Store, dir users.Directory, reg *target.Registry, notifier notifs.Notifier, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = &notifs.NullNotifier{}
	}
	return &Engine{
		Logger:   logger,
		Store:    st,
		Users:    dir,
		Targets:  reg,
		Notifier: notifier,
		Config:   cfg,
	}
}

func (e *Engine) OnCreate(hook CreateHook) {
	e.onCreate = append(e.onCreate, hook)
}

func (e *Engine) OnUpdate(hook UpdateHook) {
	e.onUpdate = append(e.onUpdate, hook)
}

// Create files a new flag and returns it hydrated. Fails with
// ErrAlreadyFlagged if this reporter already flagged this target, and
// ErrInvalidTarget if the target does not exist.
func (e *Engine) Create(ctx context.Context, kind target.Kind, targetID, reporterUID, reason string) (*Flag, error) {
	return e.create(ctx, kind, targetID, reporterUID, reason, time.Now().UnixMilli(), true)
}

// CreateAt files a flag with an explicit timestamp and no initial history
// entry; intended for imports, where the source record carries its own
// history.
func (e *Engine) CreateAt(ctx context.Context, kind target.Kind, targetID, reporterUID, reason string, datetime int64) (*Flag, error) {
	return e.create(ctx, kind, targetID, reporterUID, reason, datetime, false)
}

func (e *Engine) create(ctx context.Context, kind target.Kind, targetID, reporterUID, reason string, datetime int64, seedHistory bool) (*Flag, error) {
	res, err := e.Targets.Resolver(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported target type %q", ErrInvalidTarget, kind)
	}

	var (
		flagged      bool
		targetExists bool
		ownerUID     string
		categoryID   string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		flagged, err = e.Exists(gctx, kind, targetID, reporterUID)
		return err
	})
	g.Go(func() error {
		var err error
		targetExists, err = res.Exists(gctx, targetID)
		return err
	})
	g.Go(func() error {
		var err error
		ownerUID, err = res.OwnerUID(gctx, targetID)
		return err
	})
	g.Go(func() error {
		var err error
		categoryID, err = res.Category(gctx, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validating flag target: %w", err)
	}

	if flagged {
		return nil, ErrAlreadyFlagged
	}
	if !targetExists {
		return nil, ErrInvalidTarget
	}

	flagID, err := e.Store.IncrField(ctx, keyCounters, fieldNextFlagID)
	if err != nil {
		return nil, fmt.Errorf("allocating flag id: %w", err)
	}

	// the conditional insert is the authoritative dedup check; losing a
	// race between the pre-check above and here still fails cleanly
	inserted, err := e.Store.SortedSetAddNX(ctx, keyDedup, float64(flagID), dedupKey(kind, targetID, reporterUID))
	if err != nil {
		return nil, fmt.Errorf("writing dedup entry: %w", err)
	}
	if !inserted {
		return nil, ErrAlreadyFlagged
	}

	record := map[string]string{
		"flagId":      strconv.FormatInt(flagID, 10),
		"type":        string(kind),
		"targetId":    targetID,
		"uid":         reporterUID,
		"description": reason,
		"datetime":    strconv.FormatInt(datetime, 10),
		"state":       string(StateOpen),
		"assignee":    "",
	}
	if err := e.Store.SetObject(ctx, flagKey(flagID), record); err != nil {
		return nil, fmt.Errorf("writing flag record: %w", err)
	}

	score := float64(datetime)
	member := strconv.FormatInt(flagID, 10)
	indexes := []string{
		keyDatetime,
		prefixByReporter + reporterUID,
		prefixByType + string(kind),
		prefixByState + string(StateOpen),
	}
	if ownerUID != "" {
		indexes = append(indexes, prefixByTargetUID+ownerUID)
	}
	if categoryID != "" {
		indexes = append(indexes, prefixByCid+categoryID)
	}
	if kind == target.KindPost {
		indexes = append(indexes, prefixByPid+targetID)
	}
	for _, key := range indexes {
		if err := e.Store.SortedSetAdd(ctx, key, score, member); err != nil {
			return nil, fmt.Errorf("writing index %s: %w", key, err)
		}
	}
	if kind == target.KindPost && ownerUID != "" {
		if _, err := e.Store.SortedSetIncrBy(ctx, keyOwnerTally, 1, ownerUID); err != nil {
			return nil, fmt.Errorf("incrementing owner tally: %w", err)
		}
	}

	flagsCreatedCount.WithLabelValues(string(kind)).Inc()

	if seedHistory {
		err := e.AppendHistory(ctx, flagID, reporterUID, map[string]any{"state": string(StateOpen)}, datetime)
		if err != nil {
			return nil, err
		}
	}

	flag, err := e.Get(ctx, flagID)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("flag created", "flagId", flagID, "type", kind, "targetId", targetID, "reporter", reporterUID)

	for _, hook := range e.onCreate {
		hook(ctx, flag)
	}
	return flag, nil
}

// Exists reports whether the reporter already has a flag against this
// target.
func (e *Engine) Exists(ctx context.Context, kind target.Kind, targetID, reporterUID string) (bool, error) {
	return e.Store.IsSortedSetMember(ctx, keyDedup, dedupKey(kind, targetID, reporterUID))
}

// Get returns the fully hydrated flag, or (nil, nil) when no such flag
// exists.
func (e *Engine) Get(ctx context.Context, flagID int64) (*Flag, error) {
	var (
		record  map[string]string
		history []HistoryEntry
		notes   []NoteEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = e.Store.GetObject(gctx, flagKey(flagID))
		return err
	})
	g.Go(func() error {
		var err error
		history, err = e.GetHistory(gctx, flagID)
		return err
	})
	g.Go(func() error {
		var err error
		notes, err = e.GetNotes(gctx, flagID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	flag := flagFromRecord(record)
	flag.History = history
	flag.Notes = notes

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		reporter, err := e.Users.GetUserFields(gctx, flag.UID, []string{"uid", "username", "userslug", "picture", "reputation"})
		if err != nil {
			return err
		}
		flag.Reporter = reporter
		return nil
	})
	g.Go(func() error {
		payload, err := e.GetTarget(gctx, flag.Type, flag.TargetID, flag.UID)
		if err != nil {
			return err
		}
		flag.Target = payload
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return flag, nil
}

// GetTarget renders the flagged entity for a viewer. A target which no
// longer exists renders as an empty payload, not an error. Unknown kinds
// fail with ErrInvalidData.
func (e *Engine) GetTarget(ctx context.Context, kind target.Kind, targetID, viewerUID string) (*target.Payload, error) {
	res, err := e.Targets.Resolver(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown target type %q", ErrInvalidData, kind)
	}
	exists, err := res.Exists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		// target used to exist (otherwise flag creation would have
		// failed), but no longer
		return &target.Payload{Kind: kind, ID: targetID}, nil
	}
	return res.Render(ctx, targetID, viewerUID)
}

// TargetExists reports whether the target is present in the content
// subsystem. Unknown kinds fail with ErrInvalidData.
func (e *Engine) TargetExists(ctx context.Context, kind target.Kind, targetID string) (bool, error) {
	res, err := e.Targets.Resolver(kind)
	if err != nil {
		return false, fmt.Errorf("%w: unknown target type %q", ErrInvalidData, kind)
	}
	return res.Exists(ctx, targetID)
}

// GetTargetUID returns the uid owning the target; for kinds without a
// distinct owner concept this is the target id itself.
func (e *Engine) GetTargetUID(ctx context.Context, kind target.Kind, targetID string) (string, error) {
	res, err := e.Targets.Resolver(kind)
	if err != nil {
		return "", fmt.Errorf("%w: unknown target type %q", ErrInvalidData, kind)
	}
	return res.OwnerUID(ctx, targetID)
}

// GetTargetCid returns the category containing the target; for kinds
// without categories this is the target id itself.
func (e *Engine) GetTargetCid(ctx context.Context, kind target.Kind, targetID string) (string, error) {
	res, err := e.Targets.Resolver(kind)
	if err != nil {
		return "", fmt.Errorf("%w: unknown target type %q", ErrInvalidData, kind)
	}
	return res.Category(ctx, targetID)
}

// CountByTargetOwner returns how many post flags have been filed against
// content owned by the given uid.
func (e *Engine) CountByTargetOwner(ctx context.Context, ownerUID string) (int64, error) {
	score, ok, err := e.Store.SortedSetScore(ctx, keyOwnerTally, ownerUID)
	if err != nil || !ok {
		return 0, err
	}
	return int64(score), nil
}

func flagFromRecord(record map[string]string) *Flag {
	id, _ := strconv.ParseInt(record["flagId"], 10, 64)
	datetime, _ := strconv.ParseInt(record["datetime"], 10, 64)
	kind := target.Kind(record["type"])
	state := State(record["state"])
	return &Flag{
		ID:          id,
		Type:        kind,
		TargetID:    record["targetId"],
		UID:         record["uid"],
		Description: record["description"],
		Datetime:    datetime,
		State:       state,
		Assignee:    record["assignee"],

		DatetimeISO:    millisToISO(datetime),
		TargetReadable: target.Readable(kind, record["targetId"]),
		LabelClass:     state.LabelClass(),
	}
}

// millisToISO renders an epoch-milliseconds timestamp the way JavaScript's
// Date.toISOString does.
func millisToISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}
