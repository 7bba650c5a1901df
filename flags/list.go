package flags

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/willowbb/willow/flags/store"
)

// FilterDim is one query dimension. A scalar Value lands in the AND
// bucket; a Values array lands in the OR bucket. An empty dimension is
// ignored.
type FilterDim struct {
	Value  string
	Values []string
}

func Eq(value string) FilterDim {
	return FilterDim{Value: value}
}

func In(values ...string) FilterDim {
	return FilterDim{Values: values}
}

// Filters selects flags by the recognized dimensions. Quick "mine" is
// shorthand for assignee = the calling uid.
type Filters struct {
	Type       FilterDim
	State      FilterDim
	ReporterID FilterDim
	Assignee   FilterDim
	TargetUID  FilterDim
	CID        FilterDim
	Quick      string
}

// List runs a filter query over the secondary indexes and hydrates the
// results with a minimal reporter projection. Scalar dimensions are
// intersected; array dimensions are unioned together into one OR bucket
// which then narrows the AND result. Result order is whatever the
// underlying primitives yield.
func (e *Engine) List(ctx context.Context, filters Filters, callerUID string) ([]*Flag, error) {
	defer func(start time.Time) {
		flagListDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	var sets []string
	var orSets []string
	prepare := func(prefix string, dim FilterDim) {
		if dim.Values != nil {
			for _, v := range dim.Values {
				orSets = append(orSets, prefix+v)
			}
		} else if dim.Value != "" {
			sets = append(sets, prefix+dim.Value)
		}
	}
	prepare(prefixByType, filters.Type)
	prepare(prefixByState, filters.State)
	prepare(prefixByReporter, filters.ReporterID)
	prepare(prefixByAssignee, filters.Assignee)
	prepare(prefixByTargetUID, filters.TargetUID)
	prepare(prefixByCid, filters.CID)
	if filters.Quick == "mine" {
		sets = append(sets, prefixByAssignee+callerUID)
	}

	if len(sets) == 0 && len(orSets) == 0 {
		// no filter default
		sets = []string{keyDatetime}
	}

	var flagIDs []string
	var err error
	switch {
	case len(sets) == 1:
		flagIDs, err = e.Store.SortedSetRevRange(ctx, sets[0], 0, -1)
	case len(sets) > 1:
		flagIDs, err = e.Store.SortedSetRevIntersect(ctx, sets, 0, -1, store.AggregateMax)
	}
	if err != nil {
		return nil, fmt.Errorf("querying flag indexes: %w", err)
	}

	if len(orSets) > 0 {
		orIDs, err := e.Store.SortedSetRevUnion(ctx, orSets, 0, -1, store.AggregateMax)
		if err != nil {
			return nil, fmt.Errorf("querying flag indexes: %w", err)
		}
		if len(sets) > 0 {
			// AND semantics dominate: array-valued filters narrow the
			// AND-filtered set
			flagIDs = intersectOrdered(flagIDs, orIDs)
		} else {
			flagIDs = orIDs
		}
	}

	return e.hydrateList(ctx, flagIDs)
}

func (e *Engine) hydrateList(ctx context.Context, flagIDs []string) ([]*Flag, error) {
	hydrated := make([]*Flag, len(flagIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, rawID := range flagIDs {
		i, rawID := i, rawID
		g.Go(func() error {
			record, err := e.Store.GetObject(gctx, "flag:"+rawID)
			if err != nil {
				return err
			}
			if record == nil {
				e.Logger.Debug("index entry for missing flag record", "flagId", rawID)
				return nil
			}
			flag := flagFromRecord(record)
			reporter, err := e.Users.GetUserFields(gctx, flag.UID, []string{"uid", "username", "picture"})
			if err != nil {
				return err
			}
			flag.Reporter = reporter
			hydrated[i] = flag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Flag, 0, len(hydrated))
	for _, flag := range hydrated {
		if flag != nil {
			out = append(out, flag)
		}
	}
	return out, nil
}

// intersectOrdered keeps the members of a which are also in b, preserving
// a's order.
func intersectOrdered(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	out := make([]string, 0, len(a))
	for _, id := range a {
		if inB[id] {
			out = append(out, id)
		}
	}
	return out
}
