package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/willowbb/willow/target"
)

// seedThree files three flags: 1 = post 42 by alice (open), 2 = post 43 by
// dana (moved to wip), 3 = user 8 by alice (open).
func seedThree(t *testing.T, eng *Engine) {
	t.Helper()
	ctx := context.Background()
	if _, err := eng.Create(ctx, target.KindPost, "42", "7", "spam"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Create(ctx, target.KindPost, "43", "9", "off topic"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Create(ctx, target.KindUser, "8", "7", "abusive profile"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Update(ctx, 2, "2", Changeset{"state": "wip"}); err != nil {
		t.Fatal(err)
	}
}

func listIDs(flags []*Flag) []int64 {
	out := make([]int64, len(flags))
	for i, f := range flags {
		out[i] = f.ID
	}
	return out
}

func TestListNoFilters(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	flags, err := eng.List(ctx, Filters{}, "")
	assert.NoError(err)
	assert.Equal([]int64{3, 2, 1}, listIDs(flags))

	// an unset dimension is the same as no filters at all
	flags, err = eng.List(ctx, Filters{State: FilterDim{}}, "")
	assert.NoError(err)
	assert.Equal([]int64{3, 2, 1}, listIDs(flags))
}

func TestListScalarDimension(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	flags, err := eng.List(ctx, Filters{Type: Eq("post")}, "")
	assert.NoError(err)
	assert.Equal([]int64{2, 1}, listIDs(flags))

	flags, err = eng.List(ctx, Filters{ReporterID: Eq("7")}, "")
	assert.NoError(err)
	assert.Equal([]int64{3, 1}, listIDs(flags))
}

func TestListScalarIntersection(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	flags, err := eng.List(ctx, Filters{Type: Eq("post"), State: Eq("wip")}, "")
	assert.NoError(err)
	assert.Equal([]int64{2}, listIDs(flags))

	flags, err = eng.List(ctx, Filters{Type: Eq("user"), State: Eq("wip")}, "")
	assert.NoError(err)
	assert.Empty(flags)
}

func TestListArrayUnion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	flags, err := eng.List(ctx, Filters{Type: In("user")}, "")
	assert.NoError(err)
	assert.Equal([]int64{3}, listIDs(flags))

	flags, err = eng.List(ctx, Filters{Type: In("post", "user")}, "")
	assert.NoError(err)
	assert.ElementsMatch([]int64{1, 2, 3}, listIDs(flags))
}

func TestListArraysShareOneOrBucket(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	// two array-valued dimensions union together rather than intersecting:
	// type ["user"] plus state ["wip"] yields the user flag and the wip
	// flag, even though no single flag matches both
	flags, err := eng.List(ctx, Filters{Type: In("user"), State: In("wip")}, "")
	assert.NoError(err)
	assert.ElementsMatch([]int64{2, 3}, listIDs(flags))
}

func TestListArrayNarrowsScalar(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	flags, err := eng.List(ctx, Filters{Type: Eq("post"), State: In("wip")}, "")
	assert.NoError(err)
	assert.Equal([]int64{2}, listIDs(flags))

	flags, err = eng.List(ctx, Filters{Type: Eq("user"), State: In("wip")}, "")
	assert.NoError(err)
	assert.Empty(flags)
}

func TestListQuickMine(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)
	assert.NoError(eng.Update(ctx, 1, "2", Changeset{"assignee": "9"}))

	flags, err := eng.List(ctx, Filters{Quick: "mine"}, "9")
	assert.NoError(err)
	assert.Equal([]int64{1}, listIDs(flags))

	flags, err = eng.List(ctx, Filters{Quick: "mine"}, "5")
	assert.NoError(err)
	assert.Empty(flags)
}

func TestListByCategory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	flags, err := eng.List(ctx, Filters{CID: Eq("9")}, "")
	assert.NoError(err)
	assert.Equal([]int64{1}, listIDs(flags))

	flags, err = eng.List(ctx, Filters{CID: In("9", "10")}, "")
	assert.NoError(err)
	assert.ElementsMatch([]int64{1, 2}, listIDs(flags))
}

func TestListHydration(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	seedThree(t, eng)

	flags, err := eng.List(ctx, Filters{Type: Eq("post")}, "")
	assert.NoError(err)
	assert.Len(flags, 2)
	assert.Equal("dana", flags[0].Reporter.Username)
	assert.Equal("alice", flags[1].Reporter.Username)
	// list rows carry a trimmed reporter projection
	assert.Equal("", flags[1].Reporter.Userslug)
	assert.Equal("Post 42", flags[1].TargetReadable)
	assert.Nil(flags[1].History)
	assert.Nil(flags[1].Target)
}
