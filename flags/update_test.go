package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/willowbb/willow/target"
)

func TestUpdateStateMovesIndex(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	err = eng.Update(ctx, flag.ID, "2", Changeset{"state": "wip"})
	assert.NoError(err)

	ok, err := eng.Store.IsSortedSetMember(ctx, "flags:byState:open", "1")
	assert.NoError(err)
	assert.False(ok)
	ok, err = eng.Store.IsSortedSetMember(ctx, "flags:byState:wip", "1")
	assert.NoError(err)
	assert.True(ok)

	got, err := eng.Get(ctx, flag.ID)
	assert.NoError(err)
	assert.Equal(StateWip, got.State)
	assert.Equal("warning", got.LabelClass)

	// newest first, state resolved to its display label
	assert.Len(got.History, 2)
	assert.Equal("2", got.History[0].UID)
	assert.Equal("In Progress", got.History[0].Fields["state"])
	assert.Equal("gmod", got.History[0].User.Username)
}

func TestUpdateNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	var hookFired bool
	eng.OnUpdate(func(ctx context.Context, evt UpdateEvent) {
		hookFired = true
	})

	err = eng.Update(ctx, flag.ID, "2", Changeset{"state": "open"})
	assert.NoError(err)
	assert.False(hookFired)

	got, err := eng.Get(ctx, flag.ID)
	assert.NoError(err)
	assert.Len(got.History, 1)

	ok, err := eng.Store.IsSortedSetMember(ctx, "flags:byState:open", "1")
	assert.NoError(err)
	assert.True(ok)
}

func TestUpdateMissingFlag(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()

	err := eng.Update(ctx, 99, "2", Changeset{"state": "wip"})
	assert.ErrorIs(err, ErrNotFound)

	// no phantom record or index entry was created
	record, err := eng.Store.GetObject(ctx, "flag:99")
	assert.NoError(err)
	assert.Nil(record)
	ok, err := eng.Store.IsSortedSetMember(ctx, "flags:byState:wip", "99")
	assert.NoError(err)
	assert.False(ok)
}

func TestUpdateInvalidState(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	err = eng.Update(ctx, flag.ID, "2", Changeset{"state": "escalated"})
	assert.ErrorIs(err, ErrInvalidData)
}

func TestUpdateAssigneeNotifies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	err = eng.Update(ctx, flag.ID, "3", Changeset{"assignee": "9"})
	assert.NoError(err)

	ok, err := eng.Store.IsSortedSetMember(ctx, "flags:byAssignee:9", "1")
	assert.NoError(err)
	assert.True(ok)

	rn := eng.Notifier.(*RecordingNotifier)
	assert.Len(rn.Sent, 1)
	assert.Equal("my-flags", rn.Sent[0].Note.Type)
	assert.Equal("flag-assign|1|9", rn.Sent[0].Note.NID)
	assert.Equal("/flags/1", rn.Sent[0].Note.Path)
	assert.Equal("3", rn.Sent[0].Note.From)
	assert.Equal([]string{"9"}, rn.Sent[0].Recipients)
}

func TestUpdateReassignMovesIndex(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	assert.NoError(eng.Update(ctx, flag.ID, "3", Changeset{"assignee": "9"}))
	assert.NoError(eng.Update(ctx, flag.ID, "3", Changeset{"assignee": "5"}))

	ok, err := eng.Store.IsSortedSetMember(ctx, "flags:byAssignee:9", "1")
	assert.NoError(err)
	assert.False(ok)
	ok, err = eng.Store.IsSortedSetMember(ctx, "flags:byAssignee:5", "1")
	assert.NoError(err)
	assert.True(ok)
}

func TestUpdateUnassignSilent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	assert.NoError(eng.Update(ctx, flag.ID, "3", Changeset{"assignee": "9"}))
	assert.NoError(eng.Update(ctx, flag.ID, "3", Changeset{"assignee": ""}))

	ok, err := eng.Store.IsSortedSetMember(ctx, "flags:byAssignee:9", "1")
	assert.NoError(err)
	assert.False(ok)

	// clearing the assignee notifies nobody
	rn := eng.Notifier.(*RecordingNotifier)
	assert.Len(rn.Sent, 1)
}

func TestUpdateHookSeesPrunedChangeset(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	var got UpdateEvent
	eng.OnUpdate(func(ctx context.Context, evt UpdateEvent) {
		got = evt
	})

	// state is already open, so only the description change survives
	err = eng.Update(ctx, flag.ID, "2", Changeset{"state": "open", "description": "actually ham"})
	assert.NoError(err)
	assert.Equal(flag.ID, got.FlagID)
	assert.Equal("2", got.ActorUID)
	assert.Equal(Changeset{"description": "actually ham"}, got.Changeset)

	updated, err := eng.Get(ctx, flag.ID)
	assert.NoError(err)
	assert.Equal("actually ham", updated.Description)
}
