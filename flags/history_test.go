package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/willowbb/willow/target"
)

func TestAppendNoteAndSentinel(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	err = eng.AppendNote(ctx, flag.ID, "2", "talked to the author", 0)
	assert.NoError(err)

	notes, err := eng.GetNotes(ctx, flag.ID)
	assert.NoError(err)
	assert.Len(notes, 1)
	assert.Equal("2", notes[0].UID)
	assert.Equal("talked to the author", notes[0].Content)
	assert.Equal("gmod", notes[0].User.Username)

	history, err := eng.GetHistory(ctx, flag.ID)
	assert.NoError(err)
	assert.Len(history, 2)
	// the sentinel entry carries no note content, only the marker
	assert.Contains(history[0].Fields, "notes")
	assert.Nil(history[0].Fields["notes"])
	assert.Equal(notes[0].Datetime, history[0].Datetime)
	assert.Equal(notes[0].DatetimeISO, history[0].DatetimeISO)
}

func TestAppendNoteMissingFlag(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()

	err := eng.AppendNote(ctx, 99, "2", "orphan note", 0)
	assert.ErrorIs(err, ErrNotFound)

	// no phantom ledger entries
	notes, err := eng.GetNotes(ctx, 99)
	assert.NoError(err)
	assert.Empty(notes)
	history, err := eng.GetHistory(ctx, 99)
	assert.NoError(err)
	assert.Empty(history)
}

func TestHistoryOrderAndActors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	assert.NoError(eng.AppendHistory(ctx, flag.ID, "2", map[string]any{"state": "wip"}, 1000))
	assert.NoError(eng.AppendHistory(ctx, flag.ID, "1", map[string]any{"state": "resolved"}, 2000))

	history, err := eng.GetHistory(ctx, flag.ID)
	assert.NoError(err)
	assert.Len(history, 3)
	// reverse chronological: the seeded create entry uses now, so it sorts first
	assert.Equal("7", history[0].UID)
	assert.Equal(int64(2000), history[1].Datetime)
	assert.Equal("Resolved", history[1].Fields["state"])
	assert.Equal("admin", history[1].User.Username)
	assert.Equal(int64(1000), history[2].Datetime)
	assert.Equal("In Progress", history[2].Fields["state"])
	assert.Equal("gmod", history[2].User.Username)
	assert.Equal("1970-01-01T00:00:01.000Z", history[2].DatetimeISO)
}

func TestHistorySameChangesetDistinctEntries(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	// identical actor and changeset at different times must both survive
	assert.NoError(eng.AppendHistory(ctx, flag.ID, "2", map[string]any{"state": "wip"}, 1000))
	assert.NoError(eng.AppendHistory(ctx, flag.ID, "2", map[string]any{"state": "wip"}, 2000))

	history, err := eng.GetHistory(ctx, flag.ID)
	assert.NoError(err)
	assert.Len(history, 3)
}

func TestHistoryStateLabelResolvedAtRead(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	assert.NoError(eng.AppendHistory(ctx, flag.ID, "2", map[string]any{"state": "wip"}, 1000))

	// labels configured after the write still apply: history stores raw
	// state values, not labels
	eng.Config.StateLabels = map[State]string{StateWip: "Being handled"}

	history, err := eng.GetHistory(ctx, flag.ID)
	assert.NoError(err)
	assert.Equal("Being handled", history[len(history)-1].Fields["state"])
}
