package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/willowbb/willow/target"
	"github.com/willowbb/willow/users"
)

func fixtureDir(t *testing.T, eng *Engine) *users.MemDirectory {
	t.Helper()
	return eng.Users.(*users.MemDirectory)
}

func TestNotifyPostFlag(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	err = eng.Notify(ctx, flag, "7")
	assert.NoError(err)

	rn := eng.Notifier.(*RecordingNotifier)
	assert.Len(rn.Sent, 1)
	sent := rn.Sent[0]
	assert.Equal("new-post-flag", sent.Note.Type)
	assert.Equal("alice flagged a post in test topic", sent.Note.BodyShort)
	assert.Equal("spam", sent.Note.BodyLong)
	assert.Equal("/post/42", sent.Note.Path)
	assert.Equal("topic-flagged|42", sent.Note.NID)
	assert.Equal("7", sent.Note.From)
	assert.Equal("test topic", sent.Note.TopicTitle)
	// admins, global moderators, and the moderators of category 9
	assert.ElementsMatch([]string{"1", "2", "5"}, sent.Recipients)
}

func TestNotifyPostFlagNoCategoryMods(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	// post 43 lives in category 10, which has no moderators
	flag, err := eng.Create(ctx, target.KindPost, "43", "7", "spam")
	assert.NoError(err)

	err = eng.Notify(ctx, flag, "7")
	assert.NoError(err)

	rn := eng.Notifier.(*RecordingNotifier)
	assert.Len(rn.Sent, 1)
	assert.ElementsMatch([]string{"1", "2"}, rn.Sent[0].Recipients)
}

func TestNotifyUserFlag(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag, err := eng.Create(ctx, target.KindUser, "8", "7", "abusive profile")
	assert.NoError(err)

	err = eng.Notify(ctx, flag, "7")
	assert.NoError(err)

	rn := eng.Notifier.(*RecordingNotifier)
	assert.Len(rn.Sent, 1)
	sent := rn.Sent[0]
	assert.Equal("new-user-flag", sent.Note.Type)
	assert.Equal("alice flagged user bob", sent.Note.BodyShort)
	assert.Equal("/uid/8", sent.Note.Path)
	assert.Equal("user-flagged|8", sent.Note.NID)
	assert.ElementsMatch([]string{"1", "2"}, sent.Recipients)
}

func TestNotifyUnknownKind(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	flag := &Flag{ID: 1, Type: target.Kind("comment"), TargetID: "1", UID: "7"}

	err := eng.Notify(ctx, flag, "7")
	assert.ErrorIs(err, ErrInvalidData)
}

func TestNotifyRecipientsDeduped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	// uid 1 moderates category 9 on top of being an admin
	fixtureDir(t, eng).AddRoleMember("cid:9:mods", "1")

	flag, err := eng.Create(ctx, target.KindPost, "42", "7", "spam")
	assert.NoError(err)

	err = eng.Notify(ctx, flag, "7")
	assert.NoError(err)

	rn := eng.Notifier.(*RecordingNotifier)
	assert.Len(rn.Sent, 1)
	assert.ElementsMatch([]string{"1", "2", "5"}, rn.Sent[0].Recipients)
}
