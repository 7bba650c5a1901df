package flags

import (
	"context"
	"log/slog"
	"sync"

	"github.com/willowbb/willow/flags/store"
	"github.com/willowbb/willow/notifs"
	"github.com/willowbb/willow/target"
	"github.com/willowbb/willow/users"
)

// SentNotification is one recorded push.
type SentNotification struct {
	Note       *notifs.Notification
	Recipients []string
}

// RecordingNotifier captures pushes for assertions.
type RecordingNotifier struct {
	lk   sync.Mutex
	Sent []SentNotification
}

var _ notifs.Notifier = (*RecordingNotifier)(nil)

func (rn *RecordingNotifier) Push(ctx context.Context, note *notifs.Notification, recipients []string) error {
	rn.lk.Lock()
	defer rn.lk.Unlock()
	cp := *note
	rn.Sent = append(rn.Sent, SentNotification{Note: &cp, Recipients: append([]string{}, recipients...)})
	return nil
}

// EngineTestFixture builds an engine on in-memory collaborators, seeded
// with a small forum: post 42 in category 9 owned by uid 3, a handful of
// users, and the standard moderation roles.
func EngineTestFixture() *Engine {
	posts := target.NewMemPosts()
	posts.Posts["42"] = target.MemPost{UID: "3", CID: "9", Title: "test topic", Content: "some post blah"}
	posts.Posts["43"] = target.MemPost{UID: "3", CID: "10", Title: "other topic", Content: "more blah"}

	accounts := target.NewMemUsers()
	accounts.Users["3"] = target.MemUser{Username: "carol", Userslug: "carol"}
	accounts.Users["7"] = target.MemUser{Username: "alice", Userslug: "alice"}
	accounts.Users["8"] = target.MemUser{Username: "bob", Userslug: "bob"}

	reg := target.NewRegistry()
	reg.Register(target.KindPost, posts)
	reg.Register(target.KindUser, accounts)

	dir := users.NewMemDirectory()
	dir.AddUser(&users.User{UID: "1", Username: "admin", Userslug: "admin", Reputation: 100})
	dir.AddUser(&users.User{UID: "2", Username: "gmod", Userslug: "gmod", Reputation: 100})
	dir.AddUser(&users.User{UID: "3", Username: "carol", Userslug: "carol", Reputation: 5})
	dir.AddUser(&users.User{UID: "5", Username: "catmod", Userslug: "catmod", Reputation: 50})
	dir.AddUser(&users.User{UID: "7", Username: "alice", Userslug: "alice", Reputation: 10})
	dir.AddUser(&users.User{UID: "8", Username: "bob", Userslug: "bob", Banned: true})
	dir.AddUser(&users.User{UID: "9", Username: "dana", Userslug: "dana", Reputation: 20})
	dir.AddRoleMember(users.RoleAdministrators, "1")
	dir.AddRoleMember(users.RoleGlobalModerators, "2")
	dir.AddRoleMember(users.CategoryModerators("9"), "5")

	return NewEngine(
		slog.Default(),
		store.NewMemStore(),
		dir,
		reg,
		&RecordingNotifier{},
		Config{MinReputation: 1},
	)
}
