// Package users provides the identity surface the flags engine consumes:
// user field lookups, ban status, edit-capability checks, and role
// membership.
package users

import (
	"context"
	"errors"
)

var ErrUserNotFound = errors.New("user not found")

// Well-known moderation roles.
const (
	RoleAdministrators   = "administrators"
	RoleGlobalModerators = "global-moderators"
)

// CategoryModerators is the role holding moderators scoped to one category.
func CategoryModerators(cid string) string {
	return "cid:" + cid + ":mods"
}

// User is a directory entry. Lookups which request a subset of fields
// leave the others at their zero value.
type User struct {
	UID        string `json:"uid"`
	Username   string `json:"username"`
	Userslug   string `json:"userslug"`
	Picture    string `json:"picture"`
	Reputation int64  `json:"reputation"`
	Banned     bool   `json:"banned"`
}

// Directory resolves identity questions for the flags engine. Field-subset
// reads of unknown uids return a zero-valued User rather than an error, so
// hydration of old records never fails; GetUserData is strict.
type Directory interface {
	GetUserFields(ctx context.Context, uid string, fields []string) (*User, error)

	// GetUsersFields is the batched form; the result is aligned with uids.
	GetUsersFields(ctx context.Context, uids []string, fields []string) ([]*User, error)

	// GetUserData returns the full directory entry, or ErrUserNotFound.
	GetUserData(ctx context.Context, uid string) (*User, error)

	IsBanned(ctx context.Context, uid string) (bool, error)

	// CanEdit reports whether uid may edit the target (kind, id).
	CanEdit(ctx context.Context, kind, id, uid string) (bool, error)

	// GetMembers returns the uids holding a role.
	GetMembers(ctx context.Context, role string) ([]string, error)
}

// project copies only the requested fields out of a full entry. An empty
// fields list copies everything.
func project(u *User, fields []string) *User {
	if len(fields) == 0 {
		cp := *u
		return &cp
	}
	out := &User{}
	for _, f := range fields {
		switch f {
		case "uid":
			out.UID = u.UID
		case "username":
			out.Username = u.Username
		case "userslug":
			out.Userslug = u.Userslug
		case "picture":
			out.Picture = u.Picture
		case "reputation":
			out.Reputation = u.Reputation
		case "banned":
			out.Banned = u.Banned
		}
	}
	return out
}
