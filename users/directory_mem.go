package users

import (
	"context"
)

// MemDirectory is an in-memory Directory for tests and local development.
type MemDirectory struct {
	Users map[string]*User
	// Roles maps role name to member uids.
	Roles map[string][]string
	// Editable grants explicit edit rights, keyed by kind:id:uid.
	Editable map[string]bool
}

var _ Directory = (*MemDirectory)(nil)

func NewMemDirectory() *MemDirectory {
	return &MemDirectory{
		Users:    make(map[string]*User),
		Roles:    make(map[string][]string),
		Editable: make(map[string]bool),
	}
}

func (d *MemDirectory) AddUser(u *User) {
	d.Users[u.UID] = u
}

func (d *MemDirectory) AddRoleMember(role, uid string) {
	d.Roles[role] = append(d.Roles[role], uid)
}

func (d *MemDirectory) GrantEdit(kind, id, uid string) {
	d.Editable[kind+":"+id+":"+uid] = true
}

func (d *MemDirectory) GetUserFields(ctx context.Context, uid string, fields []string) (*User, error) {
	u, ok := d.Users[uid]
	if !ok {
		return &User{UID: uid}, nil
	}
	return project(u, fields), nil
}

func (d *MemDirectory) GetUsersFields(ctx context.Context, uids []string, fields []string) ([]*User, error) {
	out := make([]*User, len(uids))
	for i, uid := range uids {
		u, err := d.GetUserFields(ctx, uid, fields)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func (d *MemDirectory) GetUserData(ctx context.Context, uid string) (*User, error) {
	u, ok := d.Users[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *MemDirectory) IsBanned(ctx context.Context, uid string) (bool, error) {
	u, ok := d.Users[uid]
	if !ok {
		return false, ErrUserNotFound
	}
	return u.Banned, nil
}

func (d *MemDirectory) CanEdit(ctx context.Context, kind, id, uid string) (bool, error) {
	return d.Editable[kind+":"+id+":"+uid], nil
}

func (d *MemDirectory) GetMembers(ctx context.Context, role string) ([]string, error) {
	return append([]string{}, d.Roles[role]...), nil
}
