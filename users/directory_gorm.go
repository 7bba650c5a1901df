package users

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// UserRecord is the canonical user row, shared with the target resolvers.
type UserRecord struct {
	UID        string `gorm:"primarykey;column:uid"`
	Username   string `gorm:"index"`
	Userslug   string
	Picture    string
	Reputation int64
	Banned     bool
	Deleted    bool
}

func (UserRecord) TableName() string {
	return "users"
}

// RoleMembership is one (role, uid) grant.
type RoleMembership struct {
	ID   uint   `gorm:"primarykey"`
	Role string `gorm:"uniqueIndex:idx_role_member"`
	UID  string `gorm:"uniqueIndex:idx_role_member;column:uid"`
}

// OwnerFunc looks up the owning uid of a target; used by CanEdit for
// ownership checks without this package knowing about target resolution.
type OwnerFunc func(ctx context.Context, kind, id string) (string, error)

// GormDirectory is a Directory backed by the forum database.
type GormDirectory struct {
	db     *gorm.DB
	owners OwnerFunc
}

var _ Directory = (*GormDirectory)(nil)

func NewGormDirectory(db *gorm.DB, owners OwnerFunc) (*GormDirectory, error) {
	if err := db.AutoMigrate(&UserRecord{}, &RoleMembership{}); err != nil {
		return nil, err
	}
	return &GormDirectory{db: db, owners: owners}, nil
}

func (d *GormDirectory) GetUserFields(ctx context.Context, uid string, fields []string) (*User, error) {
	var rec UserRecord
	err := d.db.WithContext(ctx).First(&rec, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &User{UID: uid}, nil
	}
	if err != nil {
		return nil, err
	}
	return project(recordToUser(&rec), fields), nil
}

func (d *GormDirectory) GetUsersFields(ctx context.Context, uids []string, fields []string) ([]*User, error) {
	var recs []UserRecord
	if err := d.db.WithContext(ctx).Find(&recs, "uid IN ?", uids).Error; err != nil {
		return nil, err
	}
	byUID := make(map[string]*UserRecord, len(recs))
	for i := range recs {
		byUID[recs[i].UID] = &recs[i]
	}
	out := make([]*User, len(uids))
	for i, uid := range uids {
		if rec, ok := byUID[uid]; ok {
			out[i] = project(recordToUser(rec), fields)
		} else {
			out[i] = &User{UID: uid}
		}
	}
	return out, nil
}

func (d *GormDirectory) GetUserData(ctx context.Context, uid string) (*User, error) {
	var rec UserRecord
	err := d.db.WithContext(ctx).First(&rec, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return recordToUser(&rec), nil
}

func (d *GormDirectory) IsBanned(ctx context.Context, uid string) (bool, error) {
	u, err := d.GetUserData(ctx, uid)
	if err != nil {
		return false, err
	}
	return u.Banned, nil
}

// CanEdit grants edit rights to administrators, global moderators, and the
// target's owner.
func (d *GormDirectory) CanEdit(ctx context.Context, kind, id, uid string) (bool, error) {
	for _, role := range []string{RoleAdministrators, RoleGlobalModerators} {
		isMember, err := d.isMember(ctx, role, uid)
		if err != nil {
			return false, err
		}
		if isMember {
			return true, nil
		}
	}
	if d.owners == nil {
		return false, nil
	}
	owner, err := d.owners(ctx, kind, id)
	if err != nil {
		return false, err
	}
	return owner != "" && owner == uid, nil
}

func (d *GormDirectory) GetMembers(ctx context.Context, role string) ([]string, error) {
	var uids []string
	err := d.db.WithContext(ctx).Model(&RoleMembership{}).Where("role = ?", role).Pluck("uid", &uids).Error
	if err != nil {
		return nil, err
	}
	return uids, nil
}

func (d *GormDirectory) AddRoleMember(ctx context.Context, role, uid string) error {
	return d.db.WithContext(ctx).Create(&RoleMembership{Role: role, UID: uid}).Error
}

func (d *GormDirectory) isMember(ctx context.Context, role, uid string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&RoleMembership{}).
		Where("role = ? AND uid = ?", role, uid).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func recordToUser(rec *UserRecord) *User {
	return &User{
		UID:        rec.UID,
		Username:   rec.Username,
		Userslug:   rec.Userslug,
		Picture:    rec.Picture,
		Reputation: rec.Reputation,
		Banned:     rec.Banned,
	}
}
