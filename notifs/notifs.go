// Package notifs hands flag notifications to the delivery transport. The
// Queue implementation persists them with merge-by-key collapsing: pushing
// two notifications with the same NID updates one row instead of creating
// a second, so repeated flags on one target become a single thread.
package notifs

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notification is one message to a set of recipients. NID is the merge
// key: pushes sharing an NID collapse into one notification.
type Notification struct {
	Type       string `json:"type"`
	BodyShort  string `json:"bodyShort"`
	BodyLong   string `json:"bodyLong"`
	Path       string `json:"path"`
	NID        string `json:"nid"`
	From       string `json:"from"`
	TopicTitle string `json:"topicTitle,omitempty"`
}

type Notifier interface {
	Push(ctx context.Context, note *Notification, recipients []string) error
}

type NotifRecord struct {
	ID         uint   `gorm:"primarykey"`
	NID        string `gorm:"uniqueIndex;column:nid"`
	Type       string
	BodyShort  string
	BodyLong   string
	Path       string
	From       string `gorm:"column:from_uid"`
	TopicTitle string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NotifRecipient struct {
	ID      uint   `gorm:"primarykey"`
	NotifID uint   `gorm:"uniqueIndex:idx_notif_recipient"`
	UID     string `gorm:"uniqueIndex:idx_notif_recipient;column:uid"`
}

// Queue is a database-backed Notifier.
type Queue struct {
	db *gorm.DB
}

var _ Notifier = (*Queue)(nil)

func NewQueue(db *gorm.DB) (*Queue, error) {
	if err := db.AutoMigrate(&NotifRecord{}, &NotifRecipient{}); err != nil {
		return nil, err
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Push(ctx context.Context, note *Notification, recipients []string) error {
	rec := NotifRecord{
		NID:        note.NID,
		Type:       note.Type,
		BodyShort:  note.BodyShort,
		BodyLong:   note.BodyLong,
		Path:       note.Path,
		From:       note.From,
		TopicTitle: note.TopicTitle,
	}
	err := q.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "nid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "body_short", "body_long", "path", "from_uid", "topic_title", "updated_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return err
	}

	if rec.ID == 0 {
		// conflict path on some drivers does not backfill the id
		if err := q.db.WithContext(ctx).First(&rec, "nid = ?", note.NID).Error; err != nil {
			return err
		}
	}

	for _, uid := range recipients {
		rcpt := NotifRecipient{NotifID: rec.ID, UID: uid}
		err := q.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rcpt).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the notification stored under a merge key with its
// recipient uids, for transport workers draining the queue.
func (q *Queue) Pending(ctx context.Context, nid string) (*Notification, []string, error) {
	var rec NotifRecord
	if err := q.db.WithContext(ctx).First(&rec, "nid = ?", nid).Error; err != nil {
		return nil, nil, err
	}
	var uids []string
	err := q.db.WithContext(ctx).Model(&NotifRecipient{}).
		Where("notif_id = ?", rec.ID).Order("uid").Pluck("uid", &uids).Error
	if err != nil {
		return nil, nil, err
	}
	return &Notification{
		Type:       rec.Type,
		BodyShort:  rec.BodyShort,
		BodyLong:   rec.BodyLong,
		Path:       rec.Path,
		NID:        rec.NID,
		From:       rec.From,
		TopicTitle: rec.TopicTitle,
	}, uids, nil
}
