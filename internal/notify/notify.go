// Package notify records admin notifications and emails admins about them.
package notify

import (
	"net/mail"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/logger"
	"github.com/s/learnhub/internal/models"
)

type Notifier struct {
	DB     *gorm.DB
	Mailer Mailer
	Log    logger.Logger
}

func NewNotifier(db *gorm.DB, mailer Mailer, log logger.Logger) *Notifier {
	return &Notifier{DB: db, Mailer: mailer, Log: log}
}

// Record adds a notification inside tx so it commits with the event it describes.
func (n *Notifier) Record(tx *gorm.DB, message, link string) error {
	return errors.Wrap(tx.Create(&models.Notification{Message: message, Link: link}).Error, "recording notification")
}

// EmailAdmins sends the message to every approved admin. Failures are logged,
// not returned: the notification row is already committed.
func (n *Notifier) EmailAdmins(subject, text string) {
	if n.Mailer == nil {
		return
	}
	var admins []models.User
	if err := n.DB.Where("role = ? AND status = ?", models.RoleAdmin, models.StatusApproved).Find(&admins).Error; err != nil {
		n.Log.Error("loading admins for email", err)
		return
	}
	to := make([]mail.Address, 0, len(admins))
	for _, a := range admins {
		to = append(to, mail.Address{Name: a.FullName, Address: a.Email})
	}
	if len(to) == 0 {
		return
	}
	if err := n.Mailer.Send(Message{To: to, Subject: subject, Text: text}); err != nil {
		n.Log.Error("emailing admins", err)
	}
}

// Unread lists unread notifications, newest first.
func (n *Notifier) Unread(limit int) ([]models.Notification, error) {
	var list []models.Notification
	q := n.DB.Where("is_read = ?", false).Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, errors.Wrap(err, "loading notifications")
}

func (n *Notifier) UnreadCount() (int64, error) {
	var c int64
	err := n.DB.Model(&models.Notification{}).Where("is_read = ?", false).Count(&c).Error
	return c, errors.Wrap(err, "counting notifications")
}

// MarkRead flags a notification as read. It reports false if it does not exist.
func (n *Notifier) MarkRead(id uint) (bool, error) {
	res := n.DB.Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "marking notification read")
	}
	return res.RowsAffected > 0, nil
}
