package models

import "time"

// QuestEvent = one committed transition of a user's quest (audit trail)
type QuestEvent struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string      `gorm:"index;not null" json:"userId"`
	QuestID     string      `gorm:"not null" json:"questId"`
	From        QuestStatus `gorm:"type:varchar(16);not null" json:"from"`
	To          QuestStatus `gorm:"type:varchar(16);not null" json:"to"`
	PointsDelta int64       `gorm:"not null;default:0" json:"pointsDelta"`
	CreatedAt   time.Time   `gorm:"index" json:"createdAt"`
}
