package models

import "time"

// KVRecord backs the key-value store on Postgres. Value holds the JSON blob.
type KVRecord struct {
	Key       string    `gorm:"primaryKey;type:varchar(255)" json:"key"`
	Value     string    `gorm:"type:jsonb;not null" json:"value"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (KVRecord) TableName() string { return "kv_records" }
