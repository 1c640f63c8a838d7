package domain

import "time"

// StoredRecord is one entry of the sql-backed durable key/value storage.
type StoredRecord struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StoredRecord) TableName() string { return "client_storage" }
