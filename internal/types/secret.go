package types

import "time"

// Secret is a key→string mapping referenced by name inside task env and
// resolved at dispatch time (spec.md §3 "Secret", §4.6).
type Secret struct {
	Key       string    `gorm:"column:key;primaryKey" json:"key"`
	Value     string    `gorm:"column:value;not null" json:"-"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Secret) TableName() string { return "secrets" }
