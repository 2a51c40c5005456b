package models

import "time"

type Referrer struct {
	ID    uint   `gorm:"primaryKey"`
	Code  string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Title string `gorm:"type:varchar(255)"`
}

func (Referrer) TableName() string {
	return "referrers"
}

type User struct {
	ID         uint   `gorm:"primaryKey"`
	TgID       int64  `gorm:"uniqueIndex;not null"`
	Username   string `gorm:"type:varchar(255)"`
	ReferrerID *uint  `gorm:"index"`
	CreatedAt  time.Time
}

func (User) TableName() string {
	return "users"
}
