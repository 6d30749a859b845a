package model

import "time"

type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Mobile    string    `gorm:"size:32;not null;uniqueIndex" json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }
