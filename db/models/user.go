package models

import (
	"gorm.io/gorm"
)

func init() {
	registerModel(&User{})
}

// User is the identity a session cookie resolves to. Accounts are provisioned
// outside of notebook, only the lookup lives here.
type User struct {
	gorm.Model
	Email        string `gorm:"unique"`
	SessionToken string `gorm:"uniqueIndex;size:128"`
	Files        []File `gorm:"foreignKey:OwnerID"`
}
