package models

import "time"

type User struct {
	UserBucket      int        `db:"user_bucket" json:"-"`
	UserID          string     `db:"user_id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Username        string     `db:"username" json:"username"`
	Phone           string     `db:"-" json:"-"` // empty when the stored ciphertext could not be opened
	PhoneEncrypted  string     `db:"phone_encrypted" json:"-"`
	PhoneHash       string     `db:"phone_hash" json:"-"`
	PhoneVerifiedAt *time.Time `db:"phone_verified_at" json:"phone_verified_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

func (u *User) HasVerifiedPhone() bool {
	return u.PhoneVerifiedAt != nil
}

// Contactable reports whether a plaintext phone is available for SMS.
func (u *User) Contactable() bool {
	return u.Phone != ""
}
