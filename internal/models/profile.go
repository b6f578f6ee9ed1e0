package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxFullNameLen = 120
	maxPhoneLen    = 32
)

// Profile is the customer contact record shown on the profile page and in
// the admin reservation list.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DefaultProfile is served for a signed-in user who has never saved one.
func DefaultProfile(s Session) Profile {
	role := s.Role
	if role == "" {
		role = RoleCustomer
	}
	return Profile{ID: s.UserID, Email: s.Email, Role: role}
}

// ProfileUpdate carries the fields a user may change on their own profile.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Normalize trims the fields and checks their lengths.
func (u *ProfileUpdate) Normalize() error {
	if u.FullName == nil && u.Phone == nil {
		return errors.New("nothing to update")
	}
	if u.FullName != nil {
		name := strings.TrimSpace(*u.FullName)
		if utf8.RuneCountInString(name) > maxFullNameLen {
			return errors.New("full_name is too long")
		}
		u.FullName = &name
	}
	if u.Phone != nil {
		phone := strings.TrimSpace(*u.Phone)
		if len(phone) > maxPhoneLen {
			return errors.New("phone is too long")
		}
		for _, r := range phone {
			if !strings.ContainsRune("0123456789+- ", r) {
				return errors.New("phone may only contain digits, spaces, + and -")
			}
		}
		u.Phone = &phone
	}
	return nil
}

// Apply copies the set fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
}
