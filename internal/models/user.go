package models

import "strings"

// User is a customer or staff account. Password holds a bcrypt hash.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Mobile   string `json:"mobile"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Type     Role   `json:"type"`
}

// Matches reports whether identifier names this user by mobile number or email.
func (u User) Matches(identifier string) bool {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false
	}
	if u.Mobile == identifier {
		return true
	}
	return u.Email != "" && strings.EqualFold(u.Email, identifier)
}
