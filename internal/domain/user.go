// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxDisplayNameLen  = 36
	DefaultDisplayName = "Guest"
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type UserID string

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, displayName string) (*User, error) {
	name, err := ParseDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = UserID(uuid.NewString())
	}
	return &User{ID: id, DisplayName: name}, nil
}

func (u *User) SetDisplayName(displayName string) error {
	name, err := ParseDisplayName(displayName)
	if err != nil {
		return err
	}
	u.DisplayName = name
	return nil
}

func ParseDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrDisplayNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}

// DisplayNameOrDefault falls back to DefaultDisplayName for blank input.
func DisplayNameOrDefault(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultDisplayName, nil
	}
	return ParseDisplayName(raw)
}
