package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const RoomCodeLen = 6

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrInvalidRoomID = errors.New("invalid room id")

var roomIDPattern = regexp.MustCompile(`^[A-Z0-9_-]{1,32}$`)

// RoomID is compared case-insensitively; ParseRoomID returns the canonical
// upper-case form.
type RoomID string

type Room struct {
	ID        RoomID
	CreatedAt time.Time
}

func ParseRoomID(raw string) (RoomID, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if !roomIDPattern.MatchString(id) {
		return "", ErrInvalidRoomID
	}
	return RoomID(id), nil
}

// NewRoomCode returns a short shareable code such as "K3XQ9A".
func NewRoomCode() RoomID {
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	b := make([]byte, RoomCodeLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		b[i] = roomCodeAlphabet[n.Int64()]
	}
	return RoomID(b)
}
