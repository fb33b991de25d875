package core

import (
	"errors"

	"github.com/dkeye/Babel/internal/domain"
)

// ErrRoomClosed is returned by Join on a room whose last member already left.
// The caller should fetch a fresh room from the RoomManager.
var ErrRoomClosed = errors.New("room closed")

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID          domain.UserID   `json:"id"`
	DisplayName string          `json:"displayName"`
	Language    domain.Language `json:"language"`
}

// MemberView is a copy of one member taken under the room lock.
type MemberView struct {
	SID      SessionID
	DTO      MemberDTO
	JoinedAt int64
	Session  MemberSession
}

// JoinResult describes what Join did.
type JoinResult struct {
	PublishResult
	Members  []MemberDTO
	You      MemberDTO
	Rejoined bool
}

// LeaveResult describes what Leave did.
type LeaveResult struct {
	PublishResult
	Member    MemberDTO
	Remaining int
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
// Membership notifications are queued while the room lock is held, so they
// reach members in the order the room accepted the operations.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Members() []MemberView
	Member(sid SessionID) (MemberView, bool)

	Join(sid SessionID, ms MemberSession) (JoinResult, error)
	Leave(sid SessionID) (LeaveResult, bool)
	SetLanguage(sid SessionID, lang domain.Language) (PublishResult, bool)
	Closed() bool
}

type RoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"userCount"`
	CreatedAt   int64         `json:"createdAt"`
}

// RoomManager is the room registry: a room exists iff it has members.
type RoomManager interface {
	Join(id domain.RoomID, sid SessionID, ms MemberSession) (RoomService, JoinResult)
	Leave(id domain.RoomID, sid SessionID) (LeaveResult, bool)
	GetRoom(id domain.RoomID) (RoomService, bool)
	NewCode() domain.RoomID
	List() []RoomInfo
	Count() int
}
