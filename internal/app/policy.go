package app

import "github.com/dkeye/Babel/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropMessage
)

// Policy decides what happens to a member whose outbound queue is full.
type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
}

// SimplePolicy drops messages for slow members and keeps them in the room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.MemberSession) BackpressureAction {
	return DropMessage
}

// StrictPolicy disconnects members that cannot keep up.
type StrictPolicy struct{}

func (StrictPolicy) OnBackPressure(core.RoomService, core.MemberSession) BackpressureAction {
	return KickMember
}

// PolicyByName maps a config value to a Policy.
func PolicyByName(name string) Policy {
	switch name {
	case "kick", "strict":
		return StrictPolicy{}
	default:
		return SimplePolicy{}
	}
}
