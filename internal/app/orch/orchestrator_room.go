package orch

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

// Join puts the connection into roomID, leaving a different prior room
// first. Joining the room it is already in updates name and language.
func (o *Orchestrator) Join(sid core.SessionID, rawRoomID, displayName, language string) (RoomSnapshot, error) {
	id, err := domain.ParseRoomID(rawRoomID)
	if err != nil {
		return RoomSnapshot{}, fmt.Errorf("%w: %q", err, rawRoomID)
	}
	name, err := domain.DisplayNameOrDefault(displayName)
	if err != nil {
		return RoomSnapshot{}, err
	}
	lang, err := domain.ParseLanguage(language)
	if err != nil {
		return RoomSnapshot{}, fmt.Errorf("%w: %q", err, language)
	}
	current, ok := o.Registry.GetSession(sid)
	if !ok {
		return RoomSnapshot{}, ErrUnknownSession
	}

	user, err := domain.NewUser(domain.UserID(sid), name)
	if err != nil {
		return RoomSnapshot{}, err
	}
	meta := domain.NewMember(user, lang)
	if prevID, prev, inRoom := o.Registry.RoomOf(sid); inRoom {
		if prevID != id {
			o.leaveRoom(sid, prevID)
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(prevID)).Msg("left previous room")
		} else {
			meta.JoinedAt = prev.Meta().JoinedAt
		}
	}

	ms := core.NewMemberSession(meta).UpdateSignal(current.Signal())
	room, res := o.Rooms.Join(id, sid, ms)
	o.Registry.UpdateRoom(sid, id, ms)
	o.handleDropped(room, res.Dropped)

	o.reply(sid, core.NewRoomJoined(id, res.You, res.Members))
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(id)).
		Str("language", string(lang)).Bool("rejoin", res.Rejoined).Msg("joined room")

	return RoomSnapshot{
		RoomID:    id,
		UserCount: len(res.Members),
		CreatedAt: room.Room().CreatedAt.UnixMilli(),
		Members:   res.Members,
	}, nil
}

// Leave drops the connection's membership. It reports false when there was
// nothing to leave.
func (o *Orchestrator) Leave(sid core.SessionID) bool {
	id, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	o.leaveRoom(sid, id)
	o.Registry.RemoveRoom(sid)
	return true
}

func (o *Orchestrator) leaveRoom(sid core.SessionID, id domain.RoomID) {
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return
	}
	res, ok := o.Rooms.Leave(id, sid)
	if !ok {
		return
	}
	o.handleDropped(room, res.Dropped)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(id)).Int("remaining", res.Remaining).Msg("left room")
}

// ChangeLanguage switches the member's language in place. Without a room it
// does nothing.
func (o *Orchestrator) ChangeLanguage(sid core.SessionID, language string) error {
	lang, err := domain.ParseLanguage(language)
	if err != nil {
		return fmt.Errorf("%w: %q", err, language)
	}
	id, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return nil
	}
	res, ok := room.SetLanguage(sid, lang)
	if ok {
		o.handleDropped(room, res.Dropped)
	}
	return nil
}

func (o *Orchestrator) RoomInfo(rawRoomID string) (RoomSnapshot, error) {
	id, err := domain.ParseRoomID(rawRoomID)
	if err != nil {
		return RoomSnapshot{}, ErrRoomNotFound
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return RoomSnapshot{}, ErrRoomNotFound
	}
	members := room.MembersSnapshot()
	if len(members) == 0 {
		return RoomSnapshot{}, ErrRoomNotFound
	}
	return RoomSnapshot{
		RoomID:    id,
		UserCount: len(members),
		CreatedAt: room.Room().CreatedAt.UnixMilli(),
		Members:   members,
	}, nil
}

func (o *Orchestrator) WhoAmI(sid core.SessionID) *core.WhoAmI {
	resp := &core.WhoAmI{Type: core.TypeWhoAmI, ID: domain.UserID(sid)}
	id, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return resp
	}
	if room, ok := o.Rooms.GetRoom(id); ok {
		if m, ok := room.Member(sid); ok {
			resp.RoomID = id
			resp.DisplayName = m.DTO.DisplayName
			resp.Language = m.DTO.Language
		}
	}
	return resp
}
