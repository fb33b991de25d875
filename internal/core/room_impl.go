package core

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room   *domain.Room
	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	closed bool
}

func NewRoomService(room *domain.Room) RoomService {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	return &roomImpl{
		room:  room,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *roomImpl) Join(sid SessionID, ms MemberSession) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrRoomClosed
	}

	var res JoinResult
	prev, rejoin := r.bySID[sid]
	r.bySID[sid] = ms
	res.You = dtoOf(ms)
	res.Rejoined = rejoin

	switch {
	case !rejoin:
		res.PublishResult = r.broadcastLocked(sid, NewUserJoined(res.You))
		log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member added")
	case prev.Meta().Language != ms.Meta().Language:
		res.PublishResult = r.broadcastLocked(sid, NewUserLanguageChanged(res.You))
		log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member rejoined with new language")
	default:
		log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member rejoined")
	}
	res.Members = r.snapshotLocked()
	return res, nil
}

func (r *roomImpl) Leave(sid SessionID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return LeaveResult{}, false
	}
	delete(r.bySID, sid)

	res := LeaveResult{Member: dtoOf(ms), Remaining: len(r.bySID)}
	if res.Remaining == 0 {
		r.closed = true
	} else {
		res.PublishResult = r.broadcastLocked(sid, NewUserLeft(res.Member))
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Int("remaining", res.Remaining).Msg("member removed")
	return res, true
}

func (r *roomImpl) SetLanguage(sid SessionID, lang domain.Language) (PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return PublishResult{}, false
	}
	meta := ms.Meta()
	if meta.Language == lang {
		return PublishResult{}, true
	}
	meta.Language = lang
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Str("language", string(lang)).Msg("member language changed")
	return r.broadcastLocked(sid, NewUserLanguageChanged(dtoOf(ms))), true
}

// Members returns a copy of the member list; callers may iterate it while
// joins and leaves keep mutating the room.
func (r *roomImpl) Members() []MemberView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberView, 0, len(r.bySID))
	for sid, ms := range r.bySID {
		out = append(out, viewOf(sid, ms))
	}
	return out
}

func (r *roomImpl) Member(sid SessionID) (MemberView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return MemberView{}, false
	}
	return viewOf(sid, ms), true
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *roomImpl) snapshotLocked() []MemberDTO {
	type joined struct {
		dto MemberDTO
		at  time.Time
	}
	list := make([]joined, 0, len(r.bySID))
	for _, ms := range r.bySID {
		list = append(list, joined{dto: dtoOf(ms), at: ms.Meta().JoinedAt})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].at.Equal(list[j].at) {
			return list[i].dto.ID < list[j].dto.ID
		}
		return list[i].at.Before(list[j].at)
	})
	out := make([]MemberDTO, len(list))
	for i, j := range list {
		out[i] = j.dto
	}
	return out
}

func (r *roomImpl) broadcastLocked(from SessionID, msg Message) PublishResult {
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		sc := m.Signal()
		if sc == nil {
			continue
		}
		if err := sc.TrySend(msg); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Str("type", msg.MessageType()).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func dtoOf(ms MemberSession) MemberDTO {
	meta := ms.Meta()
	return MemberDTO{ID: meta.User.ID, DisplayName: meta.User.DisplayName, Language: meta.Language}
}

func viewOf(sid SessionID, ms MemberSession) MemberView {
	return MemberView{
		SID:      sid,
		DTO:      dtoOf(ms),
		JoinedAt: ms.Meta().JoinedAt.UnixMilli(),
		Session:  ms,
	}
}
