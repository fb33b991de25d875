package app

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is the room registry. Rooms are created by the first join
// and removed by the leave that empties them.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) getOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(&domain.Room{ID: id, CreatedAt: time.Now()})
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

// Join adds sid to the room, creating it when needed. A room that closed
// between lookup and join is dropped and replaced by a fresh one.
func (f *RoomManagerImpl) Join(id domain.RoomID, sid core.SessionID, ms core.MemberSession) (core.RoomService, core.JoinResult) {
	for {
		room := f.getOrCreate(id)
		res, err := room.Join(sid, ms)
		if err == nil {
			return room, res
		}
		if !errors.Is(err, core.ErrRoomClosed) {
			// RoomService.Join has no other failure mode today.
			panic(err)
		}
		f.removeIfSame(id, room)
	}
}

func (f *RoomManagerImpl) Leave(id domain.RoomID, sid core.SessionID) (core.LeaveResult, bool) {
	room, ok := f.GetRoom(id)
	if !ok {
		return core.LeaveResult{}, false
	}
	res, ok := room.Leave(sid)
	if ok && res.Remaining == 0 {
		f.removeIfSame(id, room)
	}
	return res, ok
}

func (f *RoomManagerImpl) removeIfSame(id domain.RoomID, room core.RoomService) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rooms[id]; ok && cur == room {
		delete(f.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
	}
}

func (f *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// NewCode returns a shareable code that no live room uses.
func (f *RoomManagerImpl) NewCode() domain.RoomID {
	for {
		code := domain.NewRoomCode()
		f.mu.RLock()
		_, taken := f.rooms[code]
		f.mu.RUnlock()
		if !taken {
			return code
		}
	}
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount(), CreatedAt: r.Room().CreatedAt.UnixMilli()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *RoomManagerImpl) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}
