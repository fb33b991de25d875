package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/core"
)

func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	p, ok := decodePayload[core.JoinRoom](ctl, sid, conn, data)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.RoomID).Msg("join")
	ctl.Orch.Dispatch(ctx, sid, p)
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, sid core.SessionID) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Dispatch(ctx, sid, core.LeaveRoom{})
}
