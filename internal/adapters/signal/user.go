package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/core"
)

func (ctl *SignalWSController) handleChangeLanguage(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	p, ok := decodePayload[core.ChangeLanguage](ctl, sid, conn, data)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("language", p.Language).Msg("change language")
	ctl.Orch.Dispatch(ctx, sid, p)
}

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	ctl.send(sid, conn, ctl.Orch.WhoAmI(sid))
}
