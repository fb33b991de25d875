package signal

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Babel/internal/core"
)

// handleSpeech relays off the read pump so a slow provider never stalls
// the connection's other messages.
func (ctl *SignalWSController) handleSpeech(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
	speech *conc.WaitGroup,
) {
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("speech rate limited")
		ctl.send(sid, conn, core.NewError("rate limited"))
		return
	}
	p, ok := decodePayload[core.LiveSpeech](ctl, sid, conn, data)
	if !ok {
		return
	}
	speech.Go(func() {
		ctl.Orch.Dispatch(ctx, sid, p)
	})
}
