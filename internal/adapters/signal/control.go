package signal

import "github.com/dkeye/Babel/internal/core"

func (ctl *SignalWSController) handlePing(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	ctl.send(sid, conn, core.NewPong())
}
