package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/app/orch"
	"github.com/dkeye/Babel/internal/config"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

// ClientTokenKey is the gin context key holding the cookie client token.
const ClientTokenKey = "client_token"

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *SpeechRateLimiter
	cfg     config.WSConfig
}

func NewSignalWSController(o *orch.Orchestrator, ws config.WSConfig, rate config.RateConfig) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		Limiter: NewSpeechRateLimiter(rate.Limit, rate.Interval),
		cfg:     ws,
	}
}

// WsSignalConn queues outbound messages for the write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Message

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(m core.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- m:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	clientToken := c.GetString(ClientTokenKey)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", clientToken).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Message, ctl.cfg.SendBuffer),
	}

	user, err := domain.NewUser(domain.UserID(sid), domain.DefaultDisplayName)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("new user")
		conn.Close()
		return
	}
	sess := core.NewMemberSession(domain.NewMember(user, "")).UpdateSignal(conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

func (ctl *SignalWSController) send(sid core.SessionID, c *WsSignalConn, m core.Message) {
	if err := c.TrySend(m); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", m.MessageType()).Msg("send dropped")
	}
}
