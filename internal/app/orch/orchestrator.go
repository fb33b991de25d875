package orch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/translate"
)

var (
	ErrNotInRoom      = errors.New("not in a room")
	ErrRoomNotFound   = errors.New("room not found")
	ErrUnknownSession = errors.New("unknown session")
)

// Translator is the provider chain as seen by the relay.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Policy     app.Policy
	Cache      *translate.Cache
	Translator Translator

	inflight singleflight.Group
}

// RoomSnapshot is what a joiner renders locally and what the room info
// query returns.
type RoomSnapshot struct {
	RoomID    domain.RoomID    `json:"roomId"`
	UserCount int              `json:"userCount"`
	CreatedAt int64            `json:"createdAt"`
	Members   []core.MemberDTO `json:"members"`
}

// Dispatch routes one decoded client message. Caller mistakes are answered
// with an error message to the sender.
func (o *Orchestrator) Dispatch(ctx context.Context, sid core.SessionID, msg core.Inbound) {
	switch m := msg.(type) {
	case core.JoinRoom:
		if _, err := o.Join(sid, m.RoomID, m.DisplayName, m.Language); err != nil {
			log.Info().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("join rejected")
			o.reply(sid, core.NewError(err.Error()))
		}
	case core.LeaveRoom:
		o.Leave(sid)
	case core.ChangeLanguage:
		if err := o.ChangeLanguage(sid, m.Language); err != nil {
			o.reply(sid, core.NewError(err.Error()))
		}
	case core.LiveSpeech:
		u := domain.Utterance{Text: m.Text, IsFinal: m.Final(), EmittedAt: time.Now()}
		if strings.TrimSpace(m.SourceLanguage) != "" {
			if lang, err := domain.ParseLanguage(m.SourceLanguage); err == nil {
				u.SourceLanguage = lang
			} else {
				log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("language", m.SourceLanguage).Msg("ignoring bad source language")
			}
		}
		o.OnUtterance(ctx, sid, u)
	default:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msgf("unhandled inbound %T", msg)
	}
}

// OnDisconnect tears down whatever the connection held.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.Leave(sid)
	o.Registry.Unbind(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

func (o *Orchestrator) reply(sid core.SessionID, msg core.Message) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	sc := sess.Signal()
	if sc == nil {
		return
	}
	if err := sc.TrySend(msg); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("type", msg.MessageType()).Msg("reply dropped")
	}
}

func (o *Orchestrator) handleDropped(room core.RoomService, dropped []core.MemberSession) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		sid := core.SessionID(slow.Meta().User.ID)
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking slow member")
			o.Registry.Cancel(sid)
		case app.DropMessage, app.NoAction:
			log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("message dropped for slow member")
		}
	}
}
