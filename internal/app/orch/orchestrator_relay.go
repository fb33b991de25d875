package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/translate"
)

// OnUtterance fans one final utterance out to every other member of the
// speaker's room, translated per recipient. It returns how many events were
// queued.
func (o *Orchestrator) OnUtterance(ctx context.Context, sid core.SessionID, u domain.Utterance) int {
	u.Text = strings.TrimSpace(u.Text)
	if !u.IsFinal || u.Text == "" {
		return 0
	}
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		o.reply(sid, core.NewError(ErrNotInRoom.Error()))
		return 0
	}
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("room gone, utterance discarded")
		return 0
	}
	speaker, ok := room.Member(sid)
	if !ok {
		return 0
	}
	u.SpeakerID = speaker.DTO.ID
	u.SpeakerName = speaker.DTO.DisplayName
	if u.SourceLanguage == "" {
		u.SourceLanguage = speaker.DTO.Language
	}
	if u.EmittedAt.IsZero() {
		u.EmittedAt = time.Now()
	}

	var sent atomic.Int32
	var wg conc.WaitGroup
	for _, m := range room.Members() {
		if m.SID == sid {
			continue
		}
		wg.Go(func() {
			if o.deliver(ctx, room, m, u) {
				sent.Add(1)
			}
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Err(r.AsError()).Str("module", "orch").Str("room", string(roomID)).Msg("recipient fan-out panicked")
	}

	log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).
		Str("source", string(u.SourceLanguage)).Int32("sent", sent.Load()).Msg("utterance relayed")
	return int(sent.Load())
}

func (o *Orchestrator) deliver(ctx context.Context, room core.RoomService, m core.MemberView, u domain.Utterance) bool {
	target := m.DTO.Language

	var msg core.Message
	if target == u.SourceLanguage {
		msg = core.NewNewMessage(u)
	} else if text, err := o.translateRecovered(ctx, u.Text, u.SourceLanguage, target); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(m.SID)).
			Str("source", string(u.SourceLanguage)).Str("target", string(target)).Msg("translation failed, passing original through")
		msg = core.NewFailedTranslation(u, target)
	} else {
		msg = core.NewLiveTranslation(u, target, text)
	}

	sc := m.Session.Signal()
	if sc == nil {
		return false
	}
	if err := sc.TrySend(msg); err != nil {
		if errors.Is(err, core.ErrBackpressure) {
			o.handleDropped(room, []core.MemberSession{m.Session})
		}
		return false
	}
	return true
}

// translateRecovered turns a translator panic into an ordinary failure so the
// recipient still gets the original text.
func (o *Orchestrator) translateRecovered(ctx context.Context, text string, source, target domain.Language) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("translator panic: %v", r)
		}
	}()
	return o.translate(ctx, text, source, target)
}

// translate serves from cache, otherwise asks the chain. Concurrent misses
// for one key share a single chain call.
func (o *Orchestrator) translate(ctx context.Context, text string, source, target domain.Language) (string, error) {
	src, dst := string(source), string(target)
	if o.Cache != nil {
		if out, ok := o.Cache.Lookup(text, src, dst); ok {
			return out, nil
		}
	}
	if o.Translator == nil {
		return "", translate.ErrNoProviders
	}

	key := src + "\x00" + dst + "\x00" + text
	v, err, _ := o.inflight.Do(key, func() (any, error) {
		// Shared by every waiter, so it must not die with the speaker's connection.
		out, err := o.Translator.Translate(context.WithoutCancel(ctx), text, src, dst)
		if err != nil {
			return "", err
		}
		if o.Cache != nil {
			o.Cache.Store(text, src, dst, out)
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
