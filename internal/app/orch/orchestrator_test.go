package orch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/app/orch"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/translate"
	"github.com/dkeye/Babel/internal/translate/mocks"
)

type recordingSignal struct {
	mu   sync.Mutex
	msgs []core.Message
	full bool
}

func (s *recordingSignal) TrySend(m core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return core.ErrBackpressure
	}
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *recordingSignal) Close() {}

func (s *recordingSignal) all() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Message(nil), s.msgs...)
}

func (s *recordingSignal) reset() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

func (s *recordingSignal) ofType(typ string) []core.Message {
	var out []core.Message
	for _, m := range s.all() {
		if m.MessageType() == typ {
			out = append(out, m)
		}
	}
	return out
}

func newOrchestrator(tr orch.Translator) *orch.Orchestrator {
	return &orch.Orchestrator{
		Registry:   app.NewRegistry(),
		Rooms:      app.NewRoomManager(),
		Policy:     app.SimplePolicy{},
		Cache:      translate.NewCache(100, time.Hour),
		Translator: tr,
	}
}

func connect(t *testing.T, o *orch.Orchestrator, sid string) *recordingSignal {
	t.Helper()
	u, err := domain.NewUser(domain.UserID(sid), domain.DefaultDisplayName)
	require.NoError(t, err)
	sig := &recordingSignal{}
	o.Registry.BindSignal(core.SessionID(sid), core.NewMemberSession(domain.NewMember(u, "")).UpdateSignal(sig), nil)
	return sig
}

func join(t *testing.T, o *orch.Orchestrator, sid, room, name, lang string) *recordingSignal {
	t.Helper()
	sig := connect(t, o, sid)
	_, err := o.Join(core.SessionID(sid), room, name, lang)
	require.NoError(t, err)
	return sig
}

func say(o *orch.Orchestrator, sid, text string) int {
	return o.OnUtterance(context.Background(), core.SessionID(sid), domain.Utterance{Text: text, IsFinal: true})
}

func TestAliceToBobTranslated(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Translate(gomock.Any(), "Hello", "en", "es").Return("Hola", nil).Times(1)

	o := newOrchestrator(provider)
	alice := join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	alice.reset()
	bob.reset()

	assert.Equal(t, 1, say(o, "alice", "Hello"))

	assert.Empty(t, alice.all())
	msgs := bob.all()
	require.Len(t, msgs, 1)
	lt, ok := msgs[0].(*core.LiveTranslation)
	require.True(t, ok)
	assert.Equal(t, "Hello", lt.OriginalText)
	assert.Equal(t, "Hola", lt.TranslatedText)
	assert.Equal(t, domain.Language("en"), lt.SourceLanguage)
	assert.Equal(t, domain.Language("es"), lt.TargetLanguage)
	assert.Equal(t, "Alice", lt.SpeakerName)
	assert.Empty(t, lt.Error)
}

func TestSameLanguagePassthrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Translate(gomock.Any(), "Hi", "en", "es").Return("Hola", nil).Times(1)
	provider.EXPECT().Translate(gomock.Any(), gomock.Any(), "en", "en").Times(0)

	o := newOrchestrator(provider)
	alice := join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	carol := join(t, o, "carol", "R1", "Carol", "en")
	alice.reset()
	bob.reset()
	carol.reset()

	assert.Equal(t, 2, say(o, "alice", "Hi"))

	assert.Empty(t, alice.all())
	require.Len(t, bob.ofType(core.TypeLiveTranslation), 1)
	msgs := carol.all()
	require.Len(t, msgs, 1)
	nm, ok := msgs[0].(*core.NewMessage)
	require.True(t, ok)
	assert.Equal(t, "Hi", nm.OriginalText)
	assert.Equal(t, "Alice", nm.SpeakerName)
}

func TestAllProvidersFailDegradesToOriginal(t *testing.T) {
	down := func(context.Context, string, string, string) (string, error) {
		return "", errors.New("down")
	}
	chain := translate.NewChain(time.Second,
		translate.ProviderFunc{ID: "a", Fn: down},
		translate.ProviderFunc{ID: "b", Fn: down},
	)
	o := newOrchestrator(chain)
	join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	bob.reset()

	assert.Equal(t, 1, say(o, "alice", "X"))

	msgs := bob.all()
	require.Len(t, msgs, 1)
	lt := msgs[0].(*core.LiveTranslation)
	assert.Equal(t, "X", lt.OriginalText)
	assert.Equal(t, "X", lt.TranslatedText)
	assert.Equal(t, core.TranslationFailed, lt.Error)
	assert.Equal(t, 0, o.Cache.Len(), "failures are not cached")
}

func TestOneEventPerRecipient(t *testing.T) {
	tr := translate.Echo{Tag: true}
	o := newOrchestrator(tr)
	langs := map[string]string{"a": "en", "b": "es", "c": "fr", "d": "de", "e": "es", "f": "en"}
	sigs := map[string]*recordingSignal{}
	for sid, lang := range langs {
		sigs[sid] = join(t, o, sid, "MIX", sid, lang)
	}
	for _, s := range sigs {
		s.reset()
	}

	assert.Equal(t, len(langs)-1, say(o, "a", "good morning"))

	assert.Empty(t, sigs["a"].all())
	for sid, s := range sigs {
		if sid == "a" {
			continue
		}
		require.Len(t, s.all(), 1, sid)
	}
	assert.Len(t, sigs["f"].ofType(core.TypeNewMessage), 1)
	lt := sigs["c"].ofType(core.TypeLiveTranslation)[0].(*core.LiveTranslation)
	assert.Equal(t, "[fr] good morning", lt.TranslatedText)
}

func TestCacheServesRepeatedPhrases(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Translate(gomock.Any(), "Thanks", "en", "es").Return("Gracias", nil).Times(1)

	o := newOrchestrator(provider)
	join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	bob.reset()

	say(o, "alice", "Thanks")
	say(o, "alice", "  Thanks ")

	msgs := bob.ofType(core.TypeLiveTranslation)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Gracias", msgs[1].(*core.LiveTranslation).TranslatedText)
	assert.EqualValues(t, 1, o.Cache.Stats().Hits)
}

func TestConcurrentMissesShareOneChainCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Translate(gomock.Any(), "Hello", "en", "es").
		DoAndReturn(func(context.Context, string, string, string) (string, error) {
			time.Sleep(100 * time.Millisecond)
			return "Hola", nil
		}).Times(1)

	o := newOrchestrator(provider)
	join(t, o, "alice", "R1", "Alice", "en")
	for _, sid := range []string{"b1", "b2", "b3", "b4"} {
		join(t, o, sid, "R1", sid, "es")
	}

	assert.Equal(t, 4, say(o, "alice", "Hello"))
}

func TestRecipientPanicIsIsolated(t *testing.T) {
	tr := translate.ProviderFunc{ID: "flaky", Fn: func(_ context.Context, text, _, target string) (string, error) {
		if target == "fr" {
			panic("bad state")
		}
		return "Hola", nil
	}}
	o := newOrchestrator(tr)
	join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	carol := join(t, o, "carol", "R1", "Carol", "fr")
	bob.reset()
	carol.reset()

	assert.Equal(t, 2, say(o, "alice", "Hello"))
	assert.Len(t, bob.ofType(core.TypeLiveTranslation), 1)

	msgs := carol.all()
	require.Len(t, msgs, 1)
	lt := msgs[0].(*core.LiveTranslation)
	assert.Equal(t, "Hello", lt.TranslatedText)
	assert.Equal(t, core.TranslationFailed, lt.Error)
}

func TestRecipientsAreTranslatedConcurrently(t *testing.T) {
	const delay = 200 * time.Millisecond
	tr := translate.ProviderFunc{ID: "slow", Fn: func(_ context.Context, text, _, target string) (string, error) {
		time.Sleep(delay)
		return "[" + target + "] " + text, nil
	}}
	o := newOrchestrator(tr)
	join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	carol := join(t, o, "carol", "R1", "Carol", "fr")
	dave := join(t, o, "dave", "R1", "Dave", "de")
	bob.reset()
	carol.reset()
	dave.reset()

	start := time.Now()
	assert.Equal(t, 3, say(o, "alice", "Hello"))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*delay, "fan-out took %s", elapsed)
	assert.Len(t, bob.ofType(core.TypeLiveTranslation), 1)
	assert.Len(t, carol.ofType(core.TypeLiveTranslation), 1)
	assert.Len(t, dave.ofType(core.TypeLiveTranslation), 1)
}

func TestUtteranceOutsideRoom(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	sig := connect(t, o, "lonely")

	assert.Equal(t, 0, say(o, "lonely", "anyone?"))
	msgs := sig.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "not in a room", msgs[0].(*core.ErrorMessage).Message)
}

func TestInterimAndBlankAreDiscarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	o := newOrchestrator(provider)
	join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	bob.reset()

	interim := false
	o.Dispatch(context.Background(), "alice", core.LiveSpeech{Text: "Hel", IsFinal: &interim})
	o.Dispatch(context.Background(), "alice", core.LiveSpeech{Text: "   "})
	assert.Empty(t, bob.all())
}

func TestExplicitSourceLanguage(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Translate(gomock.Any(), "Bonjour", "fr", "es").Return("Hola", nil)

	o := newOrchestrator(provider)
	alice := join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	carol := join(t, o, "carol", "R1", "Carol", "fr")
	alice.reset()
	bob.reset()
	carol.reset()

	o.Dispatch(context.Background(), "alice", core.LiveSpeech{Text: "Bonjour", SourceLanguage: "FR"})

	assert.Len(t, bob.ofType(core.TypeLiveTranslation), 1)
	assert.Len(t, carol.ofType(core.TypeNewMessage), 1)
}

func TestRoomLifecycle(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	sig := join(t, o, "alice", "r1", "Alice", "en")

	msgs := sig.ofType(core.TypeRoomJoined)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoomID("R1"), msgs[0].(*core.RoomJoined).RoomID)

	info, err := o.RoomInfo("r1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.UserCount)
	assert.Equal(t, "Alice", info.Members[0].DisplayName)

	assert.True(t, o.Leave("alice"))
	assert.False(t, o.Leave("alice"))
	_, err = o.RoomInfo("R1")
	assert.ErrorIs(t, err, orch.ErrRoomNotFound)
	assert.Equal(t, 0, o.Rooms.Count())
}

func TestJoinValidation(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	sig := connect(t, o, "alice")

	_, err := o.Join("alice", "!", "Alice", "en")
	assert.ErrorIs(t, err, domain.ErrInvalidRoomID)
	_, err = o.Join("alice", "R1", "Alice", "")
	assert.ErrorIs(t, err, domain.ErrInvalidLanguage)
	_, err = o.Join("ghost", "R1", "Ghost", "en")
	assert.ErrorIs(t, err, orch.ErrUnknownSession)

	snap, err := o.Join("alice", "R1", "", "en")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDisplayName, snap.Members[0].DisplayName)

	o.Dispatch(context.Background(), "alice", core.JoinRoom{RoomID: "R1", Language: "??"})
	errs := sig.ofType(core.TypeError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].(*core.ErrorMessage).Message, "invalid language")
}

func TestSwitchingRoomsLeavesThePreviousOne(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	bob.reset()

	_, err := o.Join("alice", "R2", "Alice", "en")
	require.NoError(t, err)

	left := bob.ofType(core.TypeUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "Alice", left[0].(*core.UserLeft).DisplayName)

	id, _, ok := o.Registry.RoomOf("alice")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("R2"), id)

	info, err := o.RoomInfo("R1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.UserCount)
}

func TestRejoinSameRoomUpdatesLanguage(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	alice := join(t, o, "alice", "R1", "Alice", "en")
	join(t, o, "bob", "R1", "Bob", "es")
	alice.reset()

	_, err := o.Join("bob", "R1", "Bob", "fr")
	require.NoError(t, err)

	changed := alice.ofType(core.TypeUserLanguageChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.Language("fr"), changed[0].(*core.UserLanguageChanged).NewLanguage)
	assert.Empty(t, alice.ofType(core.TypeUserJoined))

	info, err := o.RoomInfo("R1")
	require.NoError(t, err)
	assert.Equal(t, 2, info.UserCount)
	assert.Equal(t, "alice", string(info.Members[0].ID), "rejoin keeps the original join order")
}

func TestChangeLanguage(t *testing.T) {
	o := newOrchestrator(translate.Echo{Tag: true})
	alice := join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	alice.reset()
	bob.reset()

	require.NoError(t, o.ChangeLanguage("bob", "fr"))
	changed := alice.ofType(core.TypeUserLanguageChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "Bob", changed[0].(*core.UserLanguageChanged).DisplayName)
	assert.Empty(t, bob.all())

	say(o, "alice", "Hello")
	lt := bob.ofType(core.TypeLiveTranslation)[0].(*core.LiveTranslation)
	assert.Equal(t, "[fr] Hello", lt.TranslatedText)

	assert.ErrorIs(t, o.ChangeLanguage("bob", "!!"), domain.ErrInvalidLanguage)
	connect(t, o, "idle")
	assert.NoError(t, o.ChangeLanguage("idle", "de"))
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	join(t, o, "alice", "R1", "Alice", "en")
	bob := join(t, o, "bob", "R1", "Bob", "es")
	bob.reset()

	o.OnDisconnect("alice")

	require.Len(t, bob.ofType(core.TypeUserLeft), 1)
	_, ok := o.Registry.GetSession("alice")
	assert.False(t, ok)
	assert.Equal(t, 1, o.Registry.Count())

	o.OnDisconnect("bob")
	assert.Equal(t, 0, o.Rooms.Count())
}

func TestStrictPolicyKicksSlowMembers(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	o.Policy = app.StrictPolicy{}

	join(t, o, "alice", "R1", "Alice", "en")
	u, err := domain.NewUser("bob", "Bob")
	require.NoError(t, err)
	slow := &recordingSignal{}
	canceled := make(chan struct{})
	o.Registry.BindSignal("bob", core.NewMemberSession(domain.NewMember(u, "")).UpdateSignal(slow), func() { close(canceled) })
	_, err = o.Join("bob", "R1", "Bob", "es")
	require.NoError(t, err)

	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	assert.Equal(t, 0, say(o, "alice", "Hello"))
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("slow member was not kicked")
	}
}

func TestWhoAmI(t *testing.T) {
	o := newOrchestrator(translate.Echo{})
	connect(t, o, "alice")
	me := o.WhoAmI("alice")
	assert.Equal(t, domain.UserID("alice"), me.ID)
	assert.Empty(t, me.RoomID)

	_, err := o.Join("alice", "R1", "Alice", "pt_BR")
	require.NoError(t, err)
	me = o.WhoAmI("alice")
	assert.Equal(t, domain.RoomID("R1"), me.RoomID)
	assert.Equal(t, domain.Language("pt-br"), me.Language)
}
