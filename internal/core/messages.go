package core

import (
	"time"

	"github.com/dkeye/Babel/internal/domain"
)

// Outbound message types, as seen on the wire in the "type" field.
const (
	TypeRoomJoined          = "room-joined"
	TypeUserJoined          = "user-joined"
	TypeUserLeft            = "user-left"
	TypeUserLanguageChanged = "user-language-changed"
	TypeLiveTranslation     = "live-translation"
	TypeNewMessage          = "new-message"
	TypeError               = "error"
	TypePong                = "pong"
	TypeWhoAmI              = "whoami"
)

// Inbound message types.
const (
	TypeJoinRoom       = "join-room"
	TypeLeaveRoom      = "leave-room"
	TypeLiveSpeech     = "live-speech"
	TypeChangeLanguage = "change-language"
	TypePing           = "ping"
)

// TranslationFailed is the error marker carried by degraded live-translation events.
const TranslationFailed = "Translation failed"

// Message is anything that can be queued on a SignalConnection.
type Message interface {
	MessageType() string
}

type RoomJoined struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	You     MemberDTO     `json:"you"`
	Members []MemberDTO   `json:"members"`
}

func NewRoomJoined(id domain.RoomID, you MemberDTO, members []MemberDTO) *RoomJoined {
	return &RoomJoined{Type: TypeRoomJoined, RoomID: id, You: you, Members: members}
}

func (m *RoomJoined) MessageType() string { return m.Type }

type UserJoined struct {
	Type        string          `json:"type"`
	ID          domain.UserID   `json:"id"`
	DisplayName string          `json:"displayName"`
	Language    domain.Language `json:"language"`
}

func NewUserJoined(dto MemberDTO) *UserJoined {
	return &UserJoined{Type: TypeUserJoined, ID: dto.ID, DisplayName: dto.DisplayName, Language: dto.Language}
}

func (m *UserJoined) MessageType() string { return m.Type }

type UserLeft struct {
	Type        string        `json:"type"`
	ID          domain.UserID `json:"id"`
	DisplayName string        `json:"displayName"`
}

func NewUserLeft(dto MemberDTO) *UserLeft {
	return &UserLeft{Type: TypeUserLeft, ID: dto.ID, DisplayName: dto.DisplayName}
}

func (m *UserLeft) MessageType() string { return m.Type }

type UserLanguageChanged struct {
	Type        string          `json:"type"`
	ID          domain.UserID   `json:"id"`
	DisplayName string          `json:"displayName"`
	NewLanguage domain.Language `json:"newLanguage"`
}

func NewUserLanguageChanged(dto MemberDTO) *UserLanguageChanged {
	return &UserLanguageChanged{Type: TypeUserLanguageChanged, ID: dto.ID, DisplayName: dto.DisplayName, NewLanguage: dto.Language}
}

func (m *UserLanguageChanged) MessageType() string { return m.Type }

// LiveTranslation carries one utterance translated for one recipient.
// Error is set when every provider failed; TranslatedText is then the original.
type LiveTranslation struct {
	Type           string          `json:"type"`
	OriginalText   string          `json:"originalText"`
	TranslatedText string          `json:"translatedText"`
	SpeakerID      domain.UserID   `json:"speakerId"`
	SpeakerName    string          `json:"speakerName"`
	SourceLanguage domain.Language `json:"sourceLanguage"`
	TargetLanguage domain.Language `json:"targetLanguage"`
	Timestamp      time.Time       `json:"timestamp"`
	Error          string          `json:"error,omitempty"`
}

func NewLiveTranslation(u domain.Utterance, target domain.Language, translated string) *LiveTranslation {
	return &LiveTranslation{
		Type:           TypeLiveTranslation,
		OriginalText:   u.Text,
		TranslatedText: translated,
		SpeakerID:      u.SpeakerID,
		SpeakerName:    u.SpeakerName,
		SourceLanguage: u.SourceLanguage,
		TargetLanguage: target,
		Timestamp:      u.EmittedAt,
	}
}

func NewFailedTranslation(u domain.Utterance, target domain.Language) *LiveTranslation {
	m := NewLiveTranslation(u, target, u.Text)
	m.Error = TranslationFailed
	return m
}

func (m *LiveTranslation) MessageType() string { return m.Type }

// NewMessage is the same-language passthrough of an utterance.
type NewMessage struct {
	Type         string        `json:"type"`
	OriginalText string        `json:"originalText"`
	SpeakerID    domain.UserID `json:"speakerId"`
	SpeakerName  string        `json:"speakerName"`
	Timestamp    time.Time     `json:"timestamp"`
}

func NewNewMessage(u domain.Utterance) *NewMessage {
	return &NewMessage{
		Type:         TypeNewMessage,
		OriginalText: u.Text,
		SpeakerID:    u.SpeakerID,
		SpeakerName:  u.SpeakerName,
		Timestamp:    u.EmittedAt,
	}
}

func (m *NewMessage) MessageType() string { return m.Type }

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Message: msg}
}

func (m *ErrorMessage) MessageType() string { return m.Type }

type Pong struct {
	Type string `json:"type"`
}

func NewPong() *Pong { return &Pong{Type: TypePong} }

func (m *Pong) MessageType() string { return m.Type }

type WhoAmI struct {
	Type        string          `json:"type"`
	ID          domain.UserID   `json:"id"`
	DisplayName string          `json:"displayName,omitempty"`
	Language    domain.Language `json:"language,omitempty"`
	RoomID      domain.RoomID   `json:"roomId,omitempty"`
}

func (m *WhoAmI) MessageType() string { return m.Type }

// Inbound is a decoded client message handed to the orchestrator.
type Inbound interface {
	inbound()
}

type JoinRoom struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Language    string `json:"language"`
}

type LeaveRoom struct{}

// LiveSpeech is a recognized utterance. A nil IsFinal counts as final.
type LiveSpeech struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	IsFinal        *bool  `json:"isFinal,omitempty"`
}

type ChangeLanguage struct {
	Language string `json:"language"`
}

func (JoinRoom) inbound()       {}
func (LeaveRoom) inbound()      {}
func (LiveSpeech) inbound()     {}
func (ChangeLanguage) inbound() {}

func (s LiveSpeech) Final() bool { return s.IsFinal == nil || *s.IsFinal }
