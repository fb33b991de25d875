package domain

import "time"

// Utterance is one finalized piece of recognized speech. Never persisted.
type Utterance struct {
	Text           string
	SourceLanguage Language
	SpeakerID      UserID
	SpeakerName    string
	IsFinal        bool
	EmittedAt      time.Time
}
