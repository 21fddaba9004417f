// Package types defines the shared types used across all Colloquy packages.
//
// These types form the lingua franca between the conversation core, providers,
// and external event consumers. They are intentionally minimal — each package
// defines its own domain types, but cross-cutting data structures live here to
// avoid circular imports.
package types

import "time"

// Sender identifies which party of the conversation produced a message.
type Sender string

const (
	// SenderHuman marks messages transcribed from the human participant.
	SenderHuman Sender = "human"

	// SenderBot marks messages spoken (or about to be spoken) by the bot.
	SenderBot Sender = "bot"

	// SenderActionWorker marks transcript entries produced by action execution.
	SenderActionWorker Sender = "action_worker"
)

// IsValid reports whether s is one of the defined Sender values.
func (s Sender) IsValid() bool {
	switch s {
	case SenderHuman, SenderBot, SenderActionWorker:
		return true
	}
	return false
}

// EventType discriminates the externally published conversation events.
type EventType string

const (
	// EventTranscript is an incremental transcript entry event.
	EventTranscript EventType = "event_transcript"

	// EventTranscriptComplete carries the full rendered transcript once the
	// conversation has terminated.
	EventTranscriptComplete EventType = "event_transcript_complete"

	// EventAction reports an executed agent action with its input and output.
	EventAction EventType = "event_action"
)

// Event is the tagged union of externally published conversation events.
// Implementations are TranscriptEvent, TranscriptCompleteEvent and
// ActionEvent; consumers switch exhaustively on the concrete type.
type Event interface {
	// Type returns the event discriminator.
	Type() EventType

	// ConversationID returns the conversation the event belongs to.
	ConversationID() string
}

// TranscriptEvent is published for each transcript message once it has been
// spoken (bot) or finalized (human), when an events subscription is attached.
type TranscriptEvent struct {
	Conversation string
	Sender       Sender
	Text         string
	Timestamp    time.Time
}

// Type implements Event.
func (TranscriptEvent) Type() EventType { return EventTranscript }

// ConversationID implements Event.
func (e TranscriptEvent) ConversationID() string { return e.Conversation }

// TranscriptCompleteEvent is published exactly once, during conversation
// termination. Transcript holds the full rendered conversation text.
type TranscriptCompleteEvent struct {
	Conversation string
	Transcript   string
}

// Type implements Event.
func (TranscriptCompleteEvent) Type() EventType { return EventTranscriptComplete }

// ConversationID implements Event.
func (e TranscriptCompleteEvent) ConversationID() string { return e.Conversation }

// ActionEvent is published when an agent action has finished executing.
type ActionEvent struct {
	Conversation string
	ActionType   string
	ActionInput  string
	ActionOutput string
}

// Type implements Event.
func (ActionEvent) Type() EventType { return EventAction }

// ConversationID implements Event.
func (e ActionEvent) ConversationID() string { return e.Conversation }
