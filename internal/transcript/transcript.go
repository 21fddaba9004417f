// Package transcript keeps the ordered log of everything said and done in a
// conversation: human and bot messages plus action start/finish markers.
//
// Bot entries are live: the rate-paced emitter updates the text of the entry
// it is currently speaking, so the transcript always reflects what the user
// has actually heard, not what was scheduled.
package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/colloquy-ai/colloquy/pkg/types"
)

// Publisher receives external conversation events. The events manager
// satisfies it; a nil publisher disables publishing.
type Publisher interface {
	Publish(event types.Event)
}

// Entry is the sealed union of transcript entries: *Message, *ActionStart,
// *ActionFinish.
type Entry interface {
	isEntry()
}

// Message is one spoken (or transcribed) message. Text access is
// mutex-guarded because the emitter updates bot messages in place while other
// goroutines render the transcript.
type Message struct {
	Sender    types.Sender
	Timestamp time.Time

	mu   sync.Mutex
	text string
}

func (*Message) isEntry() {}

// Text returns the message text.
func (m *Message) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// SetText replaces the message text.
func (m *Message) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
}

// ActionStart marks the start of an agent action.
type ActionStart struct {
	ActionType  string
	ActionInput string
	Timestamp   time.Time
}

func (*ActionStart) isEntry() {}

// ActionFinish marks the completion of an agent action.
type ActionFinish struct {
	ActionType   string
	ActionOutput string
	Timestamp    time.Time
}

func (*ActionFinish) isEntry() {}

// Transcript is the append-only conversation log. Safe for concurrent use.
type Transcript struct {
	conversationID string
	publisher      Publisher

	mu      sync.Mutex
	entries []Entry
}

// New creates an empty transcript. publisher may be nil.
func New(conversationID string, publisher Publisher) *Transcript {
	return &Transcript{conversationID: conversationID, publisher: publisher}
}

// AddHumanMessage appends a finalized human message and publishes it.
func (t *Transcript) AddHumanMessage(text string) *Message {
	m := &Message{Sender: types.SenderHuman, Timestamp: time.Now(), text: text}
	t.append(m)
	t.PublishMessage(m)
	return m
}

// AddBotMessage appends a bot message without publishing it. The caller
// publishes once the message has actually been spoken.
func (t *Transcript) AddBotMessage(text string) *Message {
	m := &Message{Sender: types.SenderBot, Timestamp: time.Now(), text: text}
	t.append(m)
	return m
}

// PublishMessage publishes a transcript event for m, if a publisher is
// attached.
func (t *Transcript) PublishMessage(m *Message) {
	if t.publisher == nil {
		return
	}
	t.publisher.Publish(types.TranscriptEvent{
		Conversation: t.conversationID,
		Sender:       m.Sender,
		Text:         m.Text(),
		Timestamp:    m.Timestamp,
	})
}

// AddActionStart appends an action-start marker.
func (t *Transcript) AddActionStart(actionType, actionInput string) {
	t.append(&ActionStart{ActionType: actionType, ActionInput: actionInput, Timestamp: time.Now()})
}

// AddActionFinish appends an action-finish marker and publishes an action
// event carrying both sides of the call.
func (t *Transcript) AddActionFinish(actionType, actionInput, actionOutput string) {
	t.append(&ActionFinish{ActionType: actionType, ActionOutput: actionOutput, Timestamp: time.Now()})
	if t.publisher != nil {
		t.publisher.Publish(types.ActionEvent{
			Conversation: t.conversationID,
			ActionType:   actionType,
			ActionInput:  actionInput,
			ActionOutput: actionOutput,
		})
	}
}

// UpdateLastBotMessage rewrites the text of the most recent bot entry.
// Used when an utterance was cut off mid-speech.
func (t *Transcript) UpdateLastBotMessage(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if m, ok := t.entries[i].(*Message); ok && m.Sender == types.SenderBot {
			m.SetText(text)
			return true
		}
	}
	return false
}

// Entries returns a snapshot of the current entry slice.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// String renders the full conversation, one entry per line.
func (t *Transcript) String() string {
	var b strings.Builder
	for _, entry := range t.Entries() {
		switch e := entry.(type) {
		case *Message:
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(e.Sender)), e.Text())
		case *ActionStart:
			fmt.Fprintf(&b, "%s: performing action %s with input %s\n",
				strings.ToUpper(string(types.SenderActionWorker)), e.ActionType, e.ActionInput)
		case *ActionFinish:
			fmt.Fprintf(&b, "%s: action %s finished with output %s\n",
				strings.ToUpper(string(types.SenderActionWorker)), e.ActionType, e.ActionOutput)
		}
	}
	return b.String()
}

// Complete publishes the full rendered transcript. Called once, during
// conversation termination.
func (t *Transcript) Complete() {
	if t.publisher == nil {
		return
	}
	t.publisher.Publish(types.TranscriptCompleteEvent{
		Conversation: t.conversationID,
		Transcript:   t.String(),
	})
}

func (t *Transcript) append(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
}
