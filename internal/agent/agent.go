// Package agent turns finalized transcriptions into streamed reply
// sentences, function calls, and conversation control signals.
//
// The central implementation is [ChatAgent], which renders the transcript
// into LLM messages, streams the completion through the sentence collator,
// and emits [Response] events for the conversation pipeline. Actions
// requested by the model run on a separate [ActionsWorker] whose results
// loop back into the agent's input queue.
package agent

import (
	"context"
	"time"

	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/llm"
	"github.com/colloquy-ai/colloquy/pkg/memory"
)

// Defaults applied by the conversation when the corresponding Config field
// is zero.
const (
	DefaultGoodbyeTimeout  = 100 * time.Millisecond
	DefaultAllowedIdleTime = 5 * time.Minute
)

// Config holds the per-conversation agent settings. The zero value is a
// minimal text-only agent with no ambient audio and no actions.
type Config struct {
	// InitialMessage, when non-empty, is spoken uninterruptibly before the
	// pipeline is declared running.
	InitialMessage string

	// Preamble is the system prompt placed before the rendered transcript.
	Preamble string

	// Epilogue, when non-empty, is appended after the transcript to
	// re-anchor long conversations.
	Epilogue string

	// SendFillerAudio plays thinking noise while the model streams.
	SendFillerAudio bool

	// SendBackTrackingAudio plays a short acknowledgement when the human
	// interrupts the bot.
	SendBackTrackingAudio bool

	// SendFollowUpAudio plays silence-filling audio after each reply.
	SendFollowUpAudio bool

	// EndConversationOnGoodbye terminates the conversation when the bot's
	// spoken reply matches a goodbye phrase.
	EndConversationOnGoodbye bool

	// GoodbyeTimeout bounds the goodbye check after each utterance.
	// Zero means DefaultGoodbyeTimeout.
	GoodbyeTimeout time.Duration

	// AllowedIdleTime is how long the conversation may sit without activity
	// before the idle watchdog terminates it. Zero means
	// DefaultAllowedIdleTime.
	AllowedIdleTime time.Duration

	// TrackBotSentiment runs the sentiment loop and passes snapshots to the
	// synthesizer.
	TrackBotSentiment bool

	// AllowAgentToBeCutOff makes reply events interruptible by the human.
	AllowAgentToBeCutOff bool

	// GoodbyePhrases overrides the default goodbye phrase set.
	GoodbyePhrases []string

	// Actions is the set of actions offered to the model as functions.
	Actions []Action

	// Temperature and MaxTokens pass through to the LLM request; zero means
	// provider default.
	Temperature float64
	MaxTokens   int

	// MemoryRecallResults is how many vector-memory matches to recall per
	// turn when a memory store is attached. Zero disables recall.
	MemoryRecallResults int
}

// Agent is the conversation's reply engine. The conversation wires its
// queues into the pipeline stages and brackets Start/Terminate around the
// conversation lifecycle.
type Agent interface {
	// Start launches the agent's consume loop.
	Start(ctx context.Context)

	// Terminate stops the loop and releases resources. Idempotent.
	Terminate() error

	// InputQueue receives transcription and action-result events.
	InputQueue() *worker.Queue[*worker.Event[Input]]

	// OutputQueue emits agent responses toward the AgentResponses stage.
	OutputQueue() *worker.Queue[*worker.Event[Response]]

	// ActionsQueue emits function calls toward the actions worker.
	ActionsQueue() *worker.Queue[*worker.Event[llm.FunctionCall]]

	// ActionFactory returns the registry of runnable actions.
	ActionFactory() *ActionFactory

	// Config returns the agent's settings.
	Config() Config

	// UpdateLastBotMessageOnCutOff rewrites the agent's bookkeeping after an
	// utterance was cut off, so the model only sees what was actually heard.
	UpdateLastBotMessageOnCutOff(text string)

	// DetectGoodbye reports whether text reads as a farewell.
	DetectGoodbye(ctx context.Context, text string) (bool, error)

	// CancelCurrentTask cancels the in-flight turn, if interruptible.
	CancelCurrentTask() bool

	// AttachTranscript hands the agent the conversation transcript.
	AttachTranscript(t *transcript.Transcript)

	// SetEventRegistry hands the agent the conversation's interrupt registry.
	SetEventRegistry(r *worker.Registry)

	// VectorMemory returns the agent-owned memory store, or nil. The
	// conversation tears it down during termination.
	VectorMemory() memory.Store
}
