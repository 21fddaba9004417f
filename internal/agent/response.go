package agent

import "github.com/colloquy-ai/colloquy/pkg/transcriber"

// Response is the sealed union of agent outputs consumed by the
// AgentResponses stage. Implementations: ResponseMessage,
// ResponseFillerAudio, ResponseBackTrackingAudio, ResponseFollowUpAudio,
// ResponseStop, ResponseEndOfTurn.
type Response interface {
	isResponse()
}

// ResponseMessage carries one sentence of the agent's reply.
type ResponseMessage struct {
	// Message is the sentence text, ready for synthesis.
	Message string

	// IsFirst marks the first sentence of a turn.
	IsFirst bool

	// IsSoleTextChunk is true when the turn produced exactly one sentence.
	IsSoleTextChunk bool
}

func (ResponseMessage) isResponse() {}

// ResponseFillerAudio asks the random-audio manager to play thinking noise
// while the model streams.
type ResponseFillerAudio struct{}

func (ResponseFillerAudio) isResponse() {}

// ResponseBackTrackingAudio asks for a short acknowledgement after the human
// interrupted the bot.
type ResponseBackTrackingAudio struct{}

func (ResponseBackTrackingAudio) isResponse() {}

// ResponseFollowUpAudio asks for silence-filling audio after a reply.
type ResponseFollowUpAudio struct{}

func (ResponseFollowUpAudio) isResponse() {}

// ResponseStop tells the conversation to terminate.
type ResponseStop struct{}

func (ResponseStop) isResponse() {}

// ResponseEndOfTurn closes a turn without carrying content.
type ResponseEndOfTurn struct{}

func (ResponseEndOfTurn) isResponse() {}

// Input is one unit of work for the agent: a final human transcription or
// the result of a completed action. Exactly one of the two pointers is set.
type Input struct {
	ConversationID string
	Transcription  *transcriber.Transcription
	ActionResult   *ActionResult
}

// ActionResult is the outcome of an executed action, fed back into the agent
// so the model can phrase a reply around it.
type ActionResult struct {
	ActionType  string
	ActionInput string
	Output      string
}
