package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/colloquy-ai/colloquy/internal/collate"
	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/llm"
	"github.com/colloquy-ai/colloquy/pkg/memory"
)

// ChatAgent is the LLM-backed Agent. Each input turn renders the transcript
// into messages, optionally recalls vector-memory context, streams the
// completion through the sentence collator, and emits one ResponseMessage
// per sentence plus function calls into the actions queue.
type ChatAgent struct {
	cfg      Config
	provider llm.Provider
	factory  *ActionFactory
	goodbye  *GoodbyeMatcher
	logger   *slog.Logger
	memory   memory.Store

	transcript *transcript.Transcript
	registry   *worker.Registry

	in      *worker.Queue[*worker.Event[Input]]
	out     *worker.Queue[*worker.Event[Response]]
	actions *worker.Queue[*worker.Event[llm.FunctionCall]]
	loop    *worker.InterruptibleWorker[Input]

	terminate sync.Once
}

var _ Agent = (*ChatAgent)(nil)

// ChatOption configures a ChatAgent.
type ChatOption func(*ChatAgent)

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) ChatOption {
	return func(a *ChatAgent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithVectorMemory attaches a memory store. The agent owns it; the
// conversation tears it down during termination.
func WithVectorMemory(store memory.Store) ChatOption {
	return func(a *ChatAgent) { a.memory = store }
}

// NewChatAgent builds an agent over the given provider. AttachTranscript and
// SetEventRegistry must be called before Start; the conversation does both
// while wiring the pipeline.
func NewChatAgent(provider llm.Provider, cfg Config, opts ...ChatOption) *ChatAgent {
	a := &ChatAgent{
		cfg:      cfg,
		provider: provider,
		factory:  NewActionFactory(cfg.Actions...),
		goodbye:  NewGoodbyeMatcher(cfg.GoodbyePhrases...),
		logger:   slog.Default(),
		in:       worker.NewQueue[*worker.Event[Input]](),
		out:      worker.NewQueue[*worker.Event[Response]](),
		actions:  worker.NewQueue[*worker.Event[llm.FunctionCall]](),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.loop = worker.NewInterruptibleWorker(a.in, a.processInput)
	return a
}

// Start launches the agent's consume loop.
func (a *ChatAgent) Start(ctx context.Context) {
	a.loop.Start(ctx)
}

// Terminate stops the loop and closes the agent's queues. Idempotent.
func (a *ChatAgent) Terminate() error {
	a.terminate.Do(func() {
		a.loop.Terminate()
		a.in.Close()
		a.out.Close()
		a.actions.Close()
	})
	return nil
}

// InputQueue implements Agent.
func (a *ChatAgent) InputQueue() *worker.Queue[*worker.Event[Input]] { return a.in }

// OutputQueue implements Agent.
func (a *ChatAgent) OutputQueue() *worker.Queue[*worker.Event[Response]] { return a.out }

// ActionsQueue implements Agent.
func (a *ChatAgent) ActionsQueue() *worker.Queue[*worker.Event[llm.FunctionCall]] {
	return a.actions
}

// ActionFactory implements Agent.
func (a *ChatAgent) ActionFactory() *ActionFactory { return a.factory }

// Config implements Agent.
func (a *ChatAgent) Config() Config { return a.cfg }

// UpdateLastBotMessageOnCutOff rewrites the last bot transcript entry so the
// model's view of the conversation matches what the human actually heard.
func (a *ChatAgent) UpdateLastBotMessageOnCutOff(text string) {
	if a.transcript == nil {
		return
	}
	if a.transcript.UpdateLastBotMessage(text) {
		a.logger.Debug("bot message truncated after cut-off", "text", text)
	}
}

// DetectGoodbye implements Agent.
func (a *ChatAgent) DetectGoodbye(ctx context.Context, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return a.goodbye.Match(text), nil
}

// CancelCurrentTask implements Agent.
func (a *ChatAgent) CancelCurrentTask() bool {
	return a.loop.CancelCurrent()
}

// AttachTranscript implements Agent.
func (a *ChatAgent) AttachTranscript(t *transcript.Transcript) { a.transcript = t }

// SetEventRegistry implements Agent.
func (a *ChatAgent) SetEventRegistry(r *worker.Registry) { a.registry = r }

// VectorMemory implements Agent.
func (a *ChatAgent) VectorMemory() memory.Store { return a.memory }

// processInput runs one turn. ctx is cancelled when the input event is
// interrupted; every suspension point below honors it.
func (a *ChatAgent) processInput(ctx context.Context, ev *worker.Event[Input]) {
	in := ev.Payload

	var query string
	switch {
	case in.Transcription != nil:
		query = in.Transcription.Message
		a.transcript.AddHumanMessage(query)
		a.rememberHumanMessage(ctx, in.ConversationID, query)
		if a.cfg.SendFillerAudio {
			a.emit(ResponseFillerAudio{}, true, nil)
		}
	case in.ActionResult != nil:
		// Action start/finish entries are already on the transcript; the
		// model sees them through the render.
		query = in.ActionResult.Output
	default:
		a.logger.Error("agent input carries neither transcription nor action result")
		return
	}

	preamble := a.cfg.Preamble
	if recalled := a.recall(ctx, query); recalled != "" {
		preamble = strings.TrimSpace(preamble + "\n\n" + recalled)
	}

	req := llm.CompletionRequest{
		Messages: transcript.Render(a.transcript, transcript.RenderOptions{
			Preamble: preamble,
			Epilogue: a.cfg.Epilogue,
		}),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if a.factory.Len() > 0 {
		req.Functions = a.factory.Definitions()
	}

	stream, err := a.provider.StreamCompletion(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Error("completion stream failed to start", "error", err)
		}
		a.emit(ResponseEndOfTurn{}, ev.Interruptible(), ev.Tracker())
		return
	}

	results := collate.Sentences(ctx, a.tokenize(ctx, stream), a.collateOpts()...)

	var (
		pending   *ResponseMessage
		sentences int
	)
	for res := range results {
		if res.Function != nil {
			a.actions.Put(worker.Register(a.registry, llm.FunctionCall(*res.Function),
				worker.WithInterruptible(ev.Interruptible())))
			continue
		}
		if pending != nil {
			a.emitMessage(*pending, nil)
		}
		pending = &ResponseMessage{Message: res.Sentence, IsFirst: sentences == 0}
		sentences++
	}

	if ctx.Err() != nil {
		// Interrupted mid-stream; the turn is void and nothing more may be
		// emitted downstream.
		return
	}

	if pending != nil {
		pending.IsSoleTextChunk = sentences == 1
		a.emitMessage(*pending, nil)
	}
	a.emit(ResponseEndOfTurn{}, ev.Interruptible(), ev.Tracker())
}

// tokenize adapts the provider's chunk stream to collator tokens.
func (a *ChatAgent) tokenize(ctx context.Context, stream <-chan llm.Chunk) <-chan collate.Token {
	tokens := make(chan collate.Token)
	go func() {
		defer close(tokens)
		for chunk := range stream {
			if chunk.FinishReason == llm.FinishReasonError {
				a.logger.Error("completion stream failed mid-turn", "error", chunk.Text)
				return
			}
			tok := collate.Token{Text: chunk.Text}
			if chunk.Function != nil {
				tok = collate.Token{Fragment: &collate.FunctionFragment{
					Name:      chunk.Function.Name,
					Arguments: chunk.Function.Arguments,
				}}
			}
			select {
			case tokens <- tok:
			case <-ctx.Done():
				return
			}
		}
	}()
	return tokens
}

func (a *ChatAgent) collateOpts() []collate.Option {
	if a.factory.Len() > 0 {
		return []collate.Option{collate.IncludeFunctions()}
	}
	return nil
}

func (a *ChatAgent) emitMessage(msg ResponseMessage, tracker *worker.Tracker) {
	a.emit(msg, a.cfg.AllowAgentToBeCutOff, tracker)
}

func (a *ChatAgent) emit(resp Response, interruptible bool, tracker *worker.Tracker) {
	a.out.Put(worker.Register(a.registry, resp,
		worker.WithInterruptible(interruptible),
		worker.WithTracker(tracker)))
}

// recall searches the vector memory for context relevant to query and
// renders the matches as a system-prompt section.
func (a *ChatAgent) recall(ctx context.Context, query string) string {
	if a.memory == nil || a.cfg.MemoryRecallResults <= 0 || strings.TrimSpace(query) == "" {
		return ""
	}
	matches, err := a.memory.Search(ctx, query, a.cfg.MemoryRecallResults)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("memory recall failed", "error", err)
		}
		return ""
	}
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant context from earlier conversations:")
	for _, m := range matches {
		fmt.Fprintf(&b, "\n- %s", m.Text)
	}
	return b.String()
}

func (a *ChatAgent) rememberHumanMessage(ctx context.Context, conversationID, text string) {
	if a.memory == nil || strings.TrimSpace(text) == "" {
		return
	}
	metadata := map[string]string{
		"conversation": conversationID,
		"sender":       "human",
	}
	if err := a.memory.AddText(ctx, text, metadata); err != nil && ctx.Err() == nil {
		a.logger.Warn("memory store failed", "error", err)
	}
}
