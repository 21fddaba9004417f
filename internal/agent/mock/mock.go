// Package mock provides a scripted agent for conversation tests.
package mock

import (
	"context"
	"sync"

	"github.com/colloquy-ai/colloquy/internal/agent"
	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/llm"
	"github.com/colloquy-ai/colloquy/pkg/memory"
)

// Agent replays a scripted batch of responses for every input event. Inputs
// are recorded for assertions.
type Agent struct {
	// Cfg is returned by Config.
	Cfg agent.Config

	// Responses is emitted, in order, for each consumed input. The
	// interruptibility of each emitted event follows Cfg.AllowAgentToBeCutOff.
	Responses []agent.Response

	// GoodbyeResult and GoodbyeErr script DetectGoodbye.
	GoodbyeResult bool
	GoodbyeErr    error

	// GoodbyeDelay, when non-nil, runs before DetectGoodbye returns. Used to
	// exercise the goodbye race timeout.
	GoodbyeDelay func(ctx context.Context) error

	// Memory is returned by VectorMemory.
	Memory memory.Store

	mu            sync.Mutex
	inputs        []agent.Input
	cutOffTexts   []string
	cancelCalls   int
	goodbyeChecks []string
	terminated    int

	transcript *transcript.Transcript
	registry   *worker.Registry

	in      *worker.Queue[*worker.Event[agent.Input]]
	out     *worker.Queue[*worker.Event[agent.Response]]
	actions *worker.Queue[*worker.Event[llm.FunctionCall]]
	factory *agent.ActionFactory
	loop    *worker.InterruptibleWorker[agent.Input]

	terminate sync.Once
}

var _ agent.Agent = (*Agent)(nil)

// New returns a mock agent with the given config.
func New(cfg agent.Config) *Agent {
	a := &Agent{
		Cfg:     cfg,
		in:      worker.NewQueue[*worker.Event[agent.Input]](),
		out:     worker.NewQueue[*worker.Event[agent.Response]](),
		actions: worker.NewQueue[*worker.Event[llm.FunctionCall]](),
		factory: agent.NewActionFactory(cfg.Actions...),
	}
	a.loop = worker.NewInterruptibleWorker(a.in, a.process)
	return a
}

// Start implements agent.Agent.
func (a *Agent) Start(ctx context.Context) { a.loop.Start(ctx) }

// Terminate implements agent.Agent.
func (a *Agent) Terminate() error {
	a.terminate.Do(func() {
		a.loop.Terminate()
		a.in.Close()
		a.out.Close()
		a.actions.Close()
		a.mu.Lock()
		a.terminated++
		a.mu.Unlock()
	})
	return nil
}

// InputQueue implements agent.Agent.
func (a *Agent) InputQueue() *worker.Queue[*worker.Event[agent.Input]] { return a.in }

// OutputQueue implements agent.Agent.
func (a *Agent) OutputQueue() *worker.Queue[*worker.Event[agent.Response]] { return a.out }

// ActionsQueue implements agent.Agent.
func (a *Agent) ActionsQueue() *worker.Queue[*worker.Event[llm.FunctionCall]] { return a.actions }

// ActionFactory implements agent.Agent.
func (a *Agent) ActionFactory() *agent.ActionFactory { return a.factory }

// Config implements agent.Agent.
func (a *Agent) Config() agent.Config { return a.Cfg }

// UpdateLastBotMessageOnCutOff implements agent.Agent.
func (a *Agent) UpdateLastBotMessageOnCutOff(text string) {
	a.mu.Lock()
	a.cutOffTexts = append(a.cutOffTexts, text)
	a.mu.Unlock()
	if a.transcript != nil {
		a.transcript.UpdateLastBotMessage(text)
	}
}

// DetectGoodbye implements agent.Agent.
func (a *Agent) DetectGoodbye(ctx context.Context, text string) (bool, error) {
	a.mu.Lock()
	a.goodbyeChecks = append(a.goodbyeChecks, text)
	a.mu.Unlock()
	if a.GoodbyeDelay != nil {
		if err := a.GoodbyeDelay(ctx); err != nil {
			return false, err
		}
	}
	return a.GoodbyeResult, a.GoodbyeErr
}

// CancelCurrentTask implements agent.Agent.
func (a *Agent) CancelCurrentTask() bool {
	a.mu.Lock()
	a.cancelCalls++
	a.mu.Unlock()
	return a.loop.CancelCurrent()
}

// AttachTranscript implements agent.Agent.
func (a *Agent) AttachTranscript(t *transcript.Transcript) { a.transcript = t }

// SetEventRegistry implements agent.Agent.
func (a *Agent) SetEventRegistry(r *worker.Registry) { a.registry = r }

// VectorMemory implements agent.Agent.
func (a *Agent) VectorMemory() memory.Store { return a.Memory }

func (a *Agent) process(ctx context.Context, ev *worker.Event[agent.Input]) {
	a.mu.Lock()
	a.inputs = append(a.inputs, ev.Payload)
	responses := a.Responses
	a.mu.Unlock()

	if in := ev.Payload; in.Transcription != nil && a.transcript != nil {
		a.transcript.AddHumanMessage(in.Transcription.Message)
	}

	for i, resp := range responses {
		if ctx.Err() != nil {
			return
		}
		var tracker *worker.Tracker
		if i == len(responses)-1 {
			tracker = ev.Tracker()
		}
		a.out.Put(worker.Register(a.registry, resp,
			worker.WithInterruptible(a.Cfg.AllowAgentToBeCutOff),
			worker.WithTracker(tracker)))
	}
}

// Inputs returns the consumed inputs.
func (a *Agent) Inputs() []agent.Input {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]agent.Input, len(a.inputs))
	copy(out, a.inputs)
	return out
}

// CutOffTexts returns the texts passed to UpdateLastBotMessageOnCutOff.
func (a *Agent) CutOffTexts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.cutOffTexts))
	copy(out, a.cutOffTexts)
	return out
}

// GoodbyeChecks returns the texts passed to DetectGoodbye.
func (a *Agent) GoodbyeChecks() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.goodbyeChecks))
	copy(out, a.goodbyeChecks)
	return out
}

// CancelCalls returns how often CancelCurrentTask was invoked.
func (a *Agent) CancelCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelCalls
}

// TerminateCalls reports whether Terminate has run.
func (a *Agent) TerminateCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.terminated
}
