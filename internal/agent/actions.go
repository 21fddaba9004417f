package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/llm"
)

// Action is a capability the model may invoke as a function call.
// Implementations must be safe for concurrent use; the actions worker runs
// one call at a time per conversation but the same Action value may serve
// several conversations.
type Action interface {
	// Name is the function name offered to the model. Must be unique within
	// a factory.
	Name() string

	// Description tells the model what the action does.
	Description() string

	// Parameters is the JSON Schema of the action's input.
	Parameters() map[string]any

	// Run executes the action. input is the model's JSON arguments string;
	// the returned output is fed back to the model verbatim.
	Run(ctx context.Context, input string) (string, error)
}

// ActionFactory is the registry of runnable actions.
type ActionFactory struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewActionFactory returns a factory holding the given actions.
func NewActionFactory(actions ...Action) *ActionFactory {
	f := &ActionFactory{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		f.actions[a.Name()] = a
	}
	return f
}

// Register adds an action. It returns an error on a duplicate name.
func (f *ActionFactory) Register(a Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.actions[a.Name()]; exists {
		return fmt.Errorf("agent: action %q already registered", a.Name())
	}
	f.actions[a.Name()] = a
	return nil
}

// Get returns the action registered under name.
func (f *ActionFactory) Get(name string) (Action, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.actions[name]
	return a, ok
}

// Definitions renders the registered actions as function definitions for the
// LLM request, sorted by name for stable prompts.
func (f *ActionFactory) Definitions() []llm.FunctionDefinition {
	f.mu.RLock()
	defer f.mu.RUnlock()
	defs := make([]llm.FunctionDefinition, 0, len(f.actions))
	for _, a := range f.actions {
		defs = append(defs, llm.FunctionDefinition{
			Name:        a.Name(),
			Description: a.Description(),
			Parameters:  a.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Len returns the number of registered actions.
func (f *ActionFactory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.actions)
}

// ActionsWorker executes the function calls the model requests. Each call is
// logged to the transcript as an action-start before running and an
// action-finish after, then fed back into the agent's input queue as an
// action result so the model can phrase a reply around it.
type ActionsWorker struct {
	conversationID string
	factory        *ActionFactory
	transcript     *transcript.Transcript
	registry       *worker.Registry
	agentIn        *worker.Queue[*worker.Event[Input]]
	logger         *slog.Logger

	worker *worker.InterruptibleWorker[llm.FunctionCall]
}

// NewActionsWorker wires an actions worker to its call queue and the agent's
// input queue.
func NewActionsWorker(
	conversationID string,
	calls *worker.Queue[*worker.Event[llm.FunctionCall]],
	factory *ActionFactory,
	tr *transcript.Transcript,
	registry *worker.Registry,
	agentIn *worker.Queue[*worker.Event[Input]],
	logger *slog.Logger,
) *ActionsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &ActionsWorker{
		conversationID: conversationID,
		factory:        factory,
		transcript:     tr,
		registry:       registry,
		agentIn:        agentIn,
		logger:         logger,
	}
	w.worker = worker.NewInterruptibleWorker(calls, w.run)
	return w
}

// Start launches the consume loop.
func (w *ActionsWorker) Start(ctx context.Context) {
	w.worker.Start(ctx)
}

// Terminate stops the loop, waiting for the in-flight action. Idempotent.
func (w *ActionsWorker) Terminate() {
	w.worker.Terminate()
}

func (w *ActionsWorker) run(ctx context.Context, ev *worker.Event[llm.FunctionCall]) {
	call := ev.Payload
	action, ok := w.factory.Get(call.Name)
	if !ok {
		w.logger.Error("model requested unknown action", "action", call.Name)
		return
	}

	w.transcript.AddActionStart(call.Name, call.Arguments)
	w.logger.Debug("running action", "action", call.Name)

	output, err := action.Run(ctx, call.Arguments)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted mid-action; the turn it belonged to is gone.
			return
		}
		w.logger.Error("action failed", "action", call.Name, "error", err)
		output = fmt.Sprintf("the action failed: %v", err)
	}

	w.transcript.AddActionFinish(call.Name, call.Arguments, output)

	result := Input{
		ConversationID: w.conversationID,
		ActionResult: &ActionResult{
			ActionType:  call.Name,
			ActionInput: call.Arguments,
			Output:      output,
		},
	}
	w.agentIn.Put(worker.Register(w.registry, result,
		worker.WithInterruptible(ev.Interruptible()),
		worker.WithTracker(ev.Tracker())))
}
