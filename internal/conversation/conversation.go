// Package conversation orchestrates one real-time voice conversation: audio
// in through the transcriber, finalized utterances through the agent, reply
// sentences through the synthesizer, and paced audio out through the output
// device — all interruptible the moment the human starts speaking.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/colloquy-ai/colloquy/internal/agent"
	"github.com/colloquy-ai/colloquy/internal/events"
	"github.com/colloquy-ai/colloquy/internal/observe"
	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/outputdevice"
	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
	"github.com/colloquy-ai/colloquy/pkg/sentiment"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
	"github.com/colloquy-ai/colloquy/pkg/transcriber"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

// Pacing defaults.
const (
	defaultPerChunkAllowanceSeconds = 0.01
	defaultSecondsPerChunk          = 1.0
)

// SynthesisSpan pairs a reply sentence with its synthesis result on the way
// to the emitter.
type SynthesisSpan struct {
	Message string
	Result  *synthesizer.SynthesisResult
}

// Conversation owns one end-to-end voice conversation. Construct with New,
// run with Start, stop with Terminate. All methods are safe for concurrent
// use.
type Conversation struct {
	id      string
	logger  *slog.Logger
	metrics *observe.Metrics

	transcriber transcriber.Transcriber
	agent       agent.Agent
	synth       synthesizer.Synthesizer
	output      outputdevice.Device

	events     *events.Manager
	transcript *transcript.Transcript
	registry   *worker.Registry
	random     *randomAudioManager
	emitter    *emitter
	analyser   sentiment.Analyser
	bank       *phrasebook.Bank

	transcriptionQueue *worker.Queue[transcriber.Transcription]
	synthesisQueue     *worker.Queue[*worker.Event[SynthesisSpan]]

	transcriptionsWorker *worker.QueueWorker[transcriber.Transcription]
	agentResponsesWorker *worker.InterruptibleWorker[agent.Response]
	synthesisWorker      *worker.InterruptibleWorker[SynthesisSpan]
	actionsWorker        *agent.ActionsWorker

	active              atomic.Bool
	lastActionTimestamp atomic.Int64
	botSentiment        atomic.Pointer[sentiment.BotSentiment]

	// Owned by the transcriptions stage; never touched elsewhere.
	isHumanSpeaking                 bool
	currentTranscriptionIsInterrupt bool

	perChunkAllowance     float64
	secondsPerChunk       float64
	chunkSize             int
	fillerSilenceThreshold time.Duration

	runCtx     context.Context
	runCancel  context.CancelFunc
	loopCancel context.CancelFunc

	terminateOnce sync.Once
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithID sets the conversation ID; the default is a random UUID.
func WithID(id string) Option {
	return func(c *Conversation) { c.id = id }
}

// WithLogger sets the conversation's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics instruments; the default records nothing
// unless a global meter provider is installed.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Conversation) { c.metrics = m }
}

// WithEventsManager attaches an events manager for transcript and action
// event fan-out.
func WithEventsManager(m *events.Manager) Option {
	return func(c *Conversation) { c.events = m }
}

// WithPhraseBank supplies prefetched ambient phrase audio.
func WithPhraseBank(b *phrasebook.Bank) Option {
	return func(c *Conversation) { c.bank = b }
}

// WithSentimentAnalyser enables the sentiment loop when the agent config
// tracks sentiment.
func WithSentimentAnalyser(a sentiment.Analyser) Option {
	return func(c *Conversation) { c.analyser = a }
}

// WithPerChunkAllowance overrides the per-chunk pacing allowance in seconds.
func WithPerChunkAllowance(seconds float64) Option {
	return func(c *Conversation) {
		if seconds > 0 {
			c.perChunkAllowance = seconds
		}
	}
}

// WithSecondsPerChunk overrides the nominal playback time of one chunk.
func WithSecondsPerChunk(seconds float64) Option {
	return func(c *Conversation) {
		if seconds > 0 {
			c.secondsPerChunk = seconds
		}
	}
}

// WithFillerSilenceThreshold overrides how long filler audio waits before
// speaking.
func WithFillerSilenceThreshold(d time.Duration) Option {
	return func(c *Conversation) {
		if d > 0 {
			c.fillerSilenceThreshold = d
		}
	}
}

// New assembles a conversation around the four referenced providers. The
// conversation brackets their lifecycles but does not own them; it does own
// every queue, worker, and the transcript.
func New(tr transcriber.Transcriber, ag agent.Agent, synth synthesizer.Synthesizer, out outputdevice.Device, opts ...Option) *Conversation {
	c := &Conversation{
		id:                uuid.New().String(),
		logger:            slog.Default(),
		transcriber:       tr,
		agent:             ag,
		synth:             synth,
		output:            out,
		registry:          worker.NewRegistry(),
		perChunkAllowance: defaultPerChunkAllowanceSeconds,
		secondsPerChunk:   defaultSecondsPerChunk,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("conversation", c.id)
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	var publisher transcript.Publisher
	if c.events != nil {
		publisher = c.events
	}
	c.transcript = transcript.New(c.id, publisher)

	synthCfg := synth.Config()
	c.chunkSize = int(c.secondsPerChunk * float64(audio.BytesPerSecond(synthCfg.AudioEncoding, synthCfg.SamplingRate)))

	c.emitter = &emitter{
		output:            out,
		transcriber:       tr,
		secondsPerChunk:   c.secondsPerChunk,
		perChunkAllowance: c.perChunkAllowance,
		chunkSize:         c.chunkSize,
		stampAction:       c.stampAction,
		logger:            c.logger,
		metrics:           c.metrics,
	}
	c.random = newRandomAudioManager(c.bank, c.emitter, synthCfg, c.fillerSilenceThreshold, c.logger)

	c.transcriptionQueue = worker.NewQueue[transcriber.Transcription]()
	c.synthesisQueue = worker.NewQueue[*worker.Event[SynthesisSpan]]()

	c.transcriptionsWorker = worker.NewQueueWorker(c.transcriptionQueue, c.processTranscription)
	c.agentResponsesWorker = worker.NewInterruptibleWorker(ag.OutputQueue(), c.processAgentResponse)
	c.synthesisWorker = worker.NewInterruptibleWorker(c.synthesisQueue, c.processSynthesisResult)
	c.actionsWorker = agent.NewActionsWorker(c.id, ag.ActionsQueue(), ag.ActionFactory(), c.transcript, c.registry, ag.InputQueue(), c.logger)

	ag.AttachTranscript(c.transcript)
	ag.SetEventRegistry(c.registry)
	return c
}

// ID returns the conversation ID.
func (c *Conversation) ID() string { return c.id }

// Active reports whether the conversation is running.
func (c *Conversation) Active() bool { return c.active.Load() }

// Transcript returns the conversation transcript.
func (c *Conversation) Transcript() *transcript.Transcript { return c.transcript }

// BotSentiment returns a copy of the current sentiment snapshot, if any.
func (c *Conversation) BotSentiment() *sentiment.BotSentiment {
	return c.botSentiment.Load()
}

// Start opens the providers, launches the pipeline, speaks the initial
// message, and returns once the conversation is running. A provider failure
// fails the start; Terminate cleans up whatever was already running.
func (c *Conversation) Start(ctx context.Context) error {
	c.runCtx, c.runCancel = context.WithCancel(context.WithoutCancel(ctx))

	if err := c.transcriber.Start(c.runCtx); err != nil {
		return fmt.Errorf("conversation: start transcriber: %w", err)
	}
	if err := c.synth.Ready(ctx); err != nil {
		return fmt.Errorf("conversation: synthesizer not ready: %w", err)
	}
	if err := c.output.Start(c.runCtx); err != nil {
		return fmt.Errorf("conversation: start output device: %w", err)
	}

	if c.events != nil {
		c.events.Start(c.runCtx)
		if consumer, ok := c.output.(outputdevice.TranscriptConsumer); ok {
			c.events.Subscribe(events.HandlerFunc(func(event types.Event) {
				if te, ok := event.(types.TranscriptEvent); ok {
					consumer.ConsumeTranscript(te)
				}
			}), types.EventTranscript)
		}
	}

	c.agent.Start(c.runCtx)
	c.transcriptionsWorker.Start(c.runCtx)
	c.agentResponsesWorker.Start(c.runCtx)
	c.synthesisWorker.Start(c.runCtx)
	c.actionsWorker.Start(c.runCtx)

	// Pump transcriber results into the transcriptions stage.
	go func() {
		for t := range c.transcriber.Results() {
			c.transcriptionQueue.Put(t)
		}
	}()

	c.active.Store(true)
	c.stampAction()
	c.metrics.ActiveConversations.Add(ctx, 1)
	c.logger.Info("conversation started")

	acfg := c.agent.Config()
	if acfg.InitialMessage != "" {
		tracker := worker.NewTracker()
		greeting := worker.Register[agent.Response](c.registry,
			agent.ResponseMessage{Message: acfg.InitialMessage, IsFirst: true, IsSoleTextChunk: true},
			worker.NonInterruptible(),
			worker.WithTracker(tracker))
		c.agent.OutputQueue().Put(greeting)

		select {
		case <-tracker.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var loopCtx context.Context
	loopCtx, c.loopCancel = context.WithCancel(c.runCtx)
	go c.runIdleWatchdog(loopCtx)
	if acfg.TrackBotSentiment && c.analyser != nil && c.synth.Config().Sentiment != nil {
		go c.runSentimentLoop(loopCtx)
	}
	return nil
}

// ReceiveAudio forwards one chunk of caller audio to the transcriber. Chunks
// received while inactive are dropped.
func (c *Conversation) ReceiveAudio(chunk []byte) {
	if !c.active.Load() {
		return
	}
	c.transcriber.SendAudio(chunk)
}

// ReceiveMessage injects text as if it were a final transcription, for
// text-based front ends.
func (c *Conversation) ReceiveMessage(text string) {
	if !c.active.Load() {
		return
	}
	c.transcriptionQueue.Put(transcriber.Transcription{
		Message:    text,
		Confidence: 1,
		IsFinal:    true,
	})
}

// BroadcastInterrupt drains the interrupt registry, cancels the agent's
// in-flight turn and the response stage's in-flight task, and reports
// whether any event accepted the interruption.
func (c *Conversation) BroadcastInterrupt() bool {
	interrupted := c.registry.InterruptAll()
	c.agent.CancelCurrentTask()
	c.agentResponsesWorker.CancelCurrent()
	if interrupted > 0 {
		c.metrics.Interrupts.Add(context.Background(), 1)
		c.logger.Debug("broadcast interrupt", "events", interrupted)
	}
	return interrupted > 0
}

// Terminate stops the conversation and releases every owned resource.
// Idempotent; cleanup failures are logged and never abort the teardown.
func (c *Conversation) Terminate() {
	c.terminateOnce.Do(func() {
		c.active.Store(false)
		c.logger.Info("conversation terminating")

		c.BroadcastInterrupt()
		c.transcript.Complete()
		if c.loopCancel != nil {
			c.loopCancel()
		}
		if c.events != nil {
			c.events.Flush()
		}

		if err := c.synth.TearDown(); err != nil {
			c.logger.Error("synthesizer teardown failed", "error", err)
		}
		if mem := c.agent.VectorMemory(); mem != nil {
			if err := mem.TearDown(); err != nil {
				c.logger.Error("vector memory teardown failed", "error", err)
			}
		}
		if err := c.agent.Terminate(); err != nil {
			c.logger.Error("agent terminate failed", "error", err)
		}
		if err := c.output.Terminate(); err != nil {
			c.logger.Error("output device terminate failed", "error", err)
		}
		if err := c.transcriber.Terminate(); err != nil {
			c.logger.Error("transcriber terminate failed", "error", err)
		}

		c.transcriptionsWorker.Terminate()
		c.agentResponsesWorker.Terminate()
		c.synthesisWorker.Terminate()
		c.random.Terminate()
		c.actionsWorker.Terminate()

		c.metrics.ActiveConversations.Add(context.Background(), -1)
		if c.runCancel != nil {
			c.runCancel()
		}
		c.logger.Info("conversation terminated")
	})
}

// stampAction refreshes the last-activity timestamp read by the idle
// watchdog.
func (c *Conversation) stampAction() {
	c.lastActionTimestamp.Store(time.Now().UnixNano())
}

func (c *Conversation) sinceLastAction() time.Duration {
	return time.Since(time.Unix(0, c.lastActionTimestamp.Load()))
}
