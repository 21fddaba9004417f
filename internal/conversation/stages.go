package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/colloquy-ai/colloquy/internal/agent"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/transcriber"
)

// processTranscription is the Transcriptions stage: gate on content and
// confidence, run the interruption protocol on fresh speech, and forward
// finalized utterances to the agent. isHumanSpeaking and
// currentTranscriptionIsInterrupt are owned here.
func (c *Conversation) processTranscription(ctx context.Context, t transcriber.Transcription) {
	c.stampAction()
	if strings.TrimSpace(t.Message) == "" {
		return
	}
	c.metrics.RecordTranscription(ctx, t.IsFinal)

	cfg := c.transcriber.Config()
	confident := t.Confidence >= cfg.MinInterruptConfidence
	if !c.isHumanSpeaking && confident {
		c.currentTranscriptionIsInterrupt = c.BroadcastInterrupt()
		c.random.StopFiller()
		c.random.StopFollowUp()
		if c.agent.Config().SendBackTrackingAudio && c.currentTranscriptionIsInterrupt {
			c.random.SendBackTracking(nil)
		}
	}

	t.IsInterrupt = c.currentTranscriptionIsInterrupt
	// Low-confidence partials read as noise, not speech, so a later
	// confident partial can still interrupt.
	if confident || t.IsFinal {
		c.isHumanSpeaking = !t.IsFinal
	}

	if !t.IsFinal {
		return
	}
	in := agent.Input{ConversationID: c.id, Transcription: &t}
	c.agent.InputQueue().Put(worker.Register(c.registry, in))
}

// processAgentResponse is the AgentResponses stage: ambient audio requests
// go to the random-audio manager, messages go through synthesis, Stop tears
// the conversation down. ctx is cancelled when the event is interrupted.
func (c *Conversation) processAgentResponse(ctx context.Context, ev *worker.Event[agent.Response]) {
	switch resp := ev.Payload.(type) {
	case agent.ResponseFillerAudio:
		c.random.SendFiller(ev.Tracker())

	case agent.ResponseBackTrackingAudio:
		c.random.SendBackTracking(ev.Tracker())

	case agent.ResponseFollowUpAudio:
		c.random.SendFollowUp(ev.Tracker())

	case agent.ResponseStop:
		if tr := ev.Tracker(); tr != nil {
			tr.Resolve()
		}
		go c.Terminate()

	case agent.ResponseEndOfTurn:
		if tr := ev.Tracker(); tr != nil {
			tr.Resolve()
		}

	case agent.ResponseMessage:
		c.random.StopBackTracking()
		c.random.StopFollowUp()

		start := time.Now()
		result, err := c.synth.CreateSpeech(ctx, resp.Message, c.chunkSize, c.botSentiment.Load())
		c.random.StopFiller()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("synthesis failed, dropping sentence", "error", err)
				c.metrics.RecordDroppedItem(ctx, "agent_responses")
			}
			if tr := ev.Tracker(); tr != nil {
				tr.Resolve()
			}
			return
		}
		c.metrics.RecordSynthesis(ctx, time.Since(start).Seconds(), result.Cached)
		c.metrics.Sentences.Add(ctx, 1)

		span := SynthesisSpan{Message: resp.Message, Result: result}
		c.synthesisQueue.Put(worker.Register(c.registry, span,
			worker.WithInterruptible(ev.Interruptible()),
			worker.WithTracker(ev.Tracker())))

	default:
		c.logger.Error("unknown agent response type dropped")
		c.metrics.RecordDroppedItem(ctx, "agent_responses")
	}
}

// processSynthesisResult is the SynthesisResults stage: append a live bot
// entry, play the audio at pace, publish what was actually spoken, and run
// the goodbye and follow-up follow-ons.
func (c *Conversation) processSynthesisResult(ctx context.Context, ev *worker.Event[SynthesisSpan]) {
	span := ev.Payload
	if span.Result == nil {
		// A span without a result cannot happen through the response stage;
		// treat it as corruption and shut the conversation down.
		c.logger.Error("synthesis span without result, terminating")
		go c.Terminate()
		return
	}

	tm := c.transcript.AddBotMessage("")
	messageSent, cutOff := c.emitter.sendSpeechToOutput(ctx, span.Message, span.Result, ev.Interruption(), tm, nil)
	c.transcript.PublishMessage(tm)
	if tr := ev.Tracker(); tr != nil {
		tr.Resolve()
	}
	if cutOff {
		c.agent.UpdateLastBotMessageOnCutOff(messageSent)
		c.logger.Debug("utterance cut off", "spoken", messageSent)
	}

	acfg := c.agent.Config()
	if acfg.EndConversationOnGoodbye && c.detectGoodbye(messageSent, acfg.GoodbyeTimeout) {
		c.logger.Info("goodbye detected, terminating", "message", messageSent)
		go c.Terminate()
		return
	}

	if acfg.SendFollowUpAudio && !cutOff {
		c.agent.OutputQueue().Put(worker.Register[agent.Response](c.registry,
			agent.ResponseFollowUpAudio{}))
	}
}

// detectGoodbye races the agent's goodbye detector against the configured
// budget. Timeouts and errors read as "no goodbye".
func (c *Conversation) detectGoodbye(text string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = agent.DefaultGoodbyeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resultCh := make(chan bool, 1)
	go func() {
		goodbye, err := c.agent.DetectGoodbye(ctx, text)
		resultCh <- err == nil && goodbye
	}()

	select {
	case goodbye := <-resultCh:
		return goodbye
	case <-ctx.Done():
		return false
	}
}
