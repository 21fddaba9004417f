package conversation

import (
	"context"
	"time"

	"github.com/colloquy-ai/colloquy/internal/agent"
)

// idleTick is how often the idle watchdog samples the last-activity
// timestamp.
const idleTick = 15 * time.Second

// sentimentTick is how often the sentiment loop re-samples the transcript.
const sentimentTick = 1 * time.Second

// runIdleWatchdog terminates the conversation once nothing has happened for
// the allowed idle time.
func (c *Conversation) runIdleWatchdog(ctx context.Context) {
	allowed := c.agent.Config().AllowedIdleTime
	if allowed <= 0 {
		allowed = agent.DefaultAllowedIdleTime
	}

	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.active.Load() {
				return
			}
			if idle := c.sinceLastAction(); idle > allowed {
				c.logger.Info("conversation idle, terminating", "idle", idle)
				c.Terminate()
				return
			}
		}
	}
}

// runSentimentLoop re-analyses the transcript whenever it changes and stores
// the result as the bot-sentiment snapshot. Single writer; analyser errors
// are logged and the loop keeps ticking.
func (c *Conversation) runSentimentLoop(ctx context.Context) {
	var lastSeen string

	ticker := time.NewTicker(sentimentTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.active.Load() {
				return
			}
			rendered := c.transcript.String()
			if rendered == "" || rendered == lastSeen {
				continue
			}
			snapshot, err := c.analyser.Analyse(ctx, rendered)
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("sentiment analysis failed", "error", err)
				}
				continue
			}
			lastSeen = rendered
			c.botSentiment.Store(&snapshot)
			c.logger.Debug("bot sentiment updated", "emotion", snapshot.Emotion, "degree", snapshot.Degree)
		}
	}
}
