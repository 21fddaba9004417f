package conversation

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
)

// audioStream identifies one of the three ambient audio streams.
type audioStream int

const (
	streamFiller audioStream = iota
	streamBackTracking
	streamFollowUp
	numStreams
)

func (s audioStream) String() string {
	switch s {
	case streamFiller:
		return "filler"
	case streamBackTracking:
		return "back_tracking"
	case streamFollowUp:
		return "follow_up"
	}
	return "unknown"
}

// defaultFillerSilenceThreshold is how long the filler stream waits before
// speaking, so a fast reply never collides with thinking noise.
const defaultFillerSilenceThreshold = 500 * time.Millisecond

// randomAudioManager plays the three ambient streams: filler while the agent
// thinks, back-tracking acknowledgements on interruption, and follow-up
// prompts after a reply. At most one stream plays at any moment; starting
// one stops the others.
type randomAudioManager struct {
	bank            *phrasebook.Bank
	emitter         *emitter
	synthCfg        synthesizer.Config
	fillerThreshold time.Duration
	logger          *slog.Logger

	mu         sync.Mutex
	stops      [numStreams]*worker.Signal
	terminated bool

	wg sync.WaitGroup
}

func newRandomAudioManager(bank *phrasebook.Bank, em *emitter, synthCfg synthesizer.Config, fillerThreshold time.Duration, logger *slog.Logger) *randomAudioManager {
	if fillerThreshold <= 0 {
		fillerThreshold = defaultFillerSilenceThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &randomAudioManager{
		bank:            bank,
		emitter:         em,
		synthCfg:        synthCfg,
		fillerThreshold: fillerThreshold,
		logger:          logger,
	}
}

// SendFiller starts the filler stream after the silence threshold.
func (m *randomAudioManager) SendFiller(tracker *worker.Tracker) {
	m.send(streamFiller, m.phrases(streamFiller), tracker, m.fillerThreshold)
}

// SendBackTracking plays one acknowledgement phrase.
func (m *randomAudioManager) SendBackTracking(tracker *worker.Tracker) {
	m.send(streamBackTracking, m.phrases(streamBackTracking), tracker, 0)
}

// SendFollowUp plays one follow-up phrase.
func (m *randomAudioManager) SendFollowUp(tracker *worker.Tracker) {
	m.send(streamFollowUp, m.phrases(streamFollowUp), tracker, 0)
}

// StopFiller stops the filler stream if it is playing or waiting.
func (m *randomAudioManager) StopFiller() { m.stop(streamFiller) }

// StopBackTracking stops the back-tracking stream.
func (m *randomAudioManager) StopBackTracking() { m.stop(streamBackTracking) }

// StopFollowUp stops the follow-up stream.
func (m *randomAudioManager) StopFollowUp() { m.stop(streamFollowUp) }

// StopAll stops every stream.
func (m *randomAudioManager) StopAll() {
	m.mu.Lock()
	m.stopAllLocked()
	m.mu.Unlock()
}

// Terminate stops every stream and waits for playback goroutines to exit.
// Idempotent.
func (m *randomAudioManager) Terminate() {
	m.mu.Lock()
	m.terminated = true
	m.stopAllLocked()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *randomAudioManager) phrases(s audioStream) []phrasebook.PhraseAudio {
	if m.bank == nil {
		return nil
	}
	switch s {
	case streamFiller:
		return m.bank.Filler
	case streamBackTracking:
		return m.bank.BackTracking
	case streamFollowUp:
		return m.bank.FollowUp
	}
	return nil
}

// send starts stream s with a random phrase, stopping any other stream
// first. With no phrase audio available the tracker resolves immediately.
func (m *randomAudioManager) send(s audioStream, phrases []phrasebook.PhraseAudio, tracker *worker.Tracker, delay time.Duration) {
	resolve := func() {
		if tracker != nil {
			tracker.Resolve()
		}
	}
	if len(phrases) == 0 {
		resolve()
		return
	}

	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		resolve()
		return
	}
	m.stopAllLocked()
	stop := worker.NewSignal()
	m.stops[s] = stop
	m.wg.Add(1)
	m.mu.Unlock()

	phrase := phrases[rand.IntN(len(phrases))]

	go func() {
		defer m.wg.Done()
		defer resolve()

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-stop.Done():
				timer.Stop()
				return
			}
		}
		if stop.IsSet() {
			return
		}

		result := synthesizer.ResultFromAudio(phrase.Text, phrase.Audio, m.emitter.chunkSize, m.synthCfg, true)
		m.logger.Debug("playing random audio", "stream", s.String(), "phrase", phrase.Text)
		m.emitter.sendSpeechToOutput(context.Background(), phrase.Text, result, stop, nil, nil)
	}()
}

func (m *randomAudioManager) stop(s audioStream) {
	m.mu.Lock()
	if sig := m.stops[s]; sig != nil {
		sig.Set()
		m.stops[s] = nil
	}
	m.mu.Unlock()
}

func (m *randomAudioManager) stopAllLocked() {
	for i := range m.stops {
		if sig := m.stops[i]; sig != nil {
			sig.Set()
			m.stops[i] = nil
		}
	}
}
