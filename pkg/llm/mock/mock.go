// Package mock provides a scriptable test double for the llm package.
package mock

import (
	"context"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/llm"
)

// Provider is a mock implementation of llm.Provider. Successive
// StreamCompletion calls serve successive entries of Streams; Complete serves
// Responses the same way. Every request is recorded.
type Provider struct {
	mu sync.Mutex

	// Streams holds the chunk sequences served by StreamCompletion, one per
	// call. Calls beyond the scripted entries replay the last entry; an
	// empty script yields an immediately closed channel.
	Streams [][]llm.Chunk

	// StreamErr, if non-nil, is returned by every StreamCompletion call.
	StreamErr error

	// Responses holds the responses served by Complete, one per call, with
	// the same replay rule as Streams.
	Responses []*llm.CompletionResponse

	// CompleteErr, if non-nil, is returned by every Complete call.
	CompleteErr error

	// StreamDelay, if set, is called before each chunk is emitted. Tests use
	// it to block a stream until interrupted.
	StreamDelay func(ctx context.Context) error

	// StreamRequests and CompleteRequests record every request received.
	StreamRequests   []llm.CompletionRequest
	CompleteRequests []llm.CompletionRequest

	streamCalls   int
	completeCalls int
}

var _ llm.Provider = (*Provider)(nil)

// WithStream appends one scripted chunk sequence and returns the provider,
// for chained setup.
func (p *Provider) WithStream(chunks ...llm.Chunk) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Streams = append(p.Streams, chunks)
	return p
}

// WithTextStream appends a scripted stream emitting each text as one chunk,
// finishing with "stop".
func (p *Provider) WithTextStream(texts ...string) *Provider {
	chunks := make([]llm.Chunk, 0, len(texts)+1)
	for _, t := range texts {
		chunks = append(chunks, llm.Chunk{Text: t})
	}
	chunks = append(chunks, llm.Chunk{FinishReason: "stop"})
	return p.WithStream(chunks...)
}

// StreamCompletion records the request and serves the next scripted stream.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamRequests = append(p.StreamRequests, req)
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	var script []llm.Chunk
	if len(p.Streams) > 0 {
		idx := min(p.streamCalls, len(p.Streams)-1)
		script = p.Streams[idx]
	}
	p.streamCalls++
	delay := p.StreamDelay
	p.mu.Unlock()

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for _, chunk := range script {
			if delay != nil {
				if err := delay(ctx); err != nil {
					return
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Complete records the request and serves the next scripted response.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteRequests = append(p.CompleteRequests, req)
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	idx := min(p.completeCalls, len(p.Responses)-1)
	p.completeCalls++
	return p.Responses[idx], nil
}

// StreamCallCount returns the number of StreamCompletion calls. Thread-safe.
func (p *Provider) StreamCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCalls
}

// CompleteCallCount returns the number of Complete calls. Thread-safe.
func (p *Provider) CompleteCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completeCalls
}
