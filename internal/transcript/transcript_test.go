package transcript

import (
	"strings"
	"sync"
	"testing"

	"github.com/colloquy-ai/colloquy/pkg/llm"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
}

func (p *recordingPublisher) Publish(event types.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []types.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Event, len(p.events))
	copy(out, p.events)
	return out
}

func TestTranscript_HumanMessagesPublishImmediately(t *testing.T) {
	pub := &recordingPublisher{}
	tr := New("conv-1", pub)

	tr.AddHumanMessage("hello there")

	events := pub.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev, ok := events[0].(types.TranscriptEvent)
	if !ok {
		t.Fatalf("event type = %T, want TranscriptEvent", events[0])
	}
	if ev.Sender != types.SenderHuman || ev.Text != "hello there" {
		t.Errorf("event = %+v", ev)
	}
	if ev.ConversationID() != "conv-1" {
		t.Errorf("conversation = %q, want conv-1", ev.ConversationID())
	}
}

func TestTranscript_BotMessagesPublishAfterSpoken(t *testing.T) {
	pub := &recordingPublisher{}
	tr := New("conv-1", pub)

	m := tr.AddBotMessage("")
	if got := len(pub.Events()); got != 0 {
		t.Fatalf("bot message published before being spoken: %d events", got)
	}

	// The emitter fills the entry in as audio plays, then publishes.
	m.SetText("How can I help?")
	tr.PublishMessage(m)

	events := pub.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0].(types.TranscriptEvent)
	if ev.Sender != types.SenderBot || ev.Text != "How can I help?" {
		t.Errorf("event = %+v", ev)
	}
}

func TestTranscript_UpdateLastBotMessage(t *testing.T) {
	tr := New("conv-1", nil)

	tr.AddBotMessage("first reply")
	tr.AddHumanMessage("wait")
	last := tr.AddBotMessage("this full sentence was never finished")

	if !tr.UpdateLastBotMessage("this full sen-") {
		t.Fatal("UpdateLastBotMessage returned false")
	}
	if got := last.Text(); got != "this full sen-" {
		t.Errorf("last bot text = %q", got)
	}

	entries := tr.Entries()
	if got := entries[0].(*Message).Text(); got != "first reply" {
		t.Errorf("earlier bot entry rewritten: %q", got)
	}
}

func TestTranscript_UpdateLastBotMessageNoBotEntries(t *testing.T) {
	tr := New("conv-1", nil)
	tr.AddHumanMessage("hello")
	if tr.UpdateLastBotMessage("x") {
		t.Error("UpdateLastBotMessage succeeded without any bot entry")
	}
}

func TestTranscript_ActionEvents(t *testing.T) {
	pub := &recordingPublisher{}
	tr := New("conv-1", pub)

	tr.AddActionStart("weather_lookup", `{"city":"Berlin"}`)
	if got := len(pub.Events()); got != 0 {
		t.Fatalf("action start published: %d events", got)
	}

	tr.AddActionFinish("weather_lookup", `{"city":"Berlin"}`, "sunny, 24C")

	events := pub.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev, ok := events[0].(types.ActionEvent)
	if !ok {
		t.Fatalf("event type = %T, want ActionEvent", events[0])
	}
	if ev.ActionType != "weather_lookup" || ev.ActionOutput != "sunny, 24C" {
		t.Errorf("event = %+v", ev)
	}
}

func TestTranscript_StringAndComplete(t *testing.T) {
	pub := &recordingPublisher{}
	tr := New("conv-1", pub)

	tr.AddHumanMessage("what's the weather?")
	tr.AddActionStart("weather_lookup", "Berlin")
	tr.AddActionFinish("weather_lookup", "Berlin", "sunny")
	m := tr.AddBotMessage("It is sunny.")
	tr.PublishMessage(m)

	rendered := tr.String()
	for _, want := range []string{"HUMAN: what's the weather?", "weather_lookup", "BOT: It is sunny."} {
		if !strings.Contains(rendered, want) {
			t.Errorf("String() missing %q:\n%s", want, rendered)
		}
	}

	tr.Complete()
	events := pub.Events()
	last, ok := events[len(events)-1].(types.TranscriptCompleteEvent)
	if !ok {
		t.Fatalf("last event type = %T, want TranscriptCompleteEvent", events[len(events)-1])
	}
	if last.Transcript != rendered {
		t.Errorf("complete transcript differs from String()")
	}
}

func TestRender_MergesConsecutiveBotMessages(t *testing.T) {
	tr := New("conv-1", nil)
	tr.AddHumanMessage("tell me a story")
	tr.AddBotMessage("Once upon a time.")
	tr.AddBotMessage("There was a dragon.")
	tr.AddHumanMessage("go on")
	tr.AddBotMessage("It hoarded gold.")

	msgs := Render(tr, RenderOptions{})
	want := []llm.Message{
		{Role: llm.RoleUser, Content: "tell me a story"},
		{Role: llm.RoleAssistant, Content: "Once upon a time. There was a dragon."},
		{Role: llm.RoleUser, Content: "go on"},
		{Role: llm.RoleAssistant, Content: "It hoarded gold."},
	}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d, want %d:\n%+v", len(msgs), len(want), msgs)
	}
	for i := range want {
		if msgs[i].Role != want[i].Role || msgs[i].Content != want[i].Content {
			t.Errorf("message %d = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}

func TestRender_SkipsEmptyAndKeepsUserSeparate(t *testing.T) {
	tr := New("conv-1", nil)
	tr.AddHumanMessage("one")
	tr.AddBotMessage("") // scheduled but never spoken
	tr.AddHumanMessage("two")

	msgs := Render(tr, RenderOptions{})
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2: %+v", len(msgs), msgs)
	}
	if msgs[0].Content != "one" || msgs[1].Content != "two" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRender_ActionsBecomeFunctionMessages(t *testing.T) {
	tr := New("conv-1", nil)
	tr.AddHumanMessage("what's the weather in Berlin?")
	tr.AddActionStart("weather_lookup", `{"city":"Berlin"}`)
	tr.AddActionFinish("weather_lookup", `{"city":"Berlin"}`, "sunny")
	tr.AddBotMessage("It's sunny in Berlin.")

	msgs := Render(tr, RenderOptions{})
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4: %+v", len(msgs), msgs)
	}

	call := msgs[1]
	if call.Role != llm.RoleAssistant || call.FunctionCall == nil {
		t.Fatalf("function call message = %+v", call)
	}
	if call.FunctionCall.Name != "weather_lookup" || call.FunctionCall.Arguments != `{"city":"Berlin"}` {
		t.Errorf("function call = %+v", call.FunctionCall)
	}

	result := msgs[2]
	if result.Role != llm.RoleFunction || result.Name != "weather_lookup" || result.Content != "sunny" {
		t.Errorf("function result = %+v", result)
	}

	// The reply after a function call must not merge into the call message.
	if msgs[3].Role != llm.RoleAssistant || msgs[3].Content != "It's sunny in Berlin." {
		t.Errorf("final message = %+v", msgs[3])
	}
}

func TestRender_PreambleAndEpilogue(t *testing.T) {
	tr := New("conv-1", nil)
	tr.AddHumanMessage("hi")

	msgs := Render(tr, RenderOptions{Preamble: "You are a helpful agent.", Epilogue: "Stay in character."})
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != "You are a helpful agent." {
		t.Errorf("preamble = %+v", msgs[0])
	}
	if msgs[2].Role != llm.RoleSystem || msgs[2].Content != "Stay in character." {
		t.Errorf("epilogue = %+v", msgs[2])
	}
}

func TestRender_LiveEditVisible(t *testing.T) {
	tr := New("conv-1", nil)
	m := tr.AddBotMessage("the full planned sentence")
	tr.UpdateLastBotMessage("the full pl-")

	msgs := Render(tr, RenderOptions{})
	if len(msgs) != 1 || msgs[0].Content != "the full pl-" {
		t.Errorf("messages = %+v, want cut-off text", msgs)
	}
	_ = m
}
