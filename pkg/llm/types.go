package llm

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant, or RoleFunction.
	Role string

	// Content is the text content of the message. Empty for assistant
	// messages that carry only a function call.
	Content string

	// Name identifies the function whose result this message carries. Set
	// only when Role is RoleFunction.
	Name string

	// FunctionCall is the invocation requested by the assistant. Set only
	// when Role is RoleAssistant.
	FunctionCall *FunctionCall

	// CallID pairs an assistant function call with its RoleFunction result.
	// Providers that require call identifiers use it verbatim; others ignore
	// it.
	CallID string
}

// FunctionCall is a complete function invocation: the function name and its
// JSON-encoded arguments string.
type FunctionCall struct {
	Name      string
	Arguments string
}

// FunctionDelta is an incremental piece of a function call emitted during
// streaming. Name and Arguments accumulate independently across deltas.
type FunctionDelta struct {
	Name      string
	Arguments string
}

// FunctionDefinition describes a function that can be offered to an LLM.
type FunctionDefinition struct {
	// Name is the function's unique identifier.
	Name string

	// Description explains what the function does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the function's input.
	Parameters map[string]any
}
