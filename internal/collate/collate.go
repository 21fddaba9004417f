// Package collate folds a streaming sequence of agent tokens into
// sentence-sized chunks suitable for speech synthesis.
//
// Language models emit text in small fragments ("Hel", "lo", " wor", "ld.")
// that split sentences, currency amounts and list numbering across fragment
// boundaries. The collator buffers fragments and emits complete sentences,
// holding back in two cases where a terminator is not a real sentence end:
//
//   - enumerated list items ("1. First") terminate only on newline, so the
//     numbering dot never produces a one-character sentence
//   - monetary amounts ("$3.50") suppress the terminator that is really a
//     decimal point; a following token that starts with a space reveals the
//     dot was a sentence end after all and forces the held flush
//
// Function-call fragments are accumulated on the side and surfaced as a
// single aggregated call once the token stream ends.
package collate

import (
	"context"
	"regexp"
	"strings"
)

// sentenceEndings are the runes that may close a sentence.
const sentenceEndings = ".!?\n"

var (
	listItemRe = regexp.MustCompile(`^\d+[ .]`)
	moneyRe    = regexp.MustCompile(`\$\d+.$`)
)

// FunctionFragment is an incremental piece of a function call streamed by a
// language model. Name and Arguments accumulate independently across
// fragments.
type FunctionFragment struct {
	Name      string
	Arguments string
}

// FunctionCall is a fully aggregated function invocation: the concatenation
// of every fragment's name and arguments in stream order.
type FunctionCall struct {
	Name      string
	Arguments string
}

// Token is one item of an agent token stream: text when Fragment is nil,
// otherwise a function-call fragment.
type Token struct {
	Text     string
	Fragment *FunctionFragment
}

// Result is one collator output: a complete sentence, or — after the input
// ends — the aggregated function call (Sentence empty, Function set).
type Result struct {
	Sentence string
	Function *FunctionCall
}

type options struct {
	includeFunctions bool
}

// Option configures a Sentences run.
type Option func(*options)

// IncludeFunctions emits the aggregated FunctionCall after the final
// sentence. Without it, accumulated fragments are discarded.
func IncludeFunctions() Option {
	return func(o *options) {
		o.includeFunctions = true
	}
}

// Sentences consumes tokens until the channel closes and emits complete
// sentences on the returned channel. The returned channel is closed after
// the final flush (and aggregated function call, if requested). Sends honor
// ctx, so an abandoned consumer does not leak the collator goroutine as long
// as ctx is eventually cancelled.
func Sentences(ctx context.Context, tokens <-chan Token, opts ...Option) <-chan Result {
	var cfg options
	for _, o := range opts {
		o(&cfg)
	}

	out := make(chan Result)
	go func() {
		defer close(out)

		var (
			buf            string
			fnName, fnArgs string
			prevMoney      bool
		)

		send := func(r Result) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		flush := func() bool {
			sentence := strings.TrimSpace(buf)
			buf = ""
			if sentence == "" {
				return true
			}
			return send(Result{Sentence: sentence})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case tok, ok := <-tokens:
				if !ok {
					if !flush() {
						return
					}
					if cfg.includeFunctions && fnName != "" {
						send(Result{Function: &FunctionCall{Name: fnName, Arguments: fnArgs}})
					}
					return
				}
				switch {
				case tok.Fragment != nil:
					fnName += tok.Fragment.Name
					fnArgs += tok.Fragment.Arguments
				case tok.Text == "":
					// Empty fragments carry no boundary information.
				default:
					if prevMoney && strings.HasPrefix(tok.Text, " ") {
						if !flush() {
							return
						}
					}
					buf += tok.Text
					listItem := listItemRe.MatchString(buf)
					money := moneyRe.MatchString(buf)
					if hasBoundary(tok.Text, listItem) && !money {
						if !flush() {
							return
						}
					}
					prevMoney = money
				}
			}
		}
	}()
	return out
}

// hasBoundary reports whether the token closes the current buffer. Inside a
// numbered list item only a newline terminates.
func hasBoundary(token string, listItem bool) bool {
	if listItem {
		return strings.Contains(token, "\n")
	}
	return strings.ContainsAny(token, sentenceEndings)
}

// LastBoundary reports the byte index of the last sentence terminator in s.
// The index is valid (≥ 0) only when the second return is true.
func LastBoundary(s string) (int, bool) {
	idx := strings.LastIndexAny(s, sentenceEndings)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// SplitAtBoundary splits s just after its last sentence terminator,
// returning the complete-sentence prefix and the unfinished remainder.
// When s contains no terminator, it returns ("", s, false).
func SplitAtBoundary(s string) (sentence, rest string, ok bool) {
	idx, found := LastBoundary(s)
	if !found {
		return "", s, false
	}
	return s[:idx+1], s[idx+1:], true
}
