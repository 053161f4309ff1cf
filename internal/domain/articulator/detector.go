package articulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"values-server/services/articulator-api/internal/domain/llm"
)

// ErrMalformedCall indicates the function-call envelope or its nested
// arguments string could not be parsed. Fatal for the turn.
var ErrMalformedCall = errors.New("malformed function call")

// FunctionCall is a decoded function invocation extracted from a stream.
type FunctionCall struct {
	Name      string
	Arguments map[string]any
}

// ArgumentsJSON re-serializes the arguments object for persistence.
func (f *FunctionCall) ArgumentsJSON() string {
	if f.Arguments == nil {
		return "{}"
	}
	raw, err := json.Marshal(f.Arguments)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// IsFunctionCallChunk reports whether a stream's first chunk indicates a
// function-call response. A structured response serializes its enclosing
// object with function_call as the first key, so the opening tokens spell
// that key name before any value; stripping everything that is not
// alphanumeric or underscore exposes it.
func IsFunctionCallChunk(chunk string) bool {
	var b strings.Builder
	for _, r := range chunk {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.HasPrefix(b.String(), "function_call")
}

// DetectFunctionCall inspects the stream's first chunk to decide between a
// plain-text response and a function call, after a single read.
//
// On the plain-text path the consumed chunk is replayed, and the returned
// stream is handed back to the caller untouched otherwise. On the
// function-call path the stream is drained to the end, the chunks are
// concatenated in arrival order, the envelope is parsed, and the nested
// arguments string is parsed a second time to obtain the argument object.
func DetectFunctionCall(stream llm.Stream) (*FunctionCall, llm.Stream, error) {
	first, err := stream.Recv()
	if err == io.EOF {
		return nil, &replayStream{rest: stream}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if !IsFunctionCallChunk(first) {
		return nil, &replayStream{first: &first, rest: stream}, nil
	}

	defer stream.Close()

	var sb strings.Builder
	sb.WriteString(first)
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		sb.WriteString(chunk)
	}

	call, err := parseFunctionCall(sb.String())
	if err != nil {
		return nil, nil, err
	}
	return call, nil, nil
}

func parseFunctionCall(raw string) (*FunctionCall, error) {
	var envelope struct {
		FunctionCall llm.FunctionCallPayload `json:"function_call"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("%w: parse envelope: %v", ErrMalformedCall, err)
	}
	if envelope.FunctionCall.Name == "" {
		return nil, fmt.Errorf("%w: missing function name", ErrMalformedCall)
	}

	// Arguments are themselves a JSON-encoded string; absent arguments
	// default to an empty object.
	argsRaw := envelope.FunctionCall.Arguments
	if argsRaw == "" {
		argsRaw = "{}"
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(argsRaw), &args); err != nil {
		return nil, fmt.Errorf("%w: parse arguments: %v", ErrMalformedCall, err)
	}

	return &FunctionCall{
		Name:      envelope.FunctionCall.Name,
		Arguments: args,
	}, nil
}

// replayStream re-yields a chunk the detector already consumed before
// delegating to the remainder of the stream.
type replayStream struct {
	first *string
	rest  llm.Stream
}

func (s *replayStream) Recv() (string, error) {
	if s.first != nil {
		chunk := *s.first
		s.first = nil
		return chunk, nil
	}
	return s.rest.Recv()
}

func (s *replayStream) Close() error {
	return s.rest.Close()
}
