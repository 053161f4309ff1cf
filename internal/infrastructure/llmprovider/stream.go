package llmprovider

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// completionDelta is the wire shape of one streamed SSE payload.
type completionDelta struct {
	Choices []struct {
		Delta struct {
			Role         string  `json:"role"`
			Content      *string `json:"content"`
			FunctionCall *struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function_call"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// chunkStream adapts the SSE delta stream into a sequence of decoded text
// chunks. Content deltas pass through verbatim. Function-call deltas are
// re-linearized into the function_call JSON envelope, token by token, so the
// very first chunk of a function-call response begins with the envelope's
// opening key. Downstream detection depends on that ordering.
type chunkStream struct {
	resp   *http.Response
	reader *bufio.Reader

	pending      []string
	envelopeOpen bool
	finished     bool
}

func newChunkStream(resp *http.Response) *chunkStream {
	return &chunkStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}
}

// Recv returns the next decoded chunk, or io.EOF at stream end.
func (s *chunkStream) Recv() (string, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.finished {
			return "", io.EOF
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.finish()
				continue
			}
			return "", err
		}

		line = strings.TrimSpace(line)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			s.finish()
			continue
		}

		var delta completionDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			// Skip malformed chunks
			continue
		}
		s.apply(&delta)
	}
}

func (s *chunkStream) apply(delta *completionDelta) {
	for _, choice := range delta.Choices {
		if fc := choice.Delta.FunctionCall; fc != nil {
			if !s.envelopeOpen {
				s.envelopeOpen = true
				chunk := `{"function_call": {"name": "` + fc.Name + `", "arguments": "`
				if fc.Arguments != "" {
					chunk += escapeJSONString(fc.Arguments)
				}
				s.pending = append(s.pending, chunk)
			} else if fc.Arguments != "" {
				s.pending = append(s.pending, escapeJSONString(fc.Arguments))
			}
		}
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			s.pending = append(s.pending, *choice.Delta.Content)
		}
		if choice.FinishReason != "" {
			s.finish()
		}
	}
}

// finish closes the envelope if one is open and marks the stream exhausted.
func (s *chunkStream) finish() {
	if s.envelopeOpen {
		s.pending = append(s.pending, `"}}`)
		s.envelopeOpen = false
	}
	s.finished = true
}

func (s *chunkStream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}

// escapeJSONString returns the JSON string encoding of v without the
// surrounding quotes, for splicing argument fragments into the envelope.
func escapeJSONString(v string) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return string(encoded[1 : len(encoded)-1])
}
