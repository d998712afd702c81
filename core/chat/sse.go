package chat

import (
	"encoding/json"
	"io"
)

const sseDone = "data: [DONE]\n\n"

type (
	sseDelta struct {
		Content string `json:"content"`
	}

	sseChoice struct {
		Delta sseDelta `json:"delta"`
	}

	sseChunk struct {
		Choices []sseChoice `json:"choices"`
	}
)

// WriteSSE writes content as a single chat-completion delta event followed by the [DONE] marker,
// the shape streaming clients expect.
func WriteSSE(w io.Writer, content string) error {
	b, err := json.Marshal(sseChunk{Choices: []sseChoice{{Delta: sseDelta{Content: content}}}})
	if err != nil {
		return err
	}
	if _, err = io.WriteString(w, "data: "+string(b)+"\n\n"); err != nil {
		return err
	}
	_, err = io.WriteString(w, sseDone)
	return err
}
