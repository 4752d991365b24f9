package engine

import (
	"bufio"
	"io"
	"strings"
)

const maxSSELine = 1024 * 1024

// readSSE walks a text/event-stream body and hands each data payload to
// handle. The "[DONE]" sentinel some endpoints emit is swallowed here.
func readSSE(body io.Reader, handle func(data []byte) error) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		if err := handle([]byte(payload)); err != nil {
			return err
		}
	}
	return sc.Err()
}
