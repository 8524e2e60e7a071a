package line

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxLineBytes bounds a request line when no limit is configured.
const DefaultMaxLineBytes = 64 * 1024

// ReadLine reads one newline-terminated line from r and returns it without
// the line ending.
//
// A line longer than limit bytes is a *ProtocolError. A final line that ends
// at EOF without a newline is returned as is; the next call returns io.EOF.
func ReadLine(r *bufio.Reader, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxLineBytes
	}

	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		buf = append(buf, chunk...)

		if len(strings.TrimRight(string(buf), "\r\n")) > limit {
			return "", &ProtocolError{Reason: fmt.Sprintf("line exceeds %d bytes", limit)}
		}

		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(buf) > 0 {
			break
		}
		return "", err
	}

	text := strings.TrimSuffix(string(buf), "\n")
	return strings.TrimSuffix(text, "\r"), nil
}

// WriteReply writes the status line followed by one line per payload entry.
func WriteReply(w io.Writer, status Status, payload ...string) error {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(status)))
	b.WriteByte('\n')
	for _, p := range payload {
		b.WriteString(p)
		b.WriteByte('\n')
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// ReadStatus reads a status line.
func ReadStatus(r *bufio.Reader) (Status, error) {
	text, err := ReadLine(r, 0)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("invalid status line %q", text)
	}
	return Status(n), nil
}

// Payload returns the number of payload lines that follow status for op.
func Payload(op Op, status Status) int {
	if status != StatusOk {
		return 0
	}
	switch op {
	case OpOpen, OpRead:
		return 1
	default:
		return 0
	}
}
