package netstack

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// MaxHeaderSize bounds the start line plus headers of a stream message.
	MaxHeaderSize = 64 * 1024
	// MaxBodySize bounds the Content-Length of a stream message.
	MaxBodySize = 1024 * 1024
)

// ErrFraming is returned when a stream message cannot be delimited.
var ErrFraming = errors.New("SIP stream framing error")

// ReadStreamMessage reads one message from a SIP stream: the header block up
// to the empty line, then Content-Length bytes of body. Leading CRLF
// keep-alives are skipped. The message is returned verbatim.
func ReadStreamMessage(r *bufio.Reader) ([]byte, error) {
	if err := skipKeepAlives(r); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	contentLength := 0
	for {
		line, err := readHeaderLine(r, MaxHeaderSize-buf.Len())
		if err != nil {
			if errors.Is(err, io.EOF) && buf.Len()+len(line) > 0 {
				return nil, fmt.Errorf("%w: connection closed inside header", ErrFraming)
			}
			return nil, err
		}
		buf.Write(line)
		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == "" {
			break
		}
		if n, ok, err := parseContentLength(trimmed); err != nil {
			return nil, err
		} else if ok {
			contentLength = n
		}
	}

	if contentLength > 0 {
		body := make([]byte, contentLength)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("%w: short body: %v", ErrFraming, err)
		}
		buf.Write(body)
	}
	return buf.Bytes(), nil
}

// readHeaderLine reads one line including its newline, failing as soon as
// the line grows past budget bytes. At most one buffer of input beyond the
// budget is consumed.
func readHeaderLine(r *bufio.Reader, budget int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > budget {
			return nil, fmt.Errorf("%w: header exceeds %d bytes", ErrFraming, MaxHeaderSize)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

func skipKeepAlives(r *bufio.Reader) error {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return err
		}
		if b[0] != '\r' && b[0] != '\n' {
			return nil
		}
		if _, err := r.ReadByte(); err != nil {
			return err
		}
	}
}

// parseContentLength recognises "Content-Length" and its compact form "l".
func parseContentLength(line string) (int, bool, error) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return 0, false, nil
	}
	name = strings.TrimSpace(name)
	if !strings.EqualFold(name, "Content-Length") && !strings.EqualFold(name, "l") {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%w: bad Content-Length %q", ErrFraming, value)
	}
	if n > MaxBodySize {
		return 0, false, fmt.Errorf("%w: Content-Length %d exceeds %d", ErrFraming, n, MaxBodySize)
	}
	return n, true, nil
}
