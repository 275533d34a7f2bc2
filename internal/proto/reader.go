package proto

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

type Reader struct {
	rd *bufio.Reader
}

func NewReader(rd io.Reader) *Reader {
	return &Reader{
		rd: bufio.NewReaderSize(rd, defaultBufSize),
	}
}

// ReadReply reads one complete reply frame, including every element of
// nested arrays. Errors sent by the server are returned as a Reply of
// KindError, not as a Go error: a non-nil error means the transport failed
// or the frame was malformed.
func (r *Reader) ReadReply() (*Reply, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}

	switch line[0] {
	case RespStatus:
		return StatusReply(string(line[1:])), nil
	case RespError:
		return ErrorReply(string(line[1:])), nil
	case RespInt:
		n, err := parseInt(line)
		if err != nil {
			return nil, err
		}
		return IntReply(n), nil
	case RespString:
		return r.readBulk(line)
	case RespArray:
		return r.readArray(line)
	}
	return nil, protocolErrorf("can't parse %.100q", line)
}

// ReadRequest reads a client request: either a RESP array of bulk strings
// or an inline command separated by spaces.
func (r *Reader) ReadRequest() ([]string, error) {
	b, err := r.rd.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] != RespArray {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		args := strings.Fields(string(line))
		if len(args) == 0 {
			return nil, protocolErrorf("empty inline request")
		}
		return args, nil
	}

	reply, err := r.ReadReply()
	if err != nil {
		return nil, err
	}
	if reply.Kind != KindArray || len(reply.Array) == 0 {
		return nil, protocolErrorf("expected a non-empty array request, got %s", reply.Kind)
	}
	args := make([]string, len(reply.Array))
	for i, elem := range reply.Array {
		if elem.Kind != KindBulk {
			return nil, protocolErrorf("expected bulk string request argument, got %s", elem.Kind)
		}
		args[i] = elem.Str
	}
	return args, nil
}

func (r *Reader) readBulk(line []byte) (*Reply, error) {
	n, err := parseLen(line)
	if err != nil {
		return nil, err
	}
	switch {
	case n == -1:
		return NullReply(), nil
	case n < -1:
		return nil, protocolErrorf("bad bulk string length %d", n)
	case n > MaxBulkLen:
		return nil, protocolErrorf("bulk string length %d is too long", n)
	}

	b := make([]byte, n+2)
	if _, err := io.ReadFull(r.rd, b); err != nil {
		return nil, err
	}
	if b[n] != '\r' || b[n+1] != '\n' {
		return nil, protocolErrorf("bulk string is not terminated by CRLF")
	}
	return BulkReply(string(b[:n])), nil
}

func (r *Reader) readArray(line []byte) (*Reply, error) {
	n, err := parseLen(line)
	if err != nil {
		return nil, err
	}
	switch {
	case n == -1:
		return NullReply(), nil
	case n < -1:
		return nil, protocolErrorf("bad array length %d", n)
	case n > MaxArrayLen:
		return nil, protocolErrorf("array length %d is too long", n)
	}

	elems := make([]*Reply, n)
	for i := range elems {
		elem, err := r.ReadReply()
		if err != nil {
			return nil, err
		}
		elems[i] = elem
	}
	return ArrayReply(elems...), nil
}

// readLine returns one CRLF terminated line without the terminator.
func (r *Reader) readLine() ([]byte, error) {
	b, err := r.rd.ReadSlice('\n')
	if err != nil {
		if err != bufio.ErrBufferFull {
			if err == io.EOF && len(b) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		full := make([]byte, len(b))
		copy(full, b)

		b, err = r.rd.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		full = append(full, b...) //nolint:makezero
		b = full
	}
	if len(b) <= 2 || b[len(b)-2] != '\r' {
		return nil, protocolErrorf("invalid reply line %.100q", b)
	}
	return b[:len(b)-2], nil
}

func parseInt(line []byte) (int64, error) {
	n, err := strconv.ParseInt(string(line[1:]), 10, 64)
	if err != nil {
		return 0, protocolErrorf("can't parse integer %.100q", line)
	}
	return n, nil
}

func parseLen(line []byte) (int, error) {
	n, err := parseInt(line)
	if err != nil {
		return 0, err
	}
	// Callers apply the tighter per-type limits.
	if n > MaxBulkLen {
		return 0, protocolErrorf("length %d is too long", n)
	}
	return int(n), nil
}
