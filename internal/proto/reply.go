package proto

import (
	"strconv"
	"strings"
)

// Kind tags the shape of a Reply.
type Kind uint8

const (
	KindStatus Kind = iota + 1
	KindError
	KindInteger
	KindBulk
	KindNull
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Reply is one decoded server reply. Only the fields matching Kind are set:
// Str for status, error and bulk replies, Int for integers and Array for
// arrays. Both the null bulk string and the null array decode to KindNull.
type Reply struct {
	Kind  Kind
	Str   string
	Int   int64
	Array []*Reply
}

func StatusReply(s string) *Reply { return &Reply{Kind: KindStatus, Str: s} }

func ErrorReply(s string) *Reply { return &Reply{Kind: KindError, Str: s} }

func IntReply(n int64) *Reply { return &Reply{Kind: KindInteger, Int: n} }

func BulkReply(s string) *Reply { return &Reply{Kind: KindBulk, Str: s} }

func NullReply() *Reply { return &Reply{Kind: KindNull} }

func ArrayReply(elems ...*Reply) *Reply {
	if elems == nil {
		elems = []*Reply{}
	}
	return &Reply{Kind: KindArray, Array: elems}
}

// BulkArray builds an array of bulk strings.
func BulkArray(ss ...string) *Reply {
	elems := make([]*Reply, len(ss))
	for i, s := range ss {
		elems[i] = BulkReply(s)
	}
	return ArrayReply(elems...)
}

// Err returns the reply as a RedisError when it is an error reply.
func (r *Reply) Err() error {
	if r.Kind == KindError {
		return RedisError(r.Str)
	}
	return nil
}

func (r *Reply) IsNull() bool {
	return r.Kind == KindNull
}

// Text returns the payload of a status or bulk reply.
func (r *Reply) Text() (string, bool) {
	switch r.Kind {
	case KindStatus, KindBulk:
		return r.Str, true
	}
	return "", false
}

// Interface converts the reply into plain Go values: string, int64,
// []interface{}, nil or a RedisError.
func (r *Reply) Interface() interface{} {
	switch r.Kind {
	case KindStatus, KindBulk:
		return r.Str
	case KindInteger:
		return r.Int
	case KindError:
		return RedisError(r.Str)
	case KindArray:
		vals := make([]interface{}, len(r.Array))
		for i, elem := range r.Array {
			vals[i] = elem.Interface()
		}
		return vals
	}
	return nil
}

func (r *Reply) String() string {
	var b strings.Builder
	r.appendString(&b)
	return b.String()
}

func (r *Reply) appendString(b *strings.Builder) {
	switch r.Kind {
	case KindStatus:
		b.WriteString(r.Str)
	case KindError:
		b.WriteString("(error) ")
		b.WriteString(r.Str)
	case KindInteger:
		b.WriteString("(integer) ")
		b.WriteString(strconv.FormatInt(r.Int, 10))
	case KindBulk:
		b.WriteString(strconv.Quote(r.Str))
	case KindNull:
		b.WriteString("(nil)")
	case KindArray:
		b.WriteByte('[')
		for i, elem := range r.Array {
			if i > 0 {
				b.WriteByte(' ')
			}
			elem.appendString(b)
		}
		b.WriteByte(']')
	}
}
