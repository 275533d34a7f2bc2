package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-redis/singleconn"
	"github.com/go-redis/singleconn/internal/proto"
)

// writeReply prints a reply the way redis-cli does.
func writeReply(w io.Writer, r *redis.Reply) {
	var b strings.Builder
	formatReply(&b, r, "")
	_, _ = io.WriteString(w, b.String())
}

func formatReply(b *strings.Builder, r *redis.Reply, indent string) {
	if r == nil {
		b.WriteString("(nil)\n")
		return
	}
	switch r.Kind {
	case proto.KindArray:
		if len(r.Array) == 0 {
			b.WriteString("(empty array)\n")
			return
		}
		width := len(strconv.Itoa(len(r.Array)))
		for i, elem := range r.Array {
			if i > 0 {
				b.WriteString(indent)
			}
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(prefix)
			formatReply(b, elem, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
}
