package redis

import (
	"github.com/go-redis/singleconn/internal/proto"
)

// successPredicate decides whether a non-error reply means the command took
// effect. valid is false when the reply has a shape the command never
// produces.
type successPredicate func(r *proto.Reply) (ok, valid bool)

// successPredicates maps the full command name of every BoolCmd to the rule
// that turns its reply into true or false.
var successPredicates = map[string]successPredicate{
	// write acknowledgements
	"set":        isAck,
	"hset":       isAck,
	"expire":     isAck,
	"config set": isAck,
	"flushdb":    isAck,
	"flushall":   isAck,

	// removals and additions report how many elements changed
	"del":       isPositive,
	"hdel":      isPositive,
	"srem":      isPositive,
	"zrem":      isPositive,
	"sadd":      isPositive,
	"zadd":      isPositive,
	"sismember": isPositive,
}

// isAck accepts "+OK" or ":1". A null reply, e.g. SET NX on an existing
// key, is false.
func isAck(r *proto.Reply) (bool, bool) {
	switch r.Kind {
	case proto.KindStatus:
		return r.Str == "OK", true
	case proto.KindInteger:
		return r.Int == 1, true
	case proto.KindNull:
		return false, true
	default:
		return false, false
	}
}

func isPositive(r *proto.Reply) (bool, bool) {
	if r.Kind != proto.KindInteger {
		return false, false
	}
	return r.Int > 0, true
}

func successPredicateFor(fullName string) successPredicate {
	if pred, ok := successPredicates[fullName]; ok {
		return pred
	}
	return isAck
}

// setCmdReply hands a reply to cmd. Error replies become CommandError for
// every kind of command.
func setCmdReply(cmd Cmder, r *proto.Reply) {
	if err := r.Err(); err != nil {
		cmd.SetErr(err)
		return
	}
	cmd.SetErr(cmd.readReply(r))
}

// setQueuedReply handles the reply to a command sent inside MULTI.
func setQueuedReply(cmd Cmder, r *proto.Reply) {
	if err := r.Err(); err != nil {
		cmd.SetErr(err)
		return
	}
	if r.Kind == proto.KindStatus && r.Str == "QUEUED" {
		cmd.setQueued(true)
		return
	}
	cmd.SetErr(replyTypeError(cmd, r))
}
