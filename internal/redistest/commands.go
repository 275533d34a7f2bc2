package redistest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/singleconn/internal/proto"
)

type handler struct {
	minArgs int
	fn      func(s *Server, c *conn, args []string) *proto.Reply
}

var handlers = map[string]handler{
	"ping":   {0, cmdPing},
	"echo":   {1, cmdEcho},
	"auth":   {1, cmdAuth},
	"select": {1, cmdSelect},
	"client": {1, cmdClient},

	"get":    {1, cmdGet},
	"set":    {2, cmdSet},
	"incr":   {1, func(s *Server, c *conn, args []string) *proto.Reply { return incrBy(s, c, args[0], 1) }},
	"decr":   {1, func(s *Server, c *conn, args []string) *proto.Reply { return incrBy(s, c, args[0], -1) }},
	"incrby": {2, cmdIncrBy},
	"del":    {1, cmdDel},
	"exists": {1, cmdExists},
	"expire": {2, cmdExpire},
	"ttl":    {1, cmdTTL},
	"keys":   {1, cmdKeys},

	"hset":    {3, cmdHSet},
	"hget":    {2, cmdHGet},
	"hdel":    {2, cmdHDel},
	"hgetall": {1, cmdHGetAll},
	"hlen":    {1, cmdHLen},

	"lpush":  {2, func(s *Server, c *conn, args []string) *proto.Reply { return push(s, c, args, true) }},
	"rpush":  {2, func(s *Server, c *conn, args []string) *proto.Reply { return push(s, c, args, false) }},
	"lpop":   {1, func(s *Server, c *conn, args []string) *proto.Reply { return pop(s, c, args[0], true) }},
	"rpop":   {1, func(s *Server, c *conn, args []string) *proto.Reply { return pop(s, c, args[0], false) }},
	"lrange": {3, cmdLRange},
	"llen":   {1, cmdLLen},

	"sadd":      {2, cmdSAdd},
	"srem":      {2, cmdSRem},
	"smembers":  {1, cmdSMembers},
	"sismember": {2, cmdSIsMember},
	"scard":     {1, cmdSCard},

	"zadd":   {3, cmdZAdd},
	"zrem":   {2, cmdZRem},
	"zrange": {3, cmdZRange},
	"zscore": {2, cmdZScore},
	"zcard":  {1, cmdZCard},

	"dbsize":   {0, cmdDBSize},
	"flushdb":  {0, cmdFlushDB},
	"flushall": {0, cmdFlushAll},
	"info":     {0, cmdInfo},
	"config":   {1, cmdConfig},
	"publish":  {2, cmdPublish},
}

var (
	errSyntax    = proto.ErrorReply("ERR syntax error")
	errNotInt    = proto.ErrorReply("ERR value is not an integer or out of range")
	errNotFloat  = proto.ErrorReply("ERR value is not a valid float")
	errExpire    = proto.ErrorReply("ERR invalid expire time in 'set' command")
	okReply      = proto.StatusReply("OK")
	zeroReply    = proto.IntReply(0)
	oneReply     = proto.IntReply(1)
	emptyReplies = proto.ArrayReply()
)

func boolReply(ok bool) *proto.Reply {
	if ok {
		return oneReply
	}
	return zeroReply
}

func (s *Server) db(c *conn) *db {
	return s.dbs[c.db]
}

//------------------------------------------------------------------------------

func cmdPing(s *Server, c *conn, args []string) *proto.Reply {
	if c.subscribed() {
		msg := ""
		if len(args) > 0 {
			msg = args[0]
		}
		return proto.BulkArray("pong", msg)
	}
	if len(args) > 0 {
		return proto.BulkReply(args[0])
	}
	return proto.StatusReply("PONG")
}

func cmdEcho(s *Server, c *conn, args []string) *proto.Reply {
	return proto.BulkReply(args[0])
}

func cmdAuth(s *Server, c *conn, args []string) *proto.Reply {
	password := args[len(args)-1]
	if len(args) > 2 {
		return errSyntax
	}
	if s.password == "" {
		return proto.ErrorReply("ERR AUTH <password> called without any password configured for the default user. Are you sure your configuration is correct?")
	}
	if len(args) == 2 && args[0] != "default" {
		return proto.ErrorReply("WRONGPASS invalid username-password pair or user is disabled.")
	}
	if password != s.password {
		return proto.ErrorReply("WRONGPASS invalid username-password pair or user is disabled.")
	}
	c.authed = true
	return okReply
}

func cmdSelect(s *Server, c *conn, args []string) *proto.Reply {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return errNotInt
	}
	if n < 0 || n >= numDBs {
		return proto.ErrorReply("ERR DB index is out of range")
	}
	c.db = n
	return okReply
}

func cmdClient(s *Server, c *conn, args []string) *proto.Reply {
	switch strings.ToLower(args[0]) {
	case "setname":
		if len(args) != 2 {
			return wrongArgs("client|setname")
		}
		if strings.ContainsAny(args[1], " \n") {
			return proto.ErrorReply("ERR Client names cannot contain spaces, newlines or special characters.")
		}
		c.name = args[1]
		return okReply
	case "getname":
		if c.name == "" {
			return proto.NullReply()
		}
		return proto.BulkReply(c.name)
	}
	return proto.ErrorReply("ERR unknown subcommand '" + args[0] + "'")
}

//------------------------------------------------------------------------------

func cmdGet(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return proto.NullReply()
	}
	if e.kind != kindString {
		return errWrongType
	}
	return proto.BulkReply(e.str)
}

func cmdSet(s *Server, c *conn, args []string) *proto.Reply {
	key, value := args[0], args[1]

	var (
		ttl           time.Duration
		nx, xx, keep  bool
		expireOptions int
	)
	for i := 2; i < len(args); i++ {
		switch opt := strings.ToLower(args[i]); opt {
		case "nx":
			nx = true
		case "xx":
			xx = true
		case "keepttl":
			keep = true
			expireOptions++
		case "ex", "px":
			if i+1 >= len(args) {
				return errSyntax
			}
			i++
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return errNotInt
			}
			if n <= 0 {
				return errExpire
			}
			if opt == "ex" {
				ttl = time.Duration(n) * time.Second
			} else {
				ttl = time.Duration(n) * time.Millisecond
			}
			expireOptions++
		default:
			return errSyntax
		}
	}
	if (nx && xx) || expireOptions > 1 {
		return errSyntax
	}

	d := s.db(c)
	old := d.get(key)
	if (nx && old != nil) || (xx && old == nil) {
		return proto.NullReply()
	}

	e := &entry{kind: kindString, str: value}
	switch {
	case ttl > 0:
		e.expireAt = now().Add(ttl)
	case keep && old != nil:
		e.expireAt = old.expireAt
	}
	d.keys[key] = e
	d.touch(key)
	return okReply
}

func cmdIncrBy(s *Server, c *conn, args []string) *proto.Reply {
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errNotInt
	}
	return incrBy(s, c, args[0], n)
}

func incrBy(s *Server, c *conn, key string, by int64) *proto.Reply {
	d := s.db(c)
	e := d.get(key)

	var n int64
	if e != nil {
		if e.kind != kindString {
			return errWrongType
		}
		var err error
		n, err = strconv.ParseInt(e.str, 10, 64)
		if err != nil {
			return errNotInt
		}
	}
	if (by > 0 && n > (1<<63-1)-by) || (by < 0 && n < (-1<<63)-by) {
		return proto.ErrorReply("ERR increment or decrement would overflow")
	}
	n += by

	if e == nil {
		e = &entry{kind: kindString}
		d.keys[key] = e
	}
	e.str = strconv.FormatInt(n, 10)
	d.touch(key)
	return proto.IntReply(n)
}

func cmdDel(s *Server, c *conn, args []string) *proto.Reply {
	d := s.db(c)
	var n int64
	for _, key := range args {
		if d.del(key) {
			n++
		}
	}
	return proto.IntReply(n)
}

func cmdExists(s *Server, c *conn, args []string) *proto.Reply {
	d := s.db(c)
	var n int64
	for _, key := range args {
		if d.get(key) != nil {
			n++
		}
	}
	return proto.IntReply(n)
}

func cmdExpire(s *Server, c *conn, args []string) *proto.Reply {
	sec, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errNotInt
	}
	d := s.db(c)
	e := d.get(args[0])
	if e == nil {
		return zeroReply
	}
	if sec <= 0 {
		d.del(args[0])
		return oneReply
	}
	e.expireAt = now().Add(time.Duration(sec) * time.Second)
	d.touch(args[0])
	return oneReply
}

func cmdTTL(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	switch {
	case e == nil:
		return proto.IntReply(-2)
	case e.expireAt.IsZero():
		return proto.IntReply(-1)
	}
	left := e.expireAt.Sub(now())
	return proto.IntReply(int64((left + time.Second/2) / time.Second))
}

func cmdKeys(s *Server, c *conn, args []string) *proto.Reply {
	var out []string
	for _, key := range s.db(c).liveKeys() {
		if matchGlob(args[0], key) {
			out = append(out, key)
		}
	}
	return proto.BulkArray(out...)
}

//------------------------------------------------------------------------------

func cmdHSet(s *Server, c *conn, args []string) *proto.Reply {
	if len(args)%2 != 1 {
		return wrongArgs("hset")
	}
	d := s.db(c)
	e := d.getOrCreate(args[0], kindHash)
	if e == nil {
		return errWrongType
	}
	var added int64
	for i := 1; i < len(args); i += 2 {
		field, value := args[i], args[i+1]
		if _, ok := e.hash[field]; !ok {
			e.fields = append(e.fields, field)
			added++
		}
		e.hash[field] = value
	}
	d.touch(args[0])
	return proto.IntReply(added)
}

func cmdHGet(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return proto.NullReply()
	}
	if e.kind != kindHash {
		return errWrongType
	}
	v, ok := e.hash[args[1]]
	if !ok {
		return proto.NullReply()
	}
	return proto.BulkReply(v)
}

func cmdHDel(s *Server, c *conn, args []string) *proto.Reply {
	d := s.db(c)
	e := d.get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindHash {
		return errWrongType
	}
	var n int64
	for _, field := range args[1:] {
		if _, ok := e.hash[field]; !ok {
			continue
		}
		delete(e.hash, field)
		for i, f := range e.fields {
			if f == field {
				e.fields = append(e.fields[:i], e.fields[i+1:]...)
				break
			}
		}
		n++
	}
	if n > 0 {
		d.touch(args[0])
		d.dropIfEmpty(args[0])
	}
	return proto.IntReply(n)
}

func cmdHGetAll(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return emptyReplies
	}
	if e.kind != kindHash {
		return errWrongType
	}
	out := make([]string, 0, 2*len(e.fields))
	for _, field := range e.fields {
		out = append(out, field, e.hash[field])
	}
	return proto.BulkArray(out...)
}

func cmdHLen(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindHash {
		return errWrongType
	}
	return proto.IntReply(int64(len(e.hash)))
}

//------------------------------------------------------------------------------

func push(s *Server, c *conn, args []string, left bool) *proto.Reply {
	d := s.db(c)
	e := d.getOrCreate(args[0], kindList)
	if e == nil {
		return errWrongType
	}
	for _, v := range args[1:] {
		if left {
			e.list = append([]string{v}, e.list...)
		} else {
			e.list = append(e.list, v)
		}
	}
	d.touch(args[0])
	return proto.IntReply(int64(len(e.list)))
}

func pop(s *Server, c *conn, key string, left bool) *proto.Reply {
	d := s.db(c)
	e := d.get(key)
	if e == nil {
		return proto.NullReply()
	}
	if e.kind != kindList {
		return errWrongType
	}
	var v string
	if left {
		v, e.list = e.list[0], e.list[1:]
	} else {
		v, e.list = e.list[len(e.list)-1], e.list[:len(e.list)-1]
	}
	d.touch(key)
	d.dropIfEmpty(key)
	return proto.BulkReply(v)
}

func cmdLRange(s *Server, c *conn, args []string) *proto.Reply {
	start, err1 := strconv.ParseInt(args[1], 10, 64)
	stop, err2 := strconv.ParseInt(args[2], 10, 64)
	if err1 != nil || err2 != nil {
		return errNotInt
	}
	e := s.db(c).get(args[0])
	if e == nil {
		return emptyReplies
	}
	if e.kind != kindList {
		return errWrongType
	}
	i, j, ok := rangeIndexes(start, stop, len(e.list))
	if !ok {
		return emptyReplies
	}
	return proto.BulkArray(e.list[i:j]...)
}

func cmdLLen(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindList {
		return errWrongType
	}
	return proto.IntReply(int64(len(e.list)))
}

//------------------------------------------------------------------------------

func cmdSAdd(s *Server, c *conn, args []string) *proto.Reply {
	d := s.db(c)
	e := d.getOrCreate(args[0], kindSet)
	if e == nil {
		return errWrongType
	}
	var n int64
	for _, m := range args[1:] {
		if _, ok := e.set[m]; !ok {
			e.set[m] = struct{}{}
			n++
		}
	}
	d.touch(args[0])
	return proto.IntReply(n)
}

func cmdSRem(s *Server, c *conn, args []string) *proto.Reply {
	d := s.db(c)
	e := d.get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindSet {
		return errWrongType
	}
	var n int64
	for _, m := range args[1:] {
		if _, ok := e.set[m]; ok {
			delete(e.set, m)
			n++
		}
	}
	if n > 0 {
		d.touch(args[0])
		d.dropIfEmpty(args[0])
	}
	return proto.IntReply(n)
}

func cmdSMembers(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return emptyReplies
	}
	if e.kind != kindSet {
		return errWrongType
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	sort.Strings(out)
	return proto.BulkArray(out...)
}

func cmdSIsMember(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindSet {
		return errWrongType
	}
	_, ok := e.set[args[1]]
	return boolReply(ok)
}

func cmdSCard(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindSet {
		return errWrongType
	}
	return proto.IntReply(int64(len(e.set)))
}

//------------------------------------------------------------------------------

func cmdZAdd(s *Server, c *conn, args []string) *proto.Reply {
	if len(args)%2 != 1 {
		return errSyntax
	}
	scores := make([]float64, 0, len(args)/2)
	for i := 1; i < len(args); i += 2 {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return errNotFloat
		}
		scores = append(scores, f)
	}

	d := s.db(c)
	e := d.getOrCreate(args[0], kindZSet)
	if e == nil {
		return errWrongType
	}
	var n int64
	for i, score := range scores {
		member := args[2+2*i]
		if _, ok := e.zset[member]; !ok {
			n++
		}
		e.zset[member] = score
	}
	d.touch(args[0])
	return proto.IntReply(n)
}

func cmdZRem(s *Server, c *conn, args []string) *proto.Reply {
	d := s.db(c)
	e := d.get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindZSet {
		return errWrongType
	}
	var n int64
	for _, m := range args[1:] {
		if _, ok := e.zset[m]; ok {
			delete(e.zset, m)
			n++
		}
	}
	if n > 0 {
		d.touch(args[0])
		d.dropIfEmpty(args[0])
	}
	return proto.IntReply(n)
}

func cmdZRange(s *Server, c *conn, args []string) *proto.Reply {
	start, err1 := strconv.ParseInt(args[1], 10, 64)
	stop, err2 := strconv.ParseInt(args[2], 10, 64)
	if err1 != nil || err2 != nil {
		return errNotInt
	}
	withScores := false
	for _, opt := range args[3:] {
		if strings.ToLower(opt) != "withscores" {
			return errSyntax
		}
		withScores = true
	}

	e := s.db(c).get(args[0])
	if e == nil {
		return emptyReplies
	}
	if e.kind != kindZSet {
		return errWrongType
	}
	members := e.zrange()
	i, j, ok := rangeIndexes(start, stop, len(members))
	if !ok {
		return emptyReplies
	}
	if !withScores {
		return proto.BulkArray(members[i:j]...)
	}
	out := make([]string, 0, 2*(j-i))
	for _, m := range members[i:j] {
		out = append(out, m, formatScore(e.zset[m]))
	}
	return proto.BulkArray(out...)
}

func cmdZScore(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return proto.NullReply()
	}
	if e.kind != kindZSet {
		return errWrongType
	}
	score, ok := e.zset[args[1]]
	if !ok {
		return proto.NullReply()
	}
	return proto.BulkReply(formatScore(score))
}

func cmdZCard(s *Server, c *conn, args []string) *proto.Reply {
	e := s.db(c).get(args[0])
	if e == nil {
		return zeroReply
	}
	if e.kind != kindZSet {
		return errWrongType
	}
	return proto.IntReply(int64(len(e.zset)))
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', 17, 64)
}

//------------------------------------------------------------------------------

func cmdDBSize(s *Server, c *conn, args []string) *proto.Reply {
	return proto.IntReply(int64(len(s.db(c).liveKeys())))
}

func cmdFlushDB(s *Server, c *conn, args []string) *proto.Reply {
	s.db(c).flush()
	return okReply
}

func cmdFlushAll(s *Server, c *conn, args []string) *proto.Reply {
	for _, d := range s.dbs {
		d.flush()
	}
	return okReply
}

func cmdInfo(s *Server, c *conn, args []string) *proto.Reply {
	var b strings.Builder
	section := "all"
	if len(args) > 0 {
		section = strings.ToLower(args[0])
	}
	if section == "all" || section == "server" {
		b.WriteString("# Server\r\nredis_version:7.2.0\r\nredis_mode:standalone\r\n")
	}
	if section == "all" || section == "clients" {
		fmt.Fprintf(&b, "# Clients\r\nconnected_clients:%d\r\n", len(s.conns))
	}
	if section == "all" || section == "keyspace" {
		b.WriteString("# Keyspace\r\n")
		for i, d := range s.dbs {
			if n := len(d.liveKeys()); n > 0 {
				fmt.Fprintf(&b, "db%d:keys=%d,expires=0,avg_ttl=0\r\n", i, n)
			}
		}
	}
	return proto.BulkReply(b.String())
}

func cmdConfig(s *Server, c *conn, args []string) *proto.Reply {
	switch strings.ToLower(args[0]) {
	case "get":
		if len(args) != 2 {
			return wrongArgs("config|get")
		}
		keys := make([]string, 0, len(s.config))
		for k := range s.config {
			if matchGlob(strings.ToLower(args[1]), k) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		out := make([]string, 0, 2*len(keys))
		for _, k := range keys {
			out = append(out, k, s.config[k])
		}
		return proto.BulkArray(out...)
	case "set":
		if len(args) != 3 {
			return wrongArgs("config|set")
		}
		param := strings.ToLower(args[1])
		if _, ok := s.config[param]; !ok {
			return proto.ErrorReply("ERR Unknown option or number of arguments for CONFIG SET - '" + args[1] + "'")
		}
		s.config[param] = args[2]
		return okReply
	}
	return proto.ErrorReply("ERR unknown subcommand '" + args[0] + "'")
}

func cmdPublish(s *Server, c *conn, args []string) *proto.Reply {
	return proto.IntReply(int64(s.publish(c, args[0], args[1])))
}
