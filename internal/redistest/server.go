// Package redistest provides an in-process server that speaks enough of the
// Redis protocol to exercise the client without a real Redis: strings,
// keys, hashes, lists, sets, sorted sets, WATCH/MULTI/EXEC and the pub/sub
// handshake.
package redistest

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/singleconn/internal"
	"github.com/go-redis/singleconn/internal/proto"
)

const numDBs = 16

// Server is an in-process Redis stand-in listening on a loopback port.
type Server struct {
	ln net.Listener

	mu       sync.Mutex // guards everything below
	dbs      [numDBs]*db
	conns    map[*conn]struct{}
	config   map[string]string
	password string
	received [][]string
	hang     map[string]bool
	raw      map[string][]byte
	prepend  map[string][]*proto.Reply

	closed bool
	wg     sync.WaitGroup
}

// NewServer starts a server on 127.0.0.1 with a random port.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:    ln,
		conns: make(map[*conn]struct{}),
		config: map[string]string{
			"maxmemory":        "0",
			"maxmemory-policy": "noeviction",
			"timeout":          "0",
			"databases":        "16",
		},
		hang:    make(map[string]bool),
		raw:     make(map[string][]byte),
		prepend: make(map[string][]*proto.Reply),
	}
	for i := range s.dbs {
		s.dbs[i] = newDB()
	}

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the server and drops every client connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.ln.Close()
	for c := range s.conns {
		_ = c.netConn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// RequirePass makes AUTH mandatory.
func (s *Server) RequirePass(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.password = password
}

// Hang makes the server read the named command and never answer it.
func (s *Server) Hang(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hang[strings.ToLower(name)] = true
}

// SetRawReply makes the server answer the next call of the named command
// with raw bytes instead of executing it.
func (s *Server) SetRawReply(name string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[strings.ToLower(name)] = raw
}

// Prepend makes the server write frames before its answer to the next call
// of the named command.
func (s *Server) Prepend(name string, frames ...*proto.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepend[strings.ToLower(name)] = frames
}

// Received returns every command the server has read so far.
func (s *Server) Received() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.received))
	copy(out, s.received)
	return out
}

// ConnCount returns the number of open client connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ClientNames returns the names set with CLIENT SETNAME.
func (s *Server) ClientNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for c := range s.conns {
		if c.name != "" {
			names = append(names, c.name)
		}
	}
	return names
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		netConn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				internal.Warnf(context.Background(), "redistest: accept failed: %s", err)
			}
			return
		}

		c := newConn(s, netConn)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = netConn.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()
		}()
	}
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
	s.unsubscribeAll(c)
}

//------------------------------------------------------------------------------

type conn struct {
	srv     *Server
	netConn net.Conn
	rd      *proto.Reader

	wmu sync.Mutex // guards bw and wr; PUBLISH writes from other connections
	bw  *bufio.Writer
	wr  *proto.Writer

	// guarded by srv.mu
	db       int
	authed   bool
	name     string
	watched  map[string]uint64
	multi    bool
	dirty    bool
	queued   [][]string
	channels map[string]struct{}
	patterns map[string]struct{}
	after    []func()
}

func newConn(s *Server, netConn net.Conn) *conn {
	bw := bufio.NewWriter(netConn)
	return &conn{
		srv:      s,
		netConn:  netConn,
		rd:       proto.NewReader(netConn),
		bw:       bw,
		wr:       proto.NewWriter(bw),
		watched:  make(map[string]uint64),
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
	}
}

func (c *conn) serve() {
	defer c.srv.removeConn(c)
	defer c.netConn.Close()

	for {
		args, err := c.rd.ReadRequest()
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}

		replies, raw, after, hang := c.srv.handle(c, args)
		if hang {
			continue
		}
		if err := c.write(raw, replies...); err != nil {
			return
		}
		for _, fn := range after {
			fn()
		}
	}
}

func (c *conn) write(raw []byte, replies ...*proto.Reply) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if raw != nil {
		if _, err := c.bw.Write(raw); err != nil {
			return err
		}
	}
	for _, r := range replies {
		if err := c.wr.WriteReply(r); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}

func (c *conn) subscribed() bool {
	return len(c.channels)+len(c.patterns) > 0
}

//------------------------------------------------------------------------------

// handle runs one command and returns the frames to send back, and the
// work to do once they are sent.
func (s *Server) handle(c *conn, args []string) (replies []*proto.Reply, raw []byte, after []func(), hang bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.ToLower(args[0])
	s.received = append(s.received, args)

	if s.hang[name] {
		return nil, nil, nil, true
	}
	if b, ok := s.raw[name]; ok {
		delete(s.raw, name)
		return nil, b, nil, false
	}
	if frames, ok := s.prepend[name]; ok {
		delete(s.prepend, name)
		replies = append(replies, frames...)
	}

	replies = append(replies, s.dispatch(c, name, args[1:])...)
	after, c.after = c.after, nil
	return replies, nil, after, false
}

func (s *Server) dispatch(c *conn, name string, args []string) []*proto.Reply {
	if s.password != "" && !c.authed && name != "auth" {
		return one(proto.ErrorReply("NOAUTH Authentication required."))
	}

	if c.subscribed() {
		switch name {
		case "subscribe", "unsubscribe", "psubscribe", "punsubscribe", "ping":
		default:
			return one(proto.ErrorReply("ERR Can't execute '" + name +
				"': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context"))
		}
	}

	switch name {
	case "multi":
		if c.multi {
			return one(proto.ErrorReply("ERR MULTI calls can not be nested"))
		}
		c.multi = true
		c.dirty = false
		c.queued = nil
		return one(proto.StatusReply("OK"))
	case "exec":
		return one(s.exec(c))
	case "discard":
		if !c.multi {
			return one(proto.ErrorReply("ERR DISCARD without MULTI"))
		}
		c.multi = false
		c.queued = nil
		c.watched = make(map[string]uint64)
		return one(proto.StatusReply("OK"))
	case "watch":
		if c.multi {
			return one(proto.ErrorReply("ERR WATCH inside MULTI is not allowed"))
		}
		if len(args) == 0 {
			return one(wrongArgs(name))
		}
		d := s.dbs[c.db]
		for _, key := range args {
			if _, ok := c.watched[key]; !ok {
				d.expireIfNeeded(key)
				c.watched[key] = d.version(key)
			}
		}
		return one(proto.StatusReply("OK"))
	case "unwatch":
		if c.multi {
			break
		}
		c.watched = make(map[string]uint64)
		return one(proto.StatusReply("OK"))
	case "subscribe", "psubscribe", "unsubscribe", "punsubscribe":
		if c.multi {
			break
		}
		return s.subscription(c, name, args)
	}

	h, ok := handlers[name]
	if !ok {
		if c.multi {
			c.dirty = true
		}
		return one(proto.ErrorReply("ERR unknown command '" + name + "', with args beginning with: "))
	}
	if len(args) < h.minArgs {
		if c.multi {
			c.dirty = true
		}
		return one(wrongArgs(name))
	}

	if c.multi {
		c.queued = append(c.queued, append([]string{name}, args...))
		return one(proto.StatusReply("QUEUED"))
	}
	return one(h.fn(s, c, args))
}

func (s *Server) exec(c *conn) *proto.Reply {
	if !c.multi {
		return proto.ErrorReply("ERR EXEC without MULTI")
	}

	queued, watched, dirty := c.queued, c.watched, c.dirty
	c.multi = false
	c.queued = nil
	c.dirty = false
	c.watched = make(map[string]uint64)

	if dirty {
		return proto.ErrorReply("EXECABORT Transaction discarded because of previous errors.")
	}

	d := s.dbs[c.db]
	for key, ver := range watched {
		d.expireIfNeeded(key)
		if d.version(key) != ver {
			return proto.NullReply()
		}
	}

	out := make([]*proto.Reply, len(queued))
	for i, args := range queued {
		out[i] = handlers[args[0]].fn(s, c, args[1:])
	}
	return proto.ArrayReply(out...)
}

//------------------------------------------------------------------------------

func (s *Server) subscription(c *conn, name string, args []string) []*proto.Reply {
	set := c.channels
	if name[0] == 'p' {
		set = c.patterns
	}

	switch name {
	case "subscribe", "psubscribe":
		if len(args) == 0 {
			return one(wrongArgs(name))
		}
		out := make([]*proto.Reply, 0, len(args))
		for _, ch := range args {
			set[ch] = struct{}{}
			out = append(out, subAck(name, ch, c))
		}
		return out
	}

	if len(args) == 0 {
		for ch := range set {
			args = append(args, ch)
		}
		sort.Strings(args)
		if len(args) == 0 {
			return one(proto.ArrayReply(
				proto.BulkReply(name), proto.NullReply(), proto.IntReply(int64(len(c.channels)+len(c.patterns))),
			))
		}
	}
	out := make([]*proto.Reply, 0, len(args))
	for _, ch := range args {
		delete(set, ch)
		out = append(out, subAck(name, ch, c))
	}
	return out
}

func subAck(kind, channel string, c *conn) *proto.Reply {
	return proto.ArrayReply(
		proto.BulkReply(kind),
		proto.BulkReply(channel),
		proto.IntReply(int64(len(c.channels)+len(c.patterns))),
	)
}

func (s *Server) unsubscribeAll(c *conn) {
	c.after = nil
	c.channels = make(map[string]struct{})
	c.patterns = make(map[string]struct{})
}

// publish delivers message to subscribers and returns the number of
// receivers. The caller holds s.mu; the frames are written by c once its
// own reply is sent.
func (s *Server) publish(c *conn, channel, message string) int {
	type delivery struct {
		c     *conn
		frame *proto.Reply
	}
	var out []delivery
	for sub := range s.conns {
		if _, ok := sub.channels[channel]; ok {
			out = append(out, delivery{sub, proto.BulkArray("message", channel, message)})
		}
		for pattern := range sub.patterns {
			if matchGlob(pattern, channel) {
				out = append(out, delivery{sub, proto.BulkArray("pmessage", pattern, channel, message)})
			}
		}
	}
	if len(out) > 0 {
		c.after = append(c.after, func() {
			for _, d := range out {
				_ = d.c.write(nil, d.frame)
			}
		})
	}
	return len(out)
}

//------------------------------------------------------------------------------

func one(r *proto.Reply) []*proto.Reply {
	return []*proto.Reply{r}
}

func wrongArgs(name string) *proto.Reply {
	return proto.ErrorReply("ERR wrong number of arguments for '" + name + "' command")
}

var errWrongType = proto.ErrorReply("WRONGTYPE Operation against a key holding the wrong kind of value")

func now() time.Time {
	return time.Now()
}
