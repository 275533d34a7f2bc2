package redis

import (
	"context"
	"strconv"

	"github.com/go-redis/singleconn/internal"
	"github.com/go-redis/singleconn/internal/proto"
)

// Reply is a decoded server reply.
type Reply = proto.Reply

type Cmder interface {
	// Name returns the lower cased command name, e.g. "get".
	Name() string
	// FullName includes the sub command of container commands, e.g. "config get".
	FullName() string
	Args() []interface{}
	String() string
	stringArg(int) string

	// readReply projects a non-error reply into the typed result.
	readReply(r *proto.Reply) error

	setQueued(bool)
	// Queued reports whether the server accepted the command into a
	// MULTI block.
	Queued() bool

	SetErr(error)
	Err() error
}

func setCmdsErr(cmds []Cmder, e error) {
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			cmd.SetErr(e)
		}
	}
}

func cmdString(cmd Cmder, val interface{}) string {
	b := make([]byte, 0, 64)

	for i, arg := range cmd.Args() {
		if i > 0 {
			b = append(b, ' ')
		}
		b = internal.AppendArg(b, arg)
	}

	if err := cmd.Err(); err != nil {
		b = append(b, ": "...)
		b = append(b, err.Error()...)
	} else if val != nil {
		b = append(b, ": "...)
		b = internal.AppendArg(b, val)
	}

	return string(b)
}

//------------------------------------------------------------------------------

type baseCmd struct {
	ctx    context.Context
	args   []interface{}
	err    error
	queued bool
}

func (cmd *baseCmd) Name() string {
	if len(cmd.args) == 0 {
		return ""
	}
	// Cmd name must be lower cased.
	return internal.ToLower(cmd.stringArg(0))
}

func (cmd *baseCmd) FullName() string {
	switch name := cmd.Name(); name {
	case "config", "client":
		if len(cmd.args) == 1 {
			return name
		}
		if s2, ok := cmd.args[1].(string); ok {
			return name + " " + internal.ToLower(s2)
		}
		return name
	default:
		return name
	}
}

func (cmd *baseCmd) Args() []interface{} {
	return cmd.args
}

func (cmd *baseCmd) stringArg(pos int) string {
	if pos < 0 || pos >= len(cmd.args) {
		return ""
	}
	s, _ := cmd.args[pos].(string)
	return s
}

func (cmd *baseCmd) setQueued(queued bool) {
	cmd.queued = queued
}

func (cmd *baseCmd) Queued() bool {
	return cmd.queued
}

func (cmd *baseCmd) SetErr(e error) {
	cmd.err = e
}

func (cmd *baseCmd) Err() error {
	return cmd.err
}

//------------------------------------------------------------------------------

// Cmd is the result of Do. It keeps the reply as it was decoded.
type Cmd struct {
	baseCmd

	val *proto.Reply
}

var _ Cmder = (*Cmd)(nil)

func NewCmd(ctx context.Context, args ...interface{}) *Cmd {
	return &Cmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *Cmd) String() string {
	if cmd.val == nil {
		return cmdString(cmd, nil)
	}
	return cmdString(cmd, cmd.val.String())
}

// Val returns the reply as string, int64, []interface{} or nil.
func (cmd *Cmd) Val() interface{} {
	if cmd.val == nil {
		return nil
	}
	return cmd.val.Interface()
}

func (cmd *Cmd) Result() (interface{}, error) {
	return cmd.Val(), cmd.err
}

// Reply returns the decoded reply, or nil if there was none.
func (cmd *Cmd) Reply() *Reply {
	return cmd.val
}

func (cmd *Cmd) Text() (string, error) {
	if cmd.err != nil {
		return "", cmd.err
	}
	if cmd.val == nil || cmd.val.IsNull() {
		return "", nil
	}
	if s, ok := cmd.val.Text(); ok {
		return s, nil
	}
	return "", replyTypeError(cmd, cmd.val)
}

func (cmd *Cmd) Int64() (int64, error) {
	if cmd.err != nil {
		return 0, cmd.err
	}
	if cmd.val == nil {
		return 0, nil
	}
	switch cmd.val.Kind {
	case proto.KindInteger:
		return cmd.val.Int, nil
	case proto.KindBulk, proto.KindStatus:
		return strconv.ParseInt(cmd.val.Str, 10, 64)
	case proto.KindNull:
		return 0, nil
	default:
		return 0, replyTypeError(cmd, cmd.val)
	}
}

func (cmd *Cmd) readReply(r *proto.Reply) error {
	cmd.val = r
	return nil
}

//------------------------------------------------------------------------------

// StatusCmd carries a status reply such as "OK" or "PONG".
type StatusCmd struct {
	baseCmd

	val string
}

var _ Cmder = (*StatusCmd)(nil)

func NewStatusCmd(ctx context.Context, args ...interface{}) *StatusCmd {
	return &StatusCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *StatusCmd) SetVal(val string) {
	cmd.val = val
}

func (cmd *StatusCmd) Val() string {
	return cmd.val
}

func (cmd *StatusCmd) Result() (string, error) {
	return cmd.val, cmd.err
}

func (cmd *StatusCmd) String() string {
	return cmdString(cmd, cmd.val)
}

func (cmd *StatusCmd) readReply(r *proto.Reply) error {
	if r.Kind != proto.KindStatus {
		return replyTypeError(cmd, r)
	}
	cmd.val = r.Str
	return nil
}

//------------------------------------------------------------------------------

// BoolCmd reports whether a write or removal took effect. What counts as
// success depends on the command, see successPredicates.
type BoolCmd struct {
	baseCmd

	val bool
}

var _ Cmder = (*BoolCmd)(nil)

func NewBoolCmd(ctx context.Context, args ...interface{}) *BoolCmd {
	return &BoolCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *BoolCmd) SetVal(val bool) {
	cmd.val = val
}

func (cmd *BoolCmd) Val() bool {
	return cmd.val
}

func (cmd *BoolCmd) Result() (bool, error) {
	return cmd.val, cmd.err
}

func (cmd *BoolCmd) String() string {
	return cmdString(cmd, cmd.val)
}

func (cmd *BoolCmd) readReply(r *proto.Reply) error {
	ok, valid := successPredicateFor(cmd.FullName())(r)
	if !valid {
		return replyTypeError(cmd, r)
	}
	cmd.val = ok
	return nil
}

//------------------------------------------------------------------------------

type IntCmd struct {
	baseCmd

	val int64
}

var _ Cmder = (*IntCmd)(nil)

func NewIntCmd(ctx context.Context, args ...interface{}) *IntCmd {
	return &IntCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *IntCmd) SetVal(val int64) {
	cmd.val = val
}

func (cmd *IntCmd) Val() int64 {
	return cmd.val
}

func (cmd *IntCmd) Result() (int64, error) {
	return cmd.val, cmd.err
}

func (cmd *IntCmd) String() string {
	return cmdString(cmd, cmd.val)
}

func (cmd *IntCmd) readReply(r *proto.Reply) error {
	if r.Kind != proto.KindInteger {
		return replyTypeError(cmd, r)
	}
	cmd.val = r.Int
	return nil
}

//------------------------------------------------------------------------------

// StringCmd carries a bulk string. A missing key yields an empty value and
// no error; use IsNil to tell it apart from an empty string.
type StringCmd struct {
	baseCmd

	val   string
	isNil bool
}

var _ Cmder = (*StringCmd)(nil)

func NewStringCmd(ctx context.Context, args ...interface{}) *StringCmd {
	return &StringCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *StringCmd) SetVal(val string) {
	cmd.val = val
}

func (cmd *StringCmd) Val() string {
	return cmd.val
}

func (cmd *StringCmd) Result() (string, error) {
	return cmd.val, cmd.err
}

// IsNil reports whether the server replied with a null, e.g. because the
// key does not exist.
func (cmd *StringCmd) IsNil() bool {
	return cmd.isNil
}

func (cmd *StringCmd) Bytes() ([]byte, error) {
	return []byte(cmd.val), cmd.err
}

func (cmd *StringCmd) Int64() (int64, error) {
	if cmd.err != nil {
		return 0, cmd.err
	}
	return strconv.ParseInt(cmd.Val(), 10, 64)
}

func (cmd *StringCmd) Float64() (float64, error) {
	if cmd.err != nil {
		return 0, cmd.err
	}
	return strconv.ParseFloat(cmd.Val(), 64)
}

func (cmd *StringCmd) String() string {
	return cmdString(cmd, cmd.val)
}

func (cmd *StringCmd) readReply(r *proto.Reply) error {
	switch r.Kind {
	case proto.KindBulk, proto.KindStatus:
		cmd.val = r.Str
	case proto.KindNull:
		cmd.val = ""
		cmd.isNil = true
	default:
		return replyTypeError(cmd, r)
	}
	return nil
}

//------------------------------------------------------------------------------

// FloatCmd carries a score. A null or unparsable reply yields 0.
type FloatCmd struct {
	baseCmd

	val float64
}

var _ Cmder = (*FloatCmd)(nil)

func NewFloatCmd(ctx context.Context, args ...interface{}) *FloatCmd {
	return &FloatCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *FloatCmd) SetVal(val float64) {
	cmd.val = val
}

func (cmd *FloatCmd) Val() float64 {
	return cmd.val
}

func (cmd *FloatCmd) Result() (float64, error) {
	return cmd.val, cmd.err
}

func (cmd *FloatCmd) String() string {
	return cmdString(cmd, cmd.val)
}

func (cmd *FloatCmd) readReply(r *proto.Reply) error {
	switch r.Kind {
	case proto.KindBulk, proto.KindStatus:
		f, err := strconv.ParseFloat(r.Str, 64)
		if err != nil {
			f = 0
		}
		cmd.val = f
	case proto.KindInteger:
		cmd.val = float64(r.Int)
	case proto.KindNull:
		cmd.val = 0
	default:
		return replyTypeError(cmd, r)
	}
	return nil
}

//------------------------------------------------------------------------------

// StringSliceCmd carries a collection. A null or empty reply yields an
// empty, non-nil slice.
type StringSliceCmd struct {
	baseCmd

	val []string
}

var _ Cmder = (*StringSliceCmd)(nil)

func NewStringSliceCmd(ctx context.Context, args ...interface{}) *StringSliceCmd {
	return &StringSliceCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *StringSliceCmd) SetVal(val []string) {
	cmd.val = val
}

func (cmd *StringSliceCmd) Val() []string {
	return cmd.val
}

func (cmd *StringSliceCmd) Result() ([]string, error) {
	return cmd.val, cmd.err
}

func (cmd *StringSliceCmd) String() string {
	return cmdString(cmd, cmd.val)
}

func (cmd *StringSliceCmd) readReply(r *proto.Reply) error {
	switch r.Kind {
	case proto.KindNull:
		cmd.val = make([]string, 0)
		return nil
	case proto.KindArray:
	default:
		return replyTypeError(cmd, r)
	}

	val := make([]string, len(r.Array))
	for i, elem := range r.Array {
		s, ok := elemString(elem)
		if !ok {
			return replyTypeError(cmd, elem)
		}
		val[i] = s
	}
	cmd.val = val
	return nil
}

func elemString(r *proto.Reply) (string, bool) {
	switch r.Kind {
	case proto.KindBulk, proto.KindStatus:
		return r.Str, true
	case proto.KindInteger:
		return strconv.FormatInt(r.Int, 10), true
	case proto.KindNull:
		return "", true
	default:
		return "", false
	}
}

//------------------------------------------------------------------------------

type KeyValue struct {
	Key   string
	Value string
}

// KeyValueSliceCmd carries field/value pairs in the order the server sent
// them.
type KeyValueSliceCmd struct {
	baseCmd

	val []KeyValue
}

var _ Cmder = (*KeyValueSliceCmd)(nil)

func NewKeyValueSliceCmd(ctx context.Context, args ...interface{}) *KeyValueSliceCmd {
	return &KeyValueSliceCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *KeyValueSliceCmd) SetVal(val []KeyValue) {
	cmd.val = val
}

func (cmd *KeyValueSliceCmd) Val() []KeyValue {
	return cmd.val
}

func (cmd *KeyValueSliceCmd) Result() ([]KeyValue, error) {
	return cmd.val, cmd.err
}

// Map returns the pairs as a map. Later duplicates win.
func (cmd *KeyValueSliceCmd) Map() map[string]string {
	m := make(map[string]string, len(cmd.val))
	for _, kv := range cmd.val {
		m[kv.Key] = kv.Value
	}
	return m
}

func (cmd *KeyValueSliceCmd) String() string {
	return cmdString(cmd, cmd.val)
}

func (cmd *KeyValueSliceCmd) readReply(r *proto.Reply) error {
	switch r.Kind {
	case proto.KindNull:
		cmd.val = make([]KeyValue, 0)
		return nil
	case proto.KindArray:
	default:
		return replyTypeError(cmd, r)
	}

	if len(r.Array)%2 != 0 {
		return replyTypeError(cmd, r)
	}

	val := make([]KeyValue, 0, len(r.Array)/2)
	for i := 0; i < len(r.Array); i += 2 {
		key, ok := elemString(r.Array[i])
		if !ok {
			return replyTypeError(cmd, r.Array[i])
		}
		value, ok := elemString(r.Array[i+1])
		if !ok {
			return replyTypeError(cmd, r.Array[i+1])
		}
		val = append(val, KeyValue{Key: key, Value: value})
	}
	cmd.val = val
	return nil
}

//------------------------------------------------------------------------------

// ExecCmd is the result of EXEC. On commit the queued commands receive
// their results. On abort Aborted reports true, Err stays nil and every
// queued command fails with TxFailedErr.
type ExecCmd struct {
	baseCmd

	cmds    []Cmder
	aborted bool
}

var _ Cmder = (*ExecCmd)(nil)

func newExecCmd(ctx context.Context, cmds []Cmder) *ExecCmd {
	return &ExecCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: []interface{}{"exec"},
		},
		cmds: cmds,
	}
}

// Val returns the queued commands.
func (cmd *ExecCmd) Val() []Cmder {
	return cmd.cmds
}

func (cmd *ExecCmd) Result() ([]Cmder, error) {
	return cmd.cmds, cmd.err
}

// Aborted reports whether the server refused to run the transaction
// because a watched key changed.
func (cmd *ExecCmd) Aborted() bool {
	return cmd.aborted
}

func (cmd *ExecCmd) String() string {
	if cmd.aborted {
		return cmdString(cmd, "(aborted)")
	}
	return cmdString(cmd, nil)
}

func (cmd *ExecCmd) readReply(r *proto.Reply) error {
	switch r.Kind {
	case proto.KindNull:
		cmd.aborted = true
		setCmdsErr(cmd.cmds, TxFailedErr)
		return nil
	case proto.KindArray:
	default:
		return replyTypeError(cmd, r)
	}

	if len(r.Array) != len(cmd.cmds) {
		return proto.NewProtocolError(
			"exec returned " + strconv.Itoa(len(r.Array)) +
				" replies for " + strconv.Itoa(len(cmd.cmds)) + " queued commands")
	}
	for i, c := range cmd.cmds {
		setCmdReply(c, r.Array[i])
	}
	return nil
}
