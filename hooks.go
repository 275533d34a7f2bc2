package redis

import (
	"context"
	"net"
	"sync"
)

type (
	DialHook    func(ctx context.Context, network, addr string) (net.Conn, error)
	ProcessHook func(ctx context.Context, cmd Cmder) error
)

// Hook intercepts dialing and command processing. Each method receives the
// next hook in the chain and returns a wrapped one; returning nil keeps the
// chain unchanged.
type Hook interface {
	DialHook(next DialHook) DialHook
	ProcessHook(next ProcessHook) ProcessHook
}

type hooks struct {
	dial    DialHook
	process ProcessHook
}

func (h *hooks) setDefaults() {
	if h.dial == nil {
		h.dial = func(ctx context.Context, network, addr string) (net.Conn, error) { return nil, nil }
	}
	if h.process == nil {
		h.process = func(ctx context.Context, cmd Cmder) error { return nil }
	}
}

type hooksMixin struct {
	hooksMu *sync.RWMutex

	slice   []Hook
	initial hooks
	current hooks
}

func (hs *hooksMixin) initHooks(hooks hooks) {
	hs.hooksMu = new(sync.RWMutex)
	hs.initial = hooks
	hs.chain()
}

// AddHook is to add a hook to the queue.
// Hook is a function executed during network connection, command execution
// and transaction, it is a first-in-first-out stack queue (FIFO).
// You need to execute the next hook in each hook, unless you want to
// terminate the execution of the command.
// For example, you added hook-1, hook-2:
//
//	client.AddHook(hook-1, hook-2)
//
// hook-1:
//
//	func (Hook1) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
//		return func(ctx context.Context, cmd Cmder) error {
//			print("hook-1 start")
//			next(ctx, cmd)
//			print("hook-1 end")
//			return nil
//		}
//	}
//
// hook-2:
//
//	func (Hook2) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
//		return func(ctx context.Context, cmd redis.Cmder) error {
//			print("hook-2 start")
//			next(ctx, cmd)
//			print("hook-2 end")
//			return nil
//		}
//	}
//
// The execution sequence is:
//
//	hook-1 start -> hook-2 start -> exec redis cmd -> hook-2 end -> hook-1 end
//
// Please note: "next(ctx, cmd)" is very important, it will call the next hook,
// if "next(ctx, cmd)" is not executed, the redis command will not be executed.
//
// The connection is dialed by NewClient, so a DialHook only sees it when
// the hook is passed in Options.Hooks.
func (hs *hooksMixin) AddHook(hook Hook) {
	hs.hooksMu.Lock()
	hs.slice = append(hs.slice, hook)
	hs.hooksMu.Unlock()

	hs.chain()
}

func (hs *hooksMixin) chain() {
	hs.initial.setDefaults()

	hs.hooksMu.Lock()
	defer hs.hooksMu.Unlock()

	hs.current.dial = hs.initial.dial
	hs.current.process = hs.initial.process

	for i := len(hs.slice) - 1; i >= 0; i-- {
		if wrapped := hs.slice[i].DialHook(hs.current.dial); wrapped != nil {
			hs.current.dial = wrapped
		}
		if wrapped := hs.slice[i].ProcessHook(hs.current.process); wrapped != nil {
			hs.current.process = wrapped
		}
	}
}

// withProcess returns a copy of the chain that ends in process instead.
func (hs *hooksMixin) withProcess(process ProcessHook) hooksMixin {
	hs.hooksMu.RLock()
	slice := make([]Hook, len(hs.slice))
	copy(slice, hs.slice)
	initial := hs.initial
	hs.hooksMu.RUnlock()

	initial.process = process
	clone := hooksMixin{slice: slice}
	clone.initHooks(initial)
	return clone
}

func (hs *hooksMixin) dialHook(ctx context.Context, network, addr string) (net.Conn, error) {
	hs.hooksMu.RLock()
	dial := hs.current.dial
	hs.hooksMu.RUnlock()
	return dial(ctx, network, addr)
}

func (hs *hooksMixin) processHook(ctx context.Context, cmd Cmder) error {
	hs.hooksMu.RLock()
	process := hs.current.process
	hs.hooksMu.RUnlock()
	return process(ctx, cmd)
}
