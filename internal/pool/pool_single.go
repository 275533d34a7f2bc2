package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned after the client has been closed.
	ErrClosed = errors.New("redis: client is closed")
	// ErrConnLost is returned when the transport broke or was abandoned in
	// the middle of a round trip. The connection is unusable afterwards.
	ErrConnLost = errors.New("redis: connection lost")
)

// Stats contains connection usage statistics.
type Stats struct {
	Acquires uint32 // number of times the connection was requested
	Waits    uint32 // number of times a caller had to wait for the connection
	Timeouts uint32 // number of times a caller gave up waiting
	Lost     uint32 // number of times the connection was invalidated
}

// SingleConnPool hands out its one connection to one caller at a time.
// A caller keeps the connection from Get until Put or Remove, which makes
// every round trip, or a whole transaction, exclusive.
type SingleConnPool struct {
	cn  *Conn
	sem chan struct{}

	stats Stats

	mu  sync.Mutex
	err error // why the connection can't be used anymore
}

func NewSingleConnPool(cn *Conn) *SingleConnPool {
	return &SingleConnPool{
		cn:  cn,
		sem: make(chan struct{}, 1),
	}
}

// Get waits until the connection is free or ctx is done.
func (p *SingleConnPool) Get(ctx context.Context) (*Conn, error) {
	if err := p.Err(); err != nil {
		return nil, err
	}

	atomic.AddUint32(&p.stats.Acquires, 1)

	select {
	case p.sem <- struct{}{}:
	default:
		atomic.AddUint32(&p.stats.Waits, 1)

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			atomic.AddUint32(&p.stats.Timeouts, 1)
			return nil, ctx.Err()
		}
	}

	// The previous holder may have lost the connection while we waited.
	if err := p.Err(); err != nil {
		<-p.sem
		return nil, err
	}
	return p.cn, nil
}

// Put releases a healthy connection.
func (p *SingleConnPool) Put(cn *Conn) {
	if p.cn != cn {
		panic("p.cn != cn")
	}
	<-p.sem
}

// Remove invalidates the connection for good, closes the transport and
// releases it. Later calls to Get report reason.
func (p *SingleConnPool) Remove(cn *Conn, reason error) {
	if p.cn != cn {
		panic("p.cn != cn")
	}

	p.mu.Lock()
	if p.err == nil {
		if !errors.Is(reason, ErrConnLost) {
			reason = fmt.Errorf("%w: %w", ErrConnLost, reason)
		}
		p.err = reason
		atomic.AddUint32(&p.stats.Lost, 1)
		_ = cn.Close()
	}
	p.mu.Unlock()

	<-p.sem
}

// Err reports why the connection is unusable, or nil.
func (p *SingleConnPool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *SingleConnPool) Stats() *Stats {
	return &Stats{
		Acquires: atomic.LoadUint32(&p.stats.Acquires),
		Waits:    atomic.LoadUint32(&p.stats.Waits),
		Timeouts: atomic.LoadUint32(&p.stats.Timeouts),
		Lost:     atomic.LoadUint32(&p.stats.Lost),
	}
}

// Close closes the transport. A round trip in progress fails with
// ErrConnLost; every later Get fails with ErrClosed.
func (p *SingleConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if errors.Is(p.err, ErrClosed) {
		return ErrClosed
	}
	wasLost := p.err != nil
	p.err = ErrClosed
	if wasLost {
		return nil
	}
	return p.cn.Close()
}
