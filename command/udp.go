package command

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// MaxDatagram is the largest payload read from the socket.
const MaxDatagram = 1024

// TransportError means the inbound channel could not be established or used.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("command transport %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Listener receives datagrams, parses them, and queues the commands for the
// command task. Parsing happens here, outside any flight-state lock.
type Listener struct {
	conn  net.PacketConn
	queue chan Command

	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// Listen binds a datagram socket on addr. The queue holds up to depth
// commands; further commands are dropped while it is full, the same as a
// lost datagram.
func Listen(addr string, depth int) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, &TransportError{Op: "listen", Addr: addr, Err: err}
	}

	return NewListener(conn, depth), nil
}

// NewListener wraps an existing packet connection.
func NewListener(conn net.PacketConn, depth int) *Listener {
	if depth <= 0 {
		depth = 1
	}

	return &Listener{
		conn:  conn,
		queue: make(chan Command, depth),
		done:  make(chan struct{}),
	}
}

// Addr returns the local address of the socket.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Queue returns the channel of parsed commands. It is closed when Serve
// returns.
func (l *Listener) Queue() <-chan Command {
	return l.queue
}

// Dropped returns the number of commands dropped because the queue was full.
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

// Serve reads datagrams until the listener is closed.
func (l *Listener) Serve() error {
	defer close(l.queue)

	buf := make([]byte, MaxDatagram)

	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-l.done:
				return nil
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return &TransportError{Op: "read", Addr: l.Addr().String(), Err: err}
		}

		l.submit(Parse(buf[:n], time.Now()))
	}
}

func (l *Listener) submit(cmd Command) {
	select {
	case l.queue <- cmd:
	default:
		l.dropped.Add(1)
	}
}

// Close stops Serve and releases the socket. It is safe to call more than
// once.
func (l *Listener) Close() error {
	var err error

	l.closeOnce.Do(func() {
		close(l.done)
		err = l.conn.Close()
	})

	return err
}

// Send writes each verb as its own datagram to addr.
func Send(addr string, verbs ...Verb) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return &TransportError{Op: "dial", Addr: addr, Err: err}
	}
	defer conn.Close()

	for _, v := range verbs {
		_, err := conn.Write([]byte(v))
		if err != nil {
			return &TransportError{Op: "write", Addr: addr, Err: err}
		}
	}

	return nil
}
