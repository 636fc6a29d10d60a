package ingest

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/rs/zerolog"

	"diffraxia-go/internal/container"
)

// Recorder receives every raw message before it is decoded.
// output.RawLogWriter implements it.
type Recorder interface {
	Record(payload []byte) error
}

type Options struct {
	Endpoint string
	Recorder Recorder
	// Logger reports receive and decode problems. The zero value is silent.
	Logger zerolog.Logger
	// LogEvery rate-limits those reports to one in LogEvery.
	LogEvery int
}

const recvTimeout = 250 * time.Millisecond

// Stream connects a PULL socket to opts.Endpoint and returns the decoded start,
// image and end messages. The channel is closed when ctx is done.
func Stream(ctx context.Context, opts Options) (<-chan Message, error) {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(opts.Endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}

	out := make(chan Message, 128)
	go func() {
		defer close(out)
		defer socket.Close()
		p := newPump(opts)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				p.logf(err, "ingest recv error")
				continue
			}
			if !p.forward(ctx, msg, out) {
				return
			}
		}
	}()

	return out, nil
}

// FromBytes decodes raw messages from in, for example from the simulator. The
// returned channel is closed when in is closed or ctx is done.
func FromBytes(ctx context.Context, in <-chan []byte, opts Options) <-chan Message {
	out := make(chan Message, 128)
	go func() {
		defer close(out)
		p := newPump(opts)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				if !p.forward(ctx, msg, out) {
					return
				}
			}
		}
	}()
	return out
}

// Frames forwards the frame of every image message until an end message, the
// close of in, or ctx is done. Start messages are dropped.
func Frames(ctx context.Context, in <-chan Message) <-chan container.Group {
	out := make(chan container.Group)
	go func() {
		defer close(out)
		for {
			var msg Message
			var ok bool
			select {
			case <-ctx.Done():
				return
			case msg, ok = <-in:
			}
			if !ok || msg.Type == TypeEnd {
				return
			}
			if msg.Type != TypeImage || msg.Frame == nil {
				continue
			}
			select {
			case out <- msg.Frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type pump struct {
	opts    Options
	counter int
}

func newPump(opts Options) *pump {
	if opts.LogEvery < 1 {
		opts.LogEvery = 1
	}
	return &pump{opts: opts}
}

// forward records, decodes and sends one message. It returns false once ctx is
// done.
func (p *pump) forward(ctx context.Context, msg []byte, out chan<- Message) bool {
	if p.opts.Recorder != nil {
		if err := p.opts.Recorder.Record(msg); err != nil {
			p.logf(err, "raw log write failed")
		}
	}

	decoded, err := Decode(msg)
	if err != nil {
		p.logf(err, "ingest decode skipped message")
		return true
	}
	switch decoded.Type {
	case TypeStart, TypeImage, TypeEnd:
	default:
		p.logf(errors.New(decoded.Type), "ingest ignoring message type")
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case out <- decoded:
		return true
	}
}

func (p *pump) logf(err error, msg string) {
	p.counter++
	if p.counter%p.opts.LogEvery == 0 {
		p.opts.Logger.Warn().Err(err).Msg(msg)
	}
}
