package serialport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const (
	DefaultBaudrate    = 9600
	DefaultReadTimeout = time.Second

	// BreakDuration is how long the line is held in break to reset a target.
	BreakDuration = 250 * time.Millisecond

	maxLineLength = 64 * 1024
)

var (
	ErrClosed      = errors.New("serial port closed")
	ErrLineTooLong = errors.New("serial line exceeds maximum length")
	ErrNoBreak     = errors.New("serial connection cannot send a break")
)

// Conn is the part of serial.Port the host uses. Reads return 0, nil when the
// read timeout expires.
type Conn interface {
	io.ReadWriteCloser
	Break(time.Duration) error
}

type inputResetter interface {
	ResetInputBuffer() error
}

// Port is a line-oriented view over a serial connection to a target.
type Port struct {
	name string
	conn Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	readMu  sync.Mutex
	pending []byte
	chunk   []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Open opens name at baud with 8N1 framing. readTimeout bounds every
// underlying read so that ReadLine can notice cancellation.
func Open(name string, baud int, readTimeout time.Duration, log zerolog.Logger) (*Port, error) {
	if baud <= 0 {
		baud = DefaultBaudrate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	log.Debug().Str("port", name).Int("baudrate", baud).Dur("read_timeout", readTimeout).Msg("Opened serial port")

	return New(name, p, log), nil
}

// New wraps an already open connection.
func New(name string, conn Conn, log zerolog.Logger) *Port {
	return &Port{
		name:   name,
		conn:   conn,
		log:    log,
		chunk:  make([]byte, 256),
		closed: make(chan struct{}),
	}
}

func (p *Port) Name() string { return p.name }

// ReadLine returns the next line without its terminator. It blocks until a
// full line arrives, the context is done, or the port is closed.
func (p *Port) ReadLine(ctx context.Context) (string, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	for {
		if i := bytes.IndexByte(p.pending, '\n'); i >= 0 {
			line := bytes.TrimRight(p.pending[:i], "\r")
			out := string(line)
			p.pending = p.pending[i+1:]
			return out, nil
		}

		if len(p.pending) > maxLineLength {
			p.pending = nil
			return "", ErrLineTooLong
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		if p.isClosed() {
			return "", ErrClosed
		}

		n, err := p.conn.Read(p.chunk)
		if n > 0 {
			p.pending = append(p.pending, p.chunk[:n]...)
		}
		if err != nil {
			if p.isClosed() {
				return "", ErrClosed
			}
			if errors.Is(err, io.EOF) && len(p.pending) > 0 {
				line := string(bytes.TrimRight(p.pending, "\r"))
				p.pending = nil
				return line, nil
			}
			return "", fmt.Errorf("failed to read from %s: %w", p.name, err)
		}
	}
}

// Read reads raw bytes, bypassing line buffering. Used by the terminal.
func (p *Port) Read(b []byte) (int, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}

	return p.conn.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	return p.conn.Write(b)
}

// WriteString writes s as is.
func (p *Port) WriteString(s string) error {
	_, err := p.Write([]byte(s))
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", p.name, err)
	}
	return nil
}

// Reset holds the line in break, which DAPLink and ST-Link interfaces treat
// as a target reset, then drops any bytes received before the reset.
func (p *Port) Reset() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.log.Debug().Str("port", p.name).Dur("duration", BreakDuration).Msg("Sending break to reset target")

	if err := p.conn.Break(BreakDuration); err != nil {
		return fmt.Errorf("%w: %v", ErrNoBreak, err)
	}

	p.readMu.Lock()
	p.pending = nil
	p.readMu.Unlock()

	if r, ok := p.conn.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			p.log.Debug().Err(err).Msg("Failed to flush input buffer after reset")
		}
	}

	return nil
}

func (p *Port) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}
