package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Terminal control characters.
const (
	CtrlB = 0x02 // reset the target
	CtrlC = 0x03 // quit
	CtrlE = 0x05 // toggle local echo
	CtrlH = 0x08 // help
)

const terminalHelp = "\r\n--- Ctrl-B: reset target | Ctrl-E: toggle echo | Ctrl-C: quit | Ctrl-H: help ---\r\n"

var errQuit = errors.New("terminal quit requested")

type terminal struct {
	port *Port
	out  io.Writer
	log  zerolog.Logger

	mu   sync.Mutex
	echo bool
}

// Terminal pipes in to the port and the port to out until ctx is done, in
// reaches EOF, or the user presses Ctrl-C. The caller owns the port and
// closes it afterwards.
func Terminal(ctx context.Context, port *Port, in io.Reader, out io.Writer, echo bool, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := &terminal{port: port, out: out, echo: echo, log: log}

	errs := make(chan error, 2)
	go func() { errs <- t.deviceToOutput(ctx) }()
	go func() { errs <- t.inputToDevice(in) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) || errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
}

func (t *terminal) deviceToOutput(ctx context.Context) error {
	buf := make([]byte, 1024)

	for ctx.Err() == nil {
		n, err := t.port.Read(buf)
		if n > 0 {
			if werr := t.write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("serial read failed: %w", err)
		}
	}

	return nil
}

func (t *terminal) inputToDevice(in io.Reader) error {
	buf := make([]byte, 256)

	for {
		n, err := in.Read(buf)
		if n > 0 {
			if perr := t.handleInput(buf[:n]); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
	}
}

// handleInput forwards data to the port, acting on control characters.
func (t *terminal) handleInput(data []byte) error {
	start := 0

	flush := func(end int) error {
		if end <= start {
			return nil
		}
		chunk := data[start:end]
		if _, err := t.port.Write(chunk); err != nil {
			return fmt.Errorf("serial write failed: %w", err)
		}
		if t.echoEnabled() {
			return t.write(chunk)
		}
		return nil
	}

	for i, b := range data {
		switch b {
		case CtrlB, CtrlC, CtrlE, CtrlH:
		default:
			continue
		}

		if err := flush(i); err != nil {
			return err
		}
		start = i + 1

		switch b {
		case CtrlC:
			return errQuit
		case CtrlB:
			if err := t.port.Reset(); err != nil {
				t.log.Warn().Err(err).Msg("Unable to reset target")
			}
		case CtrlE:
			t.mu.Lock()
			t.echo = !t.echo
			t.mu.Unlock()
		case CtrlH:
			if err := t.write([]byte(terminalHelp)); err != nil {
				return err
			}
		}
	}

	return flush(len(data))
}

func (t *terminal) echoEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.echo
}

func (t *terminal) write(b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.out.Write(b)
	return err
}
