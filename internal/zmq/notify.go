package zmq

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cryptonote-tools/lws-go/internal/lwserr"
)

// topicSignals maps the daemon's in-process ZMQ PUB topics to the
// lwserr.Code the core should observe, grounded on
// original_source/src/light_wallet_server/error.h's comments
// ("In process ZMQ PUB to abort the process/scan was received").
var topicSignals = map[string]lwserr.Code{
	"abort-process": lwserr.SignalAbortProcess,
	"abort-scan":    lwserr.SignalAbortScan,
	"reorg":         lwserr.BlockchainReorg,
}

// NotifyConfig configures the ZMQ SUB connection used to watch for
// daemon-side abort/reorg signals (spec.md §4.C9, §5 "Cancellation and
// timeouts").
type NotifyConfig struct {
	Endpoint       string
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Notify subscribes to every topic on cfg.Endpoint and decodes each
// published message's topic frame into an lwserr.Code sent on out: a
// recognised topic yields its mapped Code (SignalAbortProcess,
// SignalAbortScan, BlockchainReorg); anything else yields SignalUnknown,
// mirroring original_source's "An unknown in process ZMQ PUB was
// received" case. Notify reconnects with cfg.ReconnectDelay on any
// connection error and otherwise returns only when ctx is done; a nil out
// channel or an unparsable endpoint is returned as an error at once.
func Notify(ctx context.Context, cfg NotifyConfig, out chan<- *lwserr.Error, logf func(string, ...any)) error {
	if out == nil {
		return errors.New("zmq: out channel is nil")
	}
	addr, err := ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return err
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	for ctx.Err() == nil {
		if err := notifyOnce(ctx, addr, cfg.ReadTimeout, cfg.WriteTimeout, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if logf != nil {
				logf("zmq notify error: %v", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cfg.ReconnectDelay):
			}
		}
	}

	return nil
}

func notifyOnce(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration, out chan<- *lwserr.Error) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := handshakeNullV3(conn, writeTimeout, readTimeout); err != nil {
		return err
	}

	// Subscribing with an empty topic matches every message; the daemon
	// multiplexes all signal topics on one PUB socket.
	if err := subscribeAll(conn, writeTimeout); err != nil {
		return err
	}

	r := bufio.NewReader(conn)
	for ctx.Err() == nil {
		readDeadline(conn, readTimeout)
		frames, err := readMessage(r)
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			continue
		}

		code, ok := topicSignals[string(frames[0])]
		if !ok {
			code = lwserr.SignalUnknown
		}
		sig := lwserr.New(code)
		select {
		case out <- sig:
		default:
		}
	}
	return nil
}

func handshakeNullV3(conn net.Conn, writeTimeout, readTimeout time.Duration) error {
	g := greetingV3Null()

	// Signature + major version.
	writeDeadline(conn, writeTimeout)
	if _, err := conn.Write(g[:11]); err != nil {
		return fmt.Errorf("handshake: write greeting: %w", err)
	}

	var peer [64]byte
	readDeadline(conn, readTimeout)
	if _, err := ioReadFull(conn, peer[:11]); err != nil {
		return fmt.Errorf("handshake: read greeting: %w", err)
	}

	// Remaining greeting fields.
	writeDeadline(conn, writeTimeout)
	if _, err := conn.Write(g[11:]); err != nil {
		return fmt.Errorf("handshake: write greeting rest: %w", err)
	}
	readDeadline(conn, readTimeout)
	if _, err := ioReadFull(conn, peer[11:]); err != nil {
		return fmt.Errorf("handshake: read greeting rest: %w", err)
	}

	// Send READY.
	meta, err := encodeREADYMetadata("SUB")
	if err != nil {
		return err
	}

	var ready bytes.Buffer
	ready.WriteByte(byte(len("READY")))
	ready.WriteString("READY")
	ready.Write(meta)

	writeDeadline(conn, writeTimeout)
	if err := writeFrame(conn, true, false, ready.Bytes()); err != nil {
		return fmt.Errorf("handshake: send READY: %w", err)
	}

	// Receive peer READY (ignore contents).
	readDeadline(conn, readTimeout)
	_, _, _, err = readFrame(conn)
	if err != nil {
		return fmt.Errorf("handshake: read READY: %w", err)
	}

	return nil
}

func subscribeAll(conn net.Conn, writeTimeout time.Duration) error {
	body := []byte{0x01}
	writeDeadline(conn, writeTimeout)
	if err := writeFrame(conn, false, false, body); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func readMessage(r *bufio.Reader) ([][]byte, error) {
	var frames [][]byte
	for {
		cmd, more, body, err := readFrame(r)
		if err != nil {
			return nil, err
		}
		if cmd {
			// Ignore commands in data stream.
			continue
		}
		frames = append(frames, body)
		if !more {
			return frames, nil
		}
	}
}

func ioReadFull(conn net.Conn, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		m, err := conn.Read(b[n:])
		if m > 0 {
			n += m
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
