package gateway

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-myhome/internal/dispatcher"
)

// OpenWebNet control frames.
const (
	frameACK            = "*#*1##"
	frameNACK           = "*#*0##"
	frameCommandSession = "*99*0##"
	frameTerminator     = "##"
)

// Default timeouts for gateway communication.
const (
	// defaultPort is the standard OpenWebNet gateway port.
	defaultPort = 20000

	// defaultConnectTimeout bounds dial plus handshake.
	defaultConnectTimeout = 5 * time.Second

	// defaultWriteTimeout bounds a single frame write.
	defaultWriteTimeout = 5 * time.Second

	// defaultReadTimeout bounds waiting for an ACK.
	defaultReadTimeout = 5 * time.Second

	// maxFrameSize caps a reply frame; gateway replies are short.
	maxFrameSize = 1024
)

// Dialer opens command sessions. It satisfies dispatcher.Dialer.
type Dialer struct {
	// Host is the gateway address.
	Host string

	// Port is the gateway TCP port. Default: 20000.
	Port int

	// ConnectTimeout bounds dial plus handshake. Default: 5s.
	ConnectTimeout time.Duration

	// WriteTimeout bounds each frame write. Default: 5s.
	WriteTimeout time.Duration

	// ReadTimeout bounds waiting for each ACK. Default: 5s.
	ReadTimeout time.Duration

	// AwaitAck makes Send wait for the gateway's ACK/NACK after each frame.
	AwaitAck bool
}

var _ dispatcher.Dialer = (*Dialer)(nil)

// Address returns host:port after defaults.
func (d *Dialer) Address() string {
	port := d.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(port))
}

// Open dials the gateway and negotiates a command session.
func (d *Dialer) Open(ctx context.Context) (dispatcher.Session, error) {
	s, err := d.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Dial is Open with a concrete return type.
func (d *Dialer) Dial(ctx context.Context) (*Session, error) {
	connectTimeout := orDefault(d.ConnectTimeout, defaultConnectTimeout)
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var nd net.Dialer
	conn, err := nd.DialContext(connectCtx, "tcp", d.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, d.Address(), err)
	}

	s := &Session{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writeTimeout: orDefault(d.WriteTimeout, defaultWriteTimeout),
		readTimeout:  orDefault(d.ReadTimeout, defaultReadTimeout),
		awaitAck:     d.AwaitAck,
	}

	deadline, _ := connectCtx.Deadline()
	if err := s.handshake(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: handshake: %w", ErrConnectionFailed, err)
	}

	return s, nil
}

// Session is one negotiated command session.
//
// Thread Safety: Send and Close may be called from different goroutines,
// but frames are written one at a time.
type Session struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
	readTimeout  time.Duration
	awaitAck     bool

	mu     sync.Mutex
	closed bool
}

// handshake performs greeting, session request and grant.
func (s *Session) handshake(deadline time.Time) error {
	if err := s.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	defer s.conn.SetDeadline(time.Time{}) //nolint:errcheck // best-effort reset

	if err := s.expectACK(); err != nil {
		return fmt.Errorf("greeting: %w", err)
	}
	if _, err := s.conn.Write([]byte(frameCommandSession)); err != nil {
		return fmt.Errorf("session request: %w", err)
	}
	if err := s.expectACK(); err != nil {
		return fmt.Errorf("session grant: %w", err)
	}
	return nil
}

// Send writes one frame and, if configured, waits for its ACK.
func (s *Session) Send(ctx context.Context, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("send: %w", ctx.Err())
	default:
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := s.conn.Write([]byte(payload)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if !s.awaitAck {
		return nil
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	return s.expectACK()
}

// Close closes the connection. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// expectACK reads one frame and maps it to nil, ErrNack or ErrUnexpectedReply.
func (s *Session) expectACK() error {
	frame, err := readFrame(s.reader)
	if err != nil {
		return err
	}
	switch frame {
	case frameACK:
		return nil
	case frameNACK:
		return ErrNack
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, frame)
	}
}

// readFrame reads up to and including the next "##".
func readFrame(r *bufio.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("read frame: %w", err)
		}
		buf.WriteByte(b)
		if buf.Len() > maxFrameSize {
			return "", ErrFrameTooLong
		}
		if bytes.HasSuffix(buf.Bytes(), []byte(frameTerminator)) {
			return buf.String(), nil
		}
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
