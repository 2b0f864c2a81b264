// Package session implements the session and line editor of spec §4.L: a
// per-connection goroutine pair (reader, writer) feeding completed lines
// to the driver and accepting CRLF-terminated text to send back.
package session

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Capabilities describes what the connected client negotiated or was
// told to assume — the renderer adapter's opts struct (spec §6) mirrors
// this shape.
type Capabilities struct {
	ANSI        bool
	Unicode     bool
	Width       int
	Height      int
	ColorSystem string
}

// Session is one connected player's I/O state: identity, negotiated
// capabilities, the line editor assembling its input, and the queues the
// reader/writer goroutines use to hand off with the rest of the driver.
//
// Network I/O runs on dedicated goroutines; only Send/Lines/IsClosed are
// meant to be touched from the tick loop or command dispatch.
type Session struct {
	ID   string // "" until login; then ident.SessionID(name)
	conn net.Conn
	Caps Capabilities

	editor *LineEditor

	// Lines receives one completed input line at a time.
	Lines chan string
	// OutQueue is drained by the writer goroutine; Send is the only
	// producer.
	OutQueue chan string

	mu        sync.Mutex // guards conn.Write
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

// NewSession wraps conn as a session identified by id (may be reassigned
// once login succeeds), with the given capabilities.
func NewSession(id string, conn net.Conn, caps Capabilities, log *zap.Logger) *Session {
	return &Session{
		ID:       id,
		conn:     conn,
		Caps:     caps,
		editor:   NewLineEditor(caps.ANSI),
		Lines:    make(chan string, 16),
		OutQueue: make(chan string, 64),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.String("session", id)),
	}
}

// Start launches the reader and writer goroutines. Call once per session.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

func (s *Session) readLoop() {
	defer s.Close()

	r := bufio.NewReader(s.conn)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("session read error", zap.Error(err))
			}
			return
		}
		line, ok := s.editor.Feed(b)
		if !ok {
			continue
		}
		select {
		case s.Lines <- line:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case text := <-s.OutQueue:
			s.mu.Lock()
			_, err := s.conn.Write([]byte(toCRLF(text) + "\r\n"))
			s.mu.Unlock()
			if err != nil {
				if !s.closed.Load() {
					s.log.Debug("session write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// toCRLF rewrites bare '\n' line breaks within text to '\r\n', so
// multi-line world output always reaches the wire in the line-oriented
// CRLF form spec §6 requires regardless of how the caller built the
// string.
func toCRLF(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && (i == 0 || text[i-1] != '\r') {
			b.WriteByte('\r')
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

// Send queues text for delivery. Non-blocking: a session whose OutQueue
// is full is disconnected rather than allowed to stall the caller — the
// same backpressure discipline the teacher's session applies to its
// OutQueue channel.
func (s *Session) Send(text string) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- text:
	default:
		s.log.Warn("output queue full, disconnecting slow session")
		s.Close()
	}
}

// Close shuts the session down idempotently.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

// IsClosed reports whether the session has been closed.
func (s *Session) IsClosed() bool { return s.closed.Load() }
