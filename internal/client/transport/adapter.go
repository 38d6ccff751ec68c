// Package transport connects the chat client to the relay server. It sends
// queries as text frames and feeds answer frames into a chunk buffer.
package transport

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/research-relay/internal/client/chunk"
	"github.com/zhouzirui/research-relay/internal/config"
)

// DefaultPort is the relay port assumed when none is given.
const DefaultPort = config.DefaultPort

var (
	// ErrConnection marks failures to open or write to the socket.
	ErrConnection = errors.New("connection error")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport closed")
)

const (
	closeGrace = time.Second
	// writeWait bounds every socket write.
	writeWait = 10 * time.Second
)

// Store is the part of the conversation the adapter writes to.
type Store interface {
	AppendUserMessage(text string)
	chunk.Sink
}

// URLForHost derives the relay endpoint from a host string such as
// "example.com", "localhost:5173" or "http://example.com/page". Any port in
// host is replaced by port.
func URLForHost(host, port string) string {
	if port == "" {
		port = DefaultPort
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(hostname(host), port), Path: "/ws"}
	return u.String()
}

func hostname(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return "localhost"
	}
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.Trim(host, "[]")
}

type options struct {
	port      string
	dialer    *websocket.Dialer
	logger    zerolog.Logger
	writeWait time.Duration
}

// Option configures Open.
type Option func(*options)

// WithPort overrides DefaultPort.
func WithPort(port string) Option {
	return func(o *options) { o.port = port }
}

// WithDialer replaces the default dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithWriteTimeout overrides the per-write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeWait = d }
}

// WithLogger sets the adapter's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type writeRequest struct {
	data   []byte
	result chan error
}

// Adapter owns one client connection. A single writer goroutine performs all
// socket writes; Send talks to it over a channel.
type Adapter struct {
	url    string
	store  Store
	buffer *chunk.Buffer
	conn      *websocket.Conn
	err       error
	logger    zerolog.Logger
	writeWait time.Duration

	requests   chan writeRequest
	closing    chan struct{}
	writerDone chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// Open dials the relay once. It always returns an Adapter; if the dial failed
// the adapter is inert and Err reports why.
func Open(ctx context.Context, host string, store Store, opts ...Option) *Adapter {
	o := options{
		port:      DefaultPort,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:    log.With().Str("component", "transport").Logger(),
		writeWait: writeWait,
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Adapter{
		url:        URLForHost(host, o.port),
		store:      store,
		buffer:     chunk.NewBuffer(store),
		logger:     o.logger,
		writeWait:  o.writeWait,
		requests:   make(chan writeRequest),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	conn, _, err := o.dialer.DialContext(ctx, a.url, nil)
	if err != nil {
		a.err = errors.Wrapf(ErrConnection, "dial %s: %v", a.url, err)
		a.logger.Error().Err(err).Str("url", a.url).Msg("websocket connection failed")
		close(a.writerDone)
		close(a.done)
		return a
	}
	a.conn = conn
	a.logger.Info().Str("url", a.url).Msg("connected")

	go a.writeLoop()
	go a.readLoop()
	return a
}

// URL returns the endpoint the adapter dialed.
func (a *Adapter) URL() string { return a.url }

// Err reports the dial failure, if any.
func (a *Adapter) Err() error { return a.err }

// Done is closed once no more answer text will arrive.
func (a *Adapter) Done() <-chan struct{} { return a.done }

// Pending returns answer text received but not yet flushed to the store.
func (a *Adapter) Pending() string { return a.buffer.Pending() }

// Flush moves pending answer text into the open assistant message.
func (a *Adapter) Flush() { a.buffer.Finish() }

// Send records query as a user message, with an empty assistant reply to be
// filled in, and then transmits it. Text still pending from the previous
// answer is flushed first so it lands on its own turn. The local messages stay
// even when the transmission fails.
func (a *Adapter) Send(ctx context.Context, query string) error {
	a.buffer.Finish()
	a.store.AppendUserMessage(query)
	if a.err != nil {
		return a.err
	}

	req := writeRequest{data: []byte(query), result: make(chan error, 1)}
	select {
	case a.requests <- req:
	case <-a.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		if err != nil {
			return errors.Wrapf(ErrConnection, "send: %v", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends a normal close frame, waits briefly for the server to
// acknowledge it and releases the socket.
func (a *Adapter) Close() error {
	if a.conn == nil {
		return nil
	}
	a.closeOnce.Do(func() {
		close(a.closing)
		// A stalled peer can hold the writer until its deadline; do not wait longer.
		select {
		case <-a.writerDone:
		case <-time.After(a.writeWait + closeGrace):
		}

		select {
		case <-a.done:
		case <-time.After(closeGrace):
		}
		a.closeErr = a.conn.Close()
		<-a.done
	})
	return a.closeErr
}

func (a *Adapter) writeLoop() {
	defer close(a.writerDone)
	for {
		select {
		case req := <-a.requests:
			if err := a.conn.SetWriteDeadline(time.Now().Add(a.writeWait)); err != nil {
				req.result <- err
				continue
			}
			req.result <- a.conn.WriteMessage(websocket.TextMessage, req.data)
		case <-a.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := a.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err != nil {
				a.logger.Debug().Err(err).Msg("close frame not sent")
			}
			return
		}
	}
}

func (a *Adapter) readLoop() {
	defer close(a.done)
	defer a.buffer.Finish()

	for {
		messageType, data, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Warn().Err(err).Msg("connection lost")
			}
			return
		}
		if messageType != websocket.TextMessage {
			a.logger.Debug().Int("type", messageType).Msg("non-text frame, stopping reader")
			return
		}
		a.buffer.Push(string(data))
	}
}
