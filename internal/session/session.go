// Package session runs one WebSocket connection as a pair of tasks: a receive
// task that answers queries one at a time and a send task that writes the
// answers back in order. Whichever task ends first tears the other down.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/research-relay/internal/config"
	"github.com/zhouzirui/research-relay/internal/gateway"
)

// ErrConnection marks socket write failures.
var ErrConnection = errors.New("connection error")

// Error frame prefixes sent to the client.
const (
	errLoadConfigPrefix    = "Error: Failed to load configuration - "
	errInvalidConfigPrefix = "Error: Invalid configuration - "
	errResearchPrefix      = "Error: Research failed - "
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateOpen State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the subset of *websocket.Conn a session needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ConfigLoader loads gateway configuration. It is called once per query.
type ConfigLoader func() (config.GatewayConfig, error)

// Manager serves sessions. It holds no per-session or per-query state.
type Manager struct {
	loadConfig ConfigLoader
	factory    gateway.Factory
	registry   *Registry
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfigLoader replaces config.LoadGateway.
func WithConfigLoader(loader ConfigLoader) Option {
	return func(m *Manager) { m.loadConfig = loader }
}

// WithFactory replaces gateway.DefaultFactory.
func WithFactory(factory gateway.Factory) Option {
	return func(m *Manager) { m.factory = factory }
}

// WithRegistry shares a registry between managers.
func WithRegistry(registry *Registry) Option {
	return func(m *Manager) { m.registry = registry }
}

// NewManager creates a Manager with environment-backed defaults.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		loadConfig: config.LoadGateway,
		factory:    gateway.DefaultFactory,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	return m
}

// Registry returns the live-session registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Serve runs a session on conn and returns once both tasks have finished.
// The connection is closed on return.
func (m *Manager) Serve(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &Session{
		id:      uuid.NewString(),
		manager: m,
		conn:    conn,
		out:     newOutbox(),
		cancel:  cancel,
	}
	s.logger = log.With().Str("component", "session").Str("session_id", s.id).Logger()

	m.registry.add(s)
	defer m.registry.remove(s.id)

	return s.run(ctx)
}

// Session is one connection and its two tasks.
type Session struct {
	id      string
	manager *Manager
	conn    Conn
	out     *outbox
	state   atomic.Int32
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Session) run(ctx context.Context) error {
	s.logger.Info().Msg("websocket connection established")
	s.setState(StateActive)

	eg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return s.sendLoop(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		return s.receiveLoop(ctx)
	})
	// Closing the socket is what unblocks a pending read or write.
	eg.Go(func() error {
		<-ctx.Done()
		s.setState(StateClosing)
		s.out.Close()
		_ = s.conn.Close()
		return nil
	})

	err := eg.Wait()
	s.setState(StateClosed)
	s.logger.Info().Msg("websocket connection closed")
	return err
}

func (s *Session) sendLoop(ctx context.Context) error {
	for {
		text, err := s.out.Pop(ctx)
		if err != nil {
			return nil
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(ErrConnection, "write frame: %v", err)
		}
		s.logger.Debug().Int("bytes", len(text)).Msg("response sent")
	}
}

func (s *Session) receiveLoop(ctx context.Context) error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn().Err(err).Msg("read failed")
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			s.logger.Debug().Int("type", messageType).Msg("non-text frame, ending session")
			return nil
		}

		query := string(data)
		s.logger.Info().Str("query", preview(query)).Msg("received query")

		if err := s.out.Push(s.answer(ctx, query)); err != nil {
			s.logger.Error().Err(err).Msg("failed to send response to client")
			return nil
		}
	}
}

// answer runs one query with freshly loaded configuration and a new gateway.
// Failures become an error frame; they never end the session.
func (s *Session) answer(ctx context.Context, query string) string {
	cfg, err := s.manager.loadConfig()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load config")
		return errLoadConfigPrefix + err.Error()
	}

	if err := cfg.Validate(); err != nil {
		s.logger.Error().Err(err).Msg("invalid config")
		return errInvalidConfigPrefix + err.Error()
	}

	gw, err := s.manager.factory.New(ctx, cfg)
	if err != nil {
		s.logger.Error().Err(err).Str("provider", cfg.Provider).Msg("gateway construction failed")
		return errResearchPrefix + err.Error()
	}

	response, err := gw.Invoke(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).Str("provider", cfg.Provider).Msg("research failed")
		return errResearchPrefix + err.Error()
	}
	return response
}

func preview(text string) string {
	const limit = 80
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "…"
}
