package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/events"
	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/netstack"
	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/session"
	"github.com/danmuck/edgelink/internal/statusapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrControllerRequired = errors.New("node: controller required")
	ErrEngineRequired     = errors.New("node: engine required")
)

type Config struct {
	ID       string
	Link     link.Config
	CoolDown time.Duration
	Session  session.Config
	// Buffers defaults to session.DefaultBuffers.
	Buffers    *session.Buffers
	MaxSockets int

	// StatusListen enables the status API when set.
	StatusListen      string
	CorsOrigins       []string
	StatusToken       string
	HeartbeatInterval time.Duration
}

func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = "edgelink"
	}
	if c.Buffers == nil {
		c.Buffers = session.DefaultBuffers()
	}
	if c.MaxSockets <= 0 {
		c.MaxSockets = netstack.DefaultMaxSockets
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	return c
}

type Option func(*options)

type options struct {
	sink   events.Sink
	tracer trace.Tracer
	logger zerolog.Logger
}

// WithSink adds a sink that receives every lifecycle event.
func WithSink(sink events.Sink) Option {
	return func(o *options) { o.sink = sink }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Node is the ownership root: the Stack is built once here and shared by the
// pump and the driver.
type Node struct {
	cfg     Config
	logger  zerolog.Logger
	stack   *netstack.Stack
	manager *link.Manager
	pump    *netstack.Pump
	driver  *session.Driver
	tracker *statusapi.Tracker
	status  *statusapi.Server
}

func New(ctrl link.Controller, engine netstack.Engine, cfg Config, opts ...Option) (*Node, error) {
	if ctrl == nil {
		return nil, ErrControllerRequired
	}
	if engine == nil {
		return nil, ErrEngineRequired
	}
	cfg = cfg.WithDefaults()
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	tracker := statusapi.NewTracker()
	sink := events.Multi(
		observability.NewEventLogger(o.logger),
		observability.NewMetricsSink(),
		tracker,
		o.sink,
	)

	stack, err := netstack.New(engine, netstack.Options{MaxSockets: cfg.MaxSockets})
	if err != nil {
		return nil, err
	}
	pump, err := netstack.NewPump(stack, sink)
	if err != nil {
		return nil, err
	}
	driver, err := session.NewDriver(stack, cfg.Session, cfg.Buffers,
		session.WithSink(sink),
		session.WithTracer(o.tracer),
	)
	if err != nil {
		return nil, err
	}
	manager, err := link.NewManager(ctrl, cfg.Link, link.ManagerOptions{CoolDown: cfg.CoolDown, Sink: sink})
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:     cfg,
		logger:  o.logger,
		stack:   stack,
		manager: manager,
		pump:    pump,
		driver:  driver,
		tracker: tracker,
	}
	if strings.TrimSpace(cfg.StatusListen) != "" {
		n.status, err = statusapi.New(cfg.ID, tracker, statusapi.Options{
			CorsOrigins: cfg.CorsOrigins,
			Token:       cfg.StatusToken,
		})
		if err != nil {
			manager.Close()
			return nil, err
		}
	}
	return n, nil
}

func (n *Node) Tracker() *statusapi.Tracker {
	return n.tracker
}

func (n *Node) Stack() *netstack.Stack {
	return n.stack
}

func (n *Node) Driver() *session.Driver {
	return n.driver
}

// Close releases the controller claim. The node cannot be run again.
func (n *Node) Close() {
	n.manager.Close()
}

// Run starts every task and blocks until ctx is done, the session driver
// finishes, or a task fails. Link start failures and engine loss are fatal.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	pumpErr := make(chan error, 1)
	linkErr := make(chan error, 1)
	sessionErr := make(chan error, 1)
	statusErr := make(chan error, 1)
	spawn := func(out chan<- error, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- run(ctx)
		}()
	}
	spawn(pumpErr, n.pump.Run)
	spawn(linkErr, n.manager.Run)
	spawn(sessionErr, n.driver.Run)
	if n.status != nil {
		spawn(statusErr, func(ctx context.Context) error {
			return n.status.Run(ctx, n.cfg.StatusListen)
		})
	}

	n.logger.Info().
		Str("node", n.cfg.ID).
		Str("ssid", n.cfg.Link.SSID()).
		Str("remote", n.cfg.Session.Remote.String()).
		Int("max_sockets", n.stack.MaxSockets()).
		Int("buffer_bytes", n.cfg.Buffers.Footprint()).
		Msg("node running")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info().Str("node", n.cfg.ID).Msg("node shutdown")
			return nil
		case err := <-pumpErr:
			if err != nil {
				return fmt.Errorf("pump: %w", err)
			}
		case err := <-linkErr:
			if err != nil {
				return fmt.Errorf("link: %w", err)
			}
		case err := <-sessionErr:
			if err != nil {
				return fmt.Errorf("session: %w", err)
			}
			n.logger.Info().Str("node", n.cfg.ID).Uint64("attempts", n.driver.Attempts()).Msg("session driver finished")
			return nil
		case err := <-statusErr:
			if err != nil {
				return fmt.Errorf("status api: %w", err)
			}
		case <-ticker.C:
			snap := n.tracker.Snapshot()
			stats := n.stack.Stats()
			n.logger.Info().
				Str("node", n.cfg.ID).
				Str("link", snap.Link).
				Str("address", snap.Address).
				Uint64("attempts", snap.Attempts).
				Uint64("failures", snap.Failures).
				Int("open_sockets", stats.Open).
				Msg("heartbeat")
		}
	}
}
