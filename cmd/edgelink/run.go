package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/edgelink/internal/config"
	"github.com/danmuck/edgelink/internal/hostnet"
	"github.com/danmuck/edgelink/internal/link"
	"github.com/danmuck/edgelink/internal/netstack"
	"github.com/danmuck/edgelink/internal/node"
	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/sim"
	"github.com/danmuck/edgelink/internal/tools"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func runCmd(flags *rootFlags) *cobra.Command {
	var iface string
	var trace bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Associate the host interface and run exchanges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if iface != "" {
				cfg.Link.Interface = iface
			}
			logger := setupLogging(flags.debug, cfg.Log)

			var supplicant *hostnet.Supplicant
			if cfg.Link.Supplicant != "" {
				supplicant = hostnet.NewSupplicant(cfg.Link.Interface, cfg.Link.Supplicant, tools.ExecRunner{})
			}
			ctrl, err := hostnet.NewController(cfg.Link.Interface, cfg.Link.AssociateTimeout, supplicant)
			if err != nil {
				return err
			}
			engine, err := hostnet.NewEngine(cfg.Link.Interface)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, cfg, ctrl, engine, logger, trace)
		},
	}

	cmd.Flags().StringVar(&iface, "iface", "", "Wireless interface (overrides link.interface)")
	cmd.Flags().BoolVar(&trace, "trace", false, "Log session spans")
	return cmd
}

func simulateCmd(flags *rootFlags) *cobra.Command {
	var (
		rejectFirst    int
		associateDelay time.Duration
		dhcpDelay      time.Duration
		dropEvery      time.Duration
		attempts       int
		trace          bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the full lifecycle against a simulated radio",
		Long: "Run the link manager, pump and session driver against an in-process radio.\n" +
			"Sessions still dial the configured remote over the host network.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSimConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("attempts") {
				cfg.Session.MaxAttempts = attempts
			}
			logger := setupLogging(flags.debug, cfg.Log)

			radio := sim.NewRadio(sim.RadioOptions{
				AssociateDelay: associateDelay,
				RejectFirst:    rejectFirst,
			})
			engine := sim.NewEngine(radio, sim.EngineOptions{DHCPDelay: dhcpDelay})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if dropEvery > 0 {
				go dropLoop(ctx, radio, dropEvery, logger)
			}
			return runNode(ctx, cfg, radio, engine, logger, trace)
		},
	}

	cmd.Flags().IntVar(&rejectFirst, "reject", 0, "Reject this many associations first")
	cmd.Flags().DurationVar(&associateDelay, "associate-delay", 500*time.Millisecond, "Simulated association time")
	cmd.Flags().DurationVar(&dhcpDelay, "dhcp-delay", time.Second, "Simulated DHCP lease time")
	cmd.Flags().DurationVar(&dropEvery, "drop-every", 0, "Drop the association periodically")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Stop after this many attempts (0 runs forever)")
	cmd.Flags().BoolVar(&trace, "trace", false, "Log session spans")
	return cmd
}

// loadSimConfig falls back to a placeholder SSID so simulate runs without a
// config file.
func loadSimConfig(flags *rootFlags) (config.Config, error) {
	if flags.configPath != "" {
		return config.Load(flags.configPath)
	}
	cfg := config.Default()
	cfg.Link.SSID = "edgelink-sim"
	config.ApplyEnv(&cfg)
	return cfg, cfg.Validate()
}

func runNode(ctx context.Context, cfg config.Config, ctrl link.Controller, engine netstack.Engine, logger zerolog.Logger, trace bool) error {
	nodeCfg, err := nodeConfig(cfg)
	if err != nil {
		return err
	}
	if trace {
		shutdown := observability.InstallTracing(logger)
		defer func() { _ = shutdown(context.Background()) }()
	}

	n, err := node.New(ctrl, engine, nodeCfg, node.WithLogger(logger))
	if err != nil {
		return err
	}
	defer n.Close()
	return n.Run(ctx)
}

func nodeConfig(cfg config.Config) (node.Config, error) {
	lc, err := cfg.LinkConfig()
	if err != nil {
		return node.Config{}, err
	}
	sc, err := cfg.SessionConfig()
	if err != nil {
		return node.Config{}, err
	}
	bufs, err := cfg.Buffers()
	if err != nil {
		return node.Config{}, err
	}
	return node.Config{
		ID:           "edgelink",
		Link:         lc,
		CoolDown:     cfg.Link.CoolDown,
		Session:      sc,
		Buffers:      bufs,
		MaxSockets:   cfg.Stack.MaxSockets,
		StatusListen: cfg.Status.Listen,
		CorsOrigins:  cfg.Status.CorsOrigins,
		StatusToken:  cfg.Status.Token,
	}, nil
}

func dropLoop(ctx context.Context, radio *sim.Radio, every time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info().Msg("simulated access point drop")
			radio.Drop()
		}
	}
}
