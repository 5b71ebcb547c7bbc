package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/ainoa/noc-console/internal/app"
	"github.com/ainoa/noc-console/internal/command"
	"github.com/ainoa/noc-console/internal/config"
	"github.com/ainoa/noc-console/internal/logger"
	"github.com/ainoa/noc-console/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	wsURL := flag.String("url", "", "WebSocket URL of the UI broker (overrides stream.url)")
	apiURL := flag.String("api", "", "Base URL for approvals (overrides api.broker_url)")
	simURL := flag.String("sim", "", "Base URL for simulations (overrides api.simulator_url)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *wsURL != "" {
		cfg.Stream.URL = *wsURL
		if *apiURL == "" {
			cfg.API.BrokerURL = deriveHTTPBase(*wsURL)
		}
	}
	if *apiURL != "" {
		cfg.API.BrokerURL = *apiURL
	}
	if *simURL != "" {
		cfg.API.SimulatorURL = *simURL
	}
	if cfg.Logging.File == "" {
		// stdout and stderr belong to the terminal UI.
		cfg.Logging.File = "noc-console.log"
	}

	closer, err := logger.Init(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	log.Info().Str("stream", cfg.Stream.URL).Str("broker", cfg.API.BrokerURL).Str("simulator", cfg.API.SimulatorURL).Msg("starting noc console")

	bridge := app.NewBridge()
	sess := session.New(session.Options{
		URL:       cfg.Stream.URL,
		BaseDelay: cfg.Stream.ReconnectBase,
		MaxDelay:  cfg.Stream.ReconnectMax,
		Dialer: &session.WSDialer{
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
			PingInterval:     cfg.Stream.PingInterval,
			PongTimeout:      cfg.Stream.PongTimeout,
		},
	}, bridge.Handlers())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("session loop exited")
		}
	}()
	sess.Connect()

	gw := command.NewGateway(cfg.API.BrokerURL, cfg.API.SimulatorURL, command.WithTimeout(cfg.API.Timeout))
	m := app.New(app.Options{
		Bridge:    bridge,
		Session:   sess,
		Commands:  gw,
		ExportDir: cfg.Export.Dir,
		Simulation: command.SimulationInput{
			EventID:           cfg.Simulation.EventID,
			Region:            cfg.Simulation.Region,
			SiteID:            cfg.Simulation.SiteID,
			TrafficMultiplier: cfg.Simulation.TrafficMultiplier,
			CapacityDelta:     cfg.Simulation.CapacityDelta,
		},
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, runErr := p.Run()
	sess.Close()
	bridge.Close()
	if runErr != nil {
		log.Error().Err(runErr).Msg("ui exited")
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
	log.Info().Msg("noc console stopped")
}

// deriveHTTPBase converts ws://host:port/ws/ui to http://host:port.
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://localhost:7003"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
