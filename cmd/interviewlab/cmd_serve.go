package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"interviewlab/internal/events"
	"interviewlab/internal/logging"
	mcpserver "interviewlab/internal/mcp"
	"interviewlab/internal/metrics"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveFlags struct {
	metricsAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the project tools to an
agent host.

The server monitors for parent process death. When the host disconnects or
restarts, the server self-terminates. With --metrics-addr Prometheus metrics
are served on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.metricsAddr, "metrics-addr", "", "Listen address for /metrics (disabled when empty)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logging.New("mcp")
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	bus := events.NewBus(0)

	e, err := openEngine(engineExtras{events: bus, metrics: m})
	if err != nil {
		return err
	}
	defer e.Close()

	srv := mcpserver.NewServer(mcpserver.Options{
		Orchestrator: e.orch,
		Guard:        e.guard,
		Bus:          bus,
		MaxSections:  e.cfg.Engine.MaxSections,
		Version:      version,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if serveFlags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{Addr: serveFlags.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics endpoint stopped", "error", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = hs.Shutdown(sctx)
		}()
		log.Info("serving metrics", "addr", serveFlags.metricsAddr)
	}

	mcpserver.WatchParent(ctx, cancel)

	log.Info("starting interviewlab MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
