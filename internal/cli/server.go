package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/server"
)

func newTimerServerCmd() *cobra.Command {
	var (
		lineAddr   string
		httpAddr   string
		lineEnding string
		names      []string
	)

	cmd := &cobra.Command{
		Use:   "timer-server",
		Short: "Run an in-memory split timer that speaks the timer line protocol",
		Long: `Starts a fake split timer for testing the timer sync without a real
timer application. The timer accepts the line protocol on a TCP port and
over websockets, and serves a live dashboard of every line it receives.

Endpoints:
  GET /             Server info and timer state
  GET /health       Health check
  GET /state        Timer state as JSON
  GET /stats        Line server connection stats
  GET /lines        Every line received so far
  WS  /livesplit    Line protocol over websocket, one line per frame
  GET /dashboard/   Live visual dashboard
  WS  /ws           WebSocket for real-time timer events`,
		Example: `  splitghost timer-server
  splitghost timer-server --line-addr :16834 --http-addr :9090
  splitghost timer-server --line-ending lf --splits A,B,C,D,E,F,G,H`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("line-addr") {
				lineAddr = cfg.Server.LineAddr
			}
			if !cmd.Flags().Changed("http-addr") {
				httpAddr = cfg.Server.HTTPAddr
			}
			if !cmd.Flags().Changed("line-ending") {
				lineEnding = cfg.Timer.LineEnding
			}
			if !cmd.Flags().Changed("splits") {
				names = cfg.Timer.SplitNames
			}

			clk := clock.NewRealClock()
			hub := server.NewHub(log)
			ls := server.NewLineServer(server.NewTimer(names), hub, clk, log, lineEnding)
			srv := server.New(httpAddr, ls, hub, clk, log)

			ln, err := net.Listen("tcp", lineAddr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", lineAddr, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n  splitghost timer\n")
			fmt.Fprintf(out, "  ────────────────────────────────────\n")
			fmt.Fprintf(out, "  Line protocol: tcp %s\n", ln.Addr())
			fmt.Fprintf(out, "  WebSocket:     ws://localhost%s/livesplit\n", httpAddr)
			fmt.Fprintf(out, "  Dashboard:     http://localhost%s/dashboard/\n\n", httpAddr)

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 2)
			go func() {
				errCh <- ls.Serve(ln)
			}()
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
				return err
			case <-ctx.Done():
				log.Info("shutting down")
				st := ls.Timer().State()
				log.WithField("attempts", st.Attempts).WithField("completed", st.Completed).Info("timer stopped")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&lineAddr, "line-addr", ":16834", "TCP address for the line protocol")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP address for the dashboard and websocket carrier")
	cmd.Flags().StringVar(&lineEnding, "line-ending", "crlf", "reply line ending (crlf, lf)")
	cmd.Flags().StringSliceVar(&names, "splits", nil, "segment names (default: timer.split_names)")

	return cmd
}
