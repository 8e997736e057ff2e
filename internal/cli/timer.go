package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
	"github.com/SmitUplenchwar2687/splitghost/internal/timersync"
)

// settleDelay is how long the timer command waits for trailing replies
// once its queue is empty.
const settleDelay = 250 * time.Millisecond

func newTimerCmd() *cobra.Command {
	var (
		transport  string
		address    string
		lineEnding string
		inGameTime bool
		syncTime   float32
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "timer COMMAND...",
		Short: "Send split commands to a timer through the sync client",
		Long: `Connects to a split timer the same way a live session does and sends
the given commands in order, printing every line exchanged.

Commands:
  start intro jungle gears pool construction cave ice final
  reset pause unpause status

Splits behind the timer's current segment are suppressed, and splits
ahead of it are caught up with skipsplit, exactly as during a run.`,
		Example: `  splitghost timer start intro jungle
  splitghost timer final --sync-time 842.5
  splitghost timer reset --transport websocket --address localhost:8080`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmds := make([]splits.Command, 0, len(args))
			for _, a := range args {
				c, err := splits.ParseCommand(a)
				if err != nil {
					return err
				}
				cmds = append(cmds, c)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("transport") {
				transport = cfg.Timer.Transport
			}
			if !cmd.Flags().Changed("address") {
				address = cfg.Timer.Address
			}
			tc := cfg.TimerClient()
			if cmd.Flags().Changed("line-ending") {
				tc.LineEnding = lineEnding
			}
			if cmd.Flags().Changed("in-game-time") {
				tc.UseInGameTime = inGameTime
			}

			dialer, err := timersync.NewDialer(transport, address)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			client := timersync.New(dialer, tc,
				timersync.WithLogger(log),
				timersync.WithObserver(printEvents(cmd.OutOrStdout())),
			)
			if cmd.Flags().Changed("sync-time") {
				client.SetSyncTime(syncTime)
			}
			return sendCommands(ctx, client, cmds)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "tcp", "timer transport (tcp, unix, websocket)")
	cmd.Flags().StringVar(&address, "address", "localhost:16834", "timer address, socket path or websocket URL")
	cmd.Flags().StringVar(&lineEnding, "line-ending", "crlf", "command line ending (crlf, lf)")
	cmd.Flags().BoolVar(&inGameTime, "in-game-time", true, "send the run time with the final split")
	cmd.Flags().Float32Var(&syncTime, "sync-time", 0, "run time in seconds to publish before sending")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "give up if the commands are not delivered within this time")

	return cmd
}

// sendCommands starts client, waits for it to connect, feeds it cmds one
// at a time and closes it once they are delivered.
func sendCommands(ctx context.Context, client *timersync.Client, cmds []splits.Command) error {
	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Close()

	ready := func() bool { return client.Status() == timersync.Connected }
	if err := waitFor(ctx, ready); err != nil {
		return fmt.Errorf("connecting to timer: %w", err)
	}
	// Let the connect queries finish before queueing.
	if !sleepCtx(ctx, settleDelay) {
		return ctx.Err()
	}
	for _, c := range cmds {
		if !client.Enqueue(c) {
			return fmt.Errorf("timer queue full, %s not sent", c)
		}
		if err := waitFor(ctx, func() bool { return client.Pending() == 0 }); err != nil {
			return fmt.Errorf("sending %s: %w", c, err)
		}
	}
	if !sleepCtx(ctx, settleDelay) {
		return ctx.Err()
	}
	if client.Status() != timersync.Connected {
		return fmt.Errorf("timer connection lost")
	}
	return nil
}

func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// printEvents returns an observer writing one line per client event.
func printEvents(w io.Writer) func(timersync.Event) {
	var mu sync.Mutex
	return func(e timersync.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Kind {
		case timersync.EventStatus:
			fmt.Fprintf(w, "  -- %s\n", e.Status)
		case timersync.EventSent:
			fmt.Fprintf(w, "  >> %s\n", strings.TrimSpace(e.Line))
		case timersync.EventReceived:
			fmt.Fprintf(w, "  << %s\n", strings.TrimSpace(e.Line))
		case timersync.EventSuppressed:
			fmt.Fprintf(w, "  .. %s suppressed\n", e.Command)
		case timersync.EventDropped:
			fmt.Fprintf(w, "  !! %s dropped\n", e.Command)
		}
	}
}
