package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahul/autopilot/internal/agent"
	"github.com/rahul/autopilot/internal/gateway"
	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/plan"
	"github.com/rahul/autopilot/internal/report"
)

var (
	version = "0.1.0"
	cfgFile string
	live    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Plan, dispatch and report multi-environment tasks",
		Long: `Autopilot turns an instruction into a plan of steps across a browser,
a terminal and a file system, runs them in dependency order and writes
a report of what happened.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (json or yaml; defaults and environment variables apply without one)")
	rootCmd.PersistentFlags().BoolVar(&live, "live", false, "use live browser, terminal and file system backends")

	rootCmd.AddCommand(
		newRunCmd(),
		newExecCmd(),
		newValidateCmd(),
		newServeCmd(),
		newHistoryCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("autopilot version %s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func printReport(cmd *cobra.Command, rep *report.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, rep.Text())
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <instruction>",
		Short: "Plan and execute an instruction with the configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			rep, err := a.orch.ExecuteTask(ctx, args[0], consoleSink(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			printReport(cmd, rep)
			return nil
		},
	}
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <plan-file>",
		Short: "Execute a plan file without planning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			rep, err := a.orch.ExecutePlan(ctx, p, consoleSink(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			printReport(cmd, rep)
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Check a plan's structure and that every step can run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(p.Steps) == 0 {
				fmt.Fprintf(out, "%s: plan has no steps; running it does nothing.\n", p.Title)
				return nil
			}
			a := p.Check()
			fmt.Fprintf(out, "%s: %d steps\n", p.Title, len(p.Steps))
			for i, id := range a.Order {
				fmt.Fprintf(out, "  %d. %s\n", i+1, id)
			}
			if a.Complete() {
				fmt.Fprintln(out, "All steps are reachable.")
				return nil
			}

			fmt.Fprintln(out, "Blocked steps:")
			for _, b := range a.Blocked {
				fmt.Fprintf(out, "  - %s", b.ID)
				if len(b.Missing) > 0 {
					fmt.Fprintf(out, " (unknown dependencies: %v)", b.Missing)
				}
				if len(b.Waiting) > 0 {
					fmt.Fprintf(out, " (waiting on: %v)", b.Waiting)
				}
				fmt.Fprintln(out)
			}
			return fmt.Errorf("%d of %d steps can never run", len(a.Blocked), len(p.Steps))
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or show one run with its log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				run, err := a.runs.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(run)
				}
				fmt.Fprintf(out, "%s  %s  %s\n%s\n", run.ID, run.Status, run.CreatedAt.Local().Format(time.DateTime), run.Instruction)
				if run.Error != "" {
					fmt.Fprintf(out, "error: %s\n", run.Error)
				}
				for _, e := range run.Logs {
					fmt.Fprintf(out, "  %s [%s] %s\n", e.Time.Local().Format(time.TimeOnly), e.Category, e.Message)
				}
				return nil
			}

			runs, err := a.runs.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(out).Encode(runs)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tTITLE")
			for _, r := range runs {
				title := r.Title
				if title == "" {
					title = r.Instruction
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.CreatedAt.Local().Format(time.DateTime), title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateways, the HTTP API and the job runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(cmd, a)
		},
	}
}

func serve(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	observability.PrintBanner(out)

	ctx, stop := signalContext(cmd)
	defer stop()

	lg := a.logger.Slog()
	runner := agent.NewJobRunner(a.orch, a.runs, a.logger)

	var messengers []gateway.Messenger
	if gw, ok := a.cfg.GetGatewayConfig("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(gw.Token, &gateway.Handler{Executor: a.orch, Jobs: a.runs, Logger: lg})
		if err != nil {
			return fmt.Errorf("failed to start telegram gateway: %w", err)
		}
		runner.Register("telegram", tg)
		messengers = append(messengers, tg)
		fmt.Fprintln(out, observability.Colorize("[ OK ] Telegram gateway online"))
	}
	if gw, ok := a.cfg.GetGatewayConfig("discord"); ok {
		dg, err := gateway.NewDiscordGateway(gw.Token, &gateway.Handler{Executor: a.orch, Jobs: a.runs, Logger: lg})
		if err != nil {
			return fmt.Errorf("failed to start discord gateway: %w", err)
		}
		runner.Register("discord", dg)
		messengers = append(messengers, dg)
		fmt.Fprintln(out, observability.Colorize("[ OK ] Discord gateway online"))
	}

	var httpServer *gateway.HTTPServer
	if a.cfg.HTTP.Enabled {
		httpServer = gateway.NewHTTPServer(a.cfg.HTTP.Addr, a.orch, a.runs, lg)
		fmt.Fprintln(out, observability.Colorize("[ OK ] HTTP API on "+a.cfg.HTTP.Addr))
	}

	if len(messengers) == 0 && httpServer == nil {
		return errors.New("nothing to serve: enable a gateway or the HTTP API")
	}

	go runner.Start(ctx)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				a.logger.LogHeartbeat()
				observability.PrintStatus(out)
			}
		}
	}()

	errCh := make(chan error, len(messengers)+1)
	for _, m := range messengers {
		go func(m gateway.Messenger) {
			errCh <- m.Start(ctx)
		}(m)
	}
	if httpServer != nil {
		go func() { errCh <- httpServer.Start(ctx) }()
	}

	observability.PrintStatus(out)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			lg.Error("Gateway stopped.", "error", runErr)
		}
		stop()
	}

	for _, m := range messengers {
		if err := m.Stop(); err != nil {
			lg.Error("Failed to stop gateway.", "error", err)
		}
	}
	fmt.Fprintln(out, observability.Colorize("[ EXIT ] Shut down."))
	return runErr
}
