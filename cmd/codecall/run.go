package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/codecall/metrics"
	"github.com/jonwraymond/codecall/sandbox"
)

var (
	runTimeout time.Duration
	runQuiet   bool
)

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Execute a code file in the sandbox",
	Long: `Execute a code file, or standard input when the argument is "-".

Progress values are written to stdout as JSON lines while the code runs,
followed by the final result object. The command exits with status 1 when
the execution fails.

Example:
  echo 'progress("hi"); return await tools.util.now({});' | codecall run -`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "execution timeout (defaults to CODECALL_TIMEOUT)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not stream progress")
}

// progressLine is one streamed progress entry.
type progressLine struct {
	Progress any `json:"progress"`
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := readCode(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	engineCfg, err := s.cfg.Engine(s.reg)
	if err != nil {
		return err
	}
	engineCfg.Logger = s.logger

	collector := metrics.New()
	engineCfg.Metrics = collector
	if s.cfg.MetricsAddr != "" {
		srv := serveMetrics(s.cfg.MetricsAddr, collector)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	eng, err := sandbox.New(engineCfg)
	if err != nil {
		return err
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	opts := sandbox.Options{Timeout: runTimeout}
	if !runQuiet {
		opts.OnProgress = func(v any) {
			_ = out.Encode(progressLine{Progress: v})
		}
	}

	res, err := eng.Execute(ctx, code, opts)
	if err != nil && !errors.Is(err, sandbox.ErrSpawn) {
		return err
	}
	if encErr := out.Encode(res); encErr != nil {
		return encErr
	}
	if !res.OK() {
		return fmt.Errorf("execution %s: %s", res.Outcome, res.Error)
	}
	return nil
}

// readCode loads the program from a file, or from stdin when name is "-".
func readCode(stdin io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	return string(data), nil
}

func serveMetrics(addr string, c *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
