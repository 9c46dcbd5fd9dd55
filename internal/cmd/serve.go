package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/basecamp/internal/engine"
	"github.com/Iron-Ham/basecamp/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planning API over HTTP",
	Long: `Start the HTTP API. Runs are submitted with POST /runs, inspected with
GET /runs/{id} and resumed with POST /runs/{id}/resume. Prometheus metrics
are served at /metrics. Resume signals in the signal directory are applied
while the server runs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr     string
	serveNoSignal bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().BoolVar(&serveNoSignal, "no-signals", false, "Do not watch the signal directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	srv := server.New(server.Options{
		Engine:  a.engine,
		Metrics: a.metrics.Handler(),
		Logger:  a.logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, addr)
	})
	if !serveNoSignal {
		w := engine.NewWatcher(a.engine, a.dir, a.logger)
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on http://%s (ctrl+c to stop)\n", addr)
	return g.Wait()
}
