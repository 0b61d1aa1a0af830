package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/imkarma/taskledger/internal/metrics"
	"github.com/imkarma/taskledger/internal/rpc"
)

func newServeCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON requests on stdin, one per line",
		Long: `Reads one JSON object per line from stdin, each with "method" and
"params", and writes one JSON response per line to stdout. Malformed lines
get an error response and the loop continues. Logs go to stderr.

With --metrics-addr a Prometheus endpoint is served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			m := metrics.New()
			srv := rpc.NewServer(s,
				rpc.WithMetrics(m),
				rpc.WithLogger(a.log),
				rpc.WithInboxLimit(a.cfg.Inbox.Limit),
			)

			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
				a.log.Warn("reading requests from a terminal; send one JSON object per line, Ctrl-D to stop")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				defer cancel()
				// Serve may sit in a blocking read; return on cancellation
				// without waiting for it.
				done := make(chan error, 1)
				go func() { done <- srv.Serve(gctx, in, cmd.OutOrStdout()) }()
				select {
				case err := <-done:
					return err
				case <-gctx.Done():
					return gctx.Err()
				}
			})

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", m.Handler())
				httpSrv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

				g.Go(func() error {
					a.log.Info("serving metrics", "addr", metricsAddr)
					if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return httpSrv.Shutdown(shutdownCtx)
				})
			}

			a.log.Debug("adapter ready", "methods", len(srv.Methods()), "driver", s.Driver())
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	return cmd
}
