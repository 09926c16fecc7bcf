package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/calibration"
	"github.com/ppiankov/credence/internal/server"
)

var (
	serveAddr      string
	serveNoHistory bool
	serveExplain   bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scoring API over HTTP",
	Long: `Serve exposes scoring, outcome labelling and calibration as a REST API:

  POST /v1/score                     score one answer
  POST /v1/assessments/:id/outcome   label a recorded assessment
  GET  /v1/calibration?limit=N       calibration report
  GET  /v1/packs                     available domain packs
  GET  /healthz                      liveness
  GET  /metrics                      Prometheus metrics

Set cache.backend to redis to share assessments between replicas.

Example:
  credence serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr from config)")
	serveCmd.Flags().BoolVar(&serveNoHistory, "no-history", false, "do not record assessments or serve calibration")
	serveCmd.Flags().BoolVar(&serveExplain, "explain", false, "attach LLM explanations to every assessment")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{record: !serveNoHistory, explain: serveExplain})
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Deps{
		Scorer:  a.pipeline,
		Monitor: calibration.NewMonitor(cfg.Calibration, logger),
		Packs:   a.packs,
		Logger:  logger,
		Version: Version,
	}
	if a.store != nil {
		deps.History = a.store
	}

	fmt.Fprintf(os.Stderr, "✓ Credence %s listening on %s\n", Version, cfg.Server.Addr)
	return server.New(cfg.Server, deps).Run(ctx)
}
