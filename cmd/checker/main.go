package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/checker-network/arweave/internal/arweave"
	"github.com/checker-network/arweave/internal/config"
	"github.com/checker-network/arweave/internal/directory"
	"github.com/checker-network/arweave/internal/health"
	"github.com/checker-network/arweave/internal/logging"
	"github.com/checker-network/arweave/internal/measure"
	"github.com/checker-network/arweave/internal/metrics"
	"github.com/checker-network/arweave/internal/monitor"
	"github.com/checker-network/arweave/internal/probe"
	"github.com/checker-network/arweave/internal/runtime"
	"github.com/checker-network/arweave/internal/uplink"
	"github.com/checker-network/arweave/pkg/types"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	if cmd != "" && cmd[0] == '-' && cmd != "-h" && cmd != "--help" {
		// flags without a subcommand belong to run
		cmd, args = "run", os.Args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = run(ctx, args)
	case "nodes":
		err = runNodes(ctx, args, os.Stdout)
	case "probe":
		err = runProbe(ctx, args, os.Stdout)
	case "version":
		fmt.Println(version)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Arweave Checker CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  checker [run] [--config checker.yaml]")
	fmt.Println("  checker nodes [--config checker.yaml]")
	fmt.Println("  checker probe [--config checker.yaml] [--node host[:port]] [--submit]")
	fmt.Println("  checker version")
}

// components holds everything built from a resolved configuration.
type components struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *metrics.Store
	directory *directory.Client
	composer  *measure.Composer
	submitter *uplink.Client
}

func build(ctx context.Context, configPath string) (*components, error) {
	cfg, err := config.Resolve(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store := metrics.NewStore()
	store.SetBuildInfo(version)

	dir, err := directory.NewClient(
		directory.Config{
			URL:            cfg.Directory.URL,
			Origin:         cfg.Directory.Origin,
			Network:        cfg.Directory.Network,
			PagesPerSecond: cfg.Directory.PagesPerSecond,
			MaxPages:       cfg.Directory.MaxPages,
			RequestTimeout: cfg.Directory.RequestTimeout,
		},
		directory.Dependencies{Logger: logger},
	)
	if err != nil {
		return nil, fmt.Errorf("init directory client: %w", err)
	}

	pinger := probe.NewPinger(
		probe.WithPingClient(probe.NewHTTPClient()),
		probe.WithPingTimeout(cfg.Probe.PingTimeout),
	)
	retriever := probe.NewRetriever(
		arweave.NewClient(arweave.NewHTTPClient()),
		cfg.Probe.TxIDs,
		probe.WithRetrieveTimeout(cfg.Probe.RetrieveTimeout),
		probe.WithRetrieveMetrics(store),
		probe.WithRetrieveLogger(logger),
	)
	composer := measure.NewComposer(pinger, retriever, measure.WithMetrics(store))

	submitter, err := uplink.NewClient(
		uplink.Config{
			URL:            cfg.Collector.URL,
			Version:        version,
			RequestTimeout: cfg.Collector.RequestTimeout,
		},
		uplink.Dependencies{
			HTTPClient: &http.Client{Transport: http.DefaultTransport},
			Logger:     logger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("init uplink client: %w", err)
	}

	return &components{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		directory: dir,
		composer:  composer,
		submitter: submitter,
	}, nil
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to checker configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := build(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.logger.Sync()

	c.logger.Info("checker starting",
		zap.String("version", version),
		zap.String("directory", c.cfg.Directory.URL),
		zap.String("collector", c.cfg.Collector.URL),
		zap.Duration("measurement_interval", c.cfg.Run.MeasurementInterval),
	)

	checker := health.NewChecker(c.store, c.cfg.Directory.RefreshInterval, c.cfg.Run.MeasurementInterval)
	rt := runtime.New(c.directory, c.composer, c.submitter,
		runtime.WithRefreshInterval(c.cfg.Directory.RefreshInterval),
		runtime.WithMeasurementInterval(c.cfg.Run.MeasurementInterval),
		runtime.WithMetricsStore(c.store),
		runtime.WithHealthChecker(checker),
		runtime.WithLogger(c.logger),
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	grp, groupCtx := errgroup.WithContext(runCtx)

	if c.cfg.Monitoring.Enabled {
		srv := monitor.New(
			monitor.Config{Addr: c.cfg.Monitoring.Addr},
			monitor.Dependencies{Logger: c.logger, Metrics: c.store, Checker: checker},
		)
		grp.Go(func() error {
			if err := srv.Run(groupCtx); err != nil {
				return fmt.Errorf("monitoring server: %w", err)
			}
			return nil
		})
	}

	grp.Go(func() error {
		wait := rt.Start(groupCtx)
		wait()
		return nil
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	c.logger.Info("checker stopped")
	return nil
}

func runNodes(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("nodes", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to checker configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := build(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.logger.Sync()

	nodes, err := c.directory.FetchNodes(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, node := range nodes {
		if err := enc.Encode(node); err != nil {
			return err
		}
	}
	return nil
}

func runProbe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to checker configuration file")
	nodeAddr := fs.String("node", "", "Node to probe as host[:port]; a random directory node if empty")
	submit := fs.Bool("submit", false, "Submit the measurement to the collector")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := build(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.logger.Sync()

	node, err := pickNode(ctx, c, *nodeAddr)
	if err != nil {
		return err
	}

	started := time.Now()
	m := c.composer.Compose(ctx, node)
	c.logger.Debug("probe finished", zap.Stringer("node", node), zap.Duration("elapsed", time.Since(started)))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return err
	}

	if *submit {
		if err := c.submitter.Submit(ctx, m, uuid.NewString()); err != nil {
			return err
		}
	}
	return nil
}

func pickNode(ctx context.Context, c *components, addr string) (types.Node, error) {
	if addr != "" {
		return types.ParseNode(addr)
	}
	nodes, err := c.directory.FetchNodes(ctx)
	if err != nil {
		c.logger.Warn("directory unavailable, probing bootstrap node", zap.Error(err))
		return types.BootstrapNode, nil
	}
	node, _ := nodes.Pick(nil)
	return node, nil
}
