package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	client "github.com/hanpama/graphstitch/internal/client"
	config "github.com/hanpama/graphstitch/internal/config"
	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	httptp "github.com/hanpama/graphstitch/internal/httptp"
	logging "github.com/hanpama/graphstitch/internal/logging"
	metrics "github.com/hanpama/graphstitch/internal/metrics"
	otel "github.com/hanpama/graphstitch/internal/otel"
	planner "github.com/hanpama/graphstitch/internal/planner"
	request "github.com/hanpama/graphstitch/internal/request"
	schema "github.com/hanpama/graphstitch/internal/schema"
	server "github.com/hanpama/graphstitch/internal/server"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "graphstitch",
		Short: "GraphQL stitching gateway & tools",
		Long: `graphstitch serves one GraphQL schema composed from several locations.
Each request is planned into location sub-requests, executed in waves and
merged into a single result.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newPlanCmd(), newPrintSchemaCmd())
	return root
}

func loadSupergraph(path string) (*supergraph.Supergraph, error) {
	sg, err := supergraph.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load supergraph: %w", err)
	}
	return sg, nil
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP GraphQL gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Configuration file (YAML, JSON or TOML)")
	f.String("supergraph", "supergraph.graphql", "Composed supergraph SDL")
	f.String("server.addr", ":8080", "HTTP listen address")
	f.Duration("server.timeout", 10*time.Second, "Per-request timeout")
	f.Bool("server.pretty", false, "Pretty-print JSON responses")
	f.StringSlice("server.metadata_headers", nil, "HTTP headers forwarded to locations")
	f.Duration("transport.request_timeout", 3*time.Second, "Location request timeout")
	f.Int("client.plan_cache_size", 256, "Plans kept in memory")
	f.Int("client.concurrency", 0, "Concurrent location calls per wave (0: unlimited)")
	f.String("log.level", "info", "Log level")
	f.String("otel.endpoint", "", "OTLP collector endpoint")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sg, err := loadSupergraph(cfg.Supergraph)
	if err != nil {
		return err
	}
	endpoints := cfg.Endpoints()
	for _, loc := range sg.Locations() {
		if len(endpoints[loc]) == 0 {
			return fmt.Errorf("no endpoints configured for location %q", loc)
		}
	}

	bus := eventbus.New()
	eventbus.Use(bus)
	defer logging.Register(bus, log)()

	shutdownTracing, err := otel.Setup(bus, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	transport := httptp.New(
		httptp.WithProvider(httptp.NewStaticEndpoints(endpoints)),
		httptp.WithMaxConnsPerEndpoint(cfg.Transport.MaxConnsPerEndpoint),
		httptp.WithRequestTimeout(cfg.Transport.RequestTimeout),
		httptp.WithForwardHeaders(cfg.Server.MetadataHeaders...),
	)
	defer transport.Close()

	c, err := client.New(sg, transport.Executables(sg.Locations()),
		client.WithValidation(cfg.Client.Validate),
		client.WithPlanCache(cfg.Client.PlanCacheSize),
		client.WithConcurrency(cfg.Client.Concurrency),
		client.WithErrorHook(func(ctx context.Context, err error) {
			log.Error("request failed", zap.Error(err))
		}),
	)
	if err != nil {
		return err
	}

	sopts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithMetadataHeaders(cfg.Server.MetadataHeaders...),
		server.WithBatchConcurrency(cfg.Server.BatchConcurrency),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, server.New(c, sopts...))
	if cfg.Metrics.Enabled {
		m := metrics.New()
		defer m.Register(bus)()
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("GraphQL gateway listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("path", cfg.Server.Path),
		zap.Strings("locations", sg.Locations()),
	)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout+time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newPlanCmd() *cobra.Command {
	var sgPath, query, operationName, variables string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the plan of a request as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sg, err := loadSupergraph(sgPath)
			if err != nil {
				return err
			}
			vars := map[string]any{}
			if variables != "" {
				if err := json.Unmarshal([]byte(variables), &vars); err != nil {
					return fmt.Errorf("invalid --variables JSON: %w", err)
				}
			}
			req, err := request.New(sg, query,
				request.WithOperationName(operationName),
				request.WithVariables(vars),
			)
			if err != nil {
				return err
			}
			if errs := req.Validate(); len(errs) > 0 {
				return errs
			}
			if err := req.Prepare(); err != nil {
				return err
			}
			plan, err := planner.New(req).Perform()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&sgPath, "supergraph", "supergraph.graphql", "Composed supergraph SDL")
	cmd.Flags().StringVarP(&query, "query", "q", "", "GraphQL document")
	cmd.Flags().StringVar(&operationName, "operation-name", "", "Operation to plan")
	cmd.Flags().StringVar(&variables, "variables", "", "Variables as JSON")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func newPrintSchemaCmd() *cobra.Command {
	var sgPath string
	var locations bool
	cmd := &cobra.Command{
		Use:   "print-schema",
		Short: "Print the client-facing schema of a supergraph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sg, err := loadSupergraph(sgPath)
			if err != nil {
				return err
			}
			if locations {
				locs := append([]string(nil), sg.Locations()...)
				sort.Strings(locs)
				for _, loc := range locs {
					fmt.Fprintln(cmd.OutOrStdout(), loc)
				}
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), schema.Render(sg.Schema(), supergraph.SourceDirective, supergraph.ResolverDirective))
			return nil
		},
	}
	cmd.Flags().StringVar(&sgPath, "supergraph", "supergraph.graphql", "Composed supergraph SDL")
	cmd.Flags().BoolVar(&locations, "locations", false, "List locations instead")
	return cmd
}
