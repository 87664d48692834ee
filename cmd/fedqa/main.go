// Command fedqa runs the Federal Reserve speech question answering
// service and its supporting tooling.
//
// Usage:
//
//	fedqa serve
//	fedqa ingest --data data/fed_speeches/speeches.jsonl
//	fedqa eval --max-queries 20
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/fedqa/pkg/agent"
	"github.com/kadirpekel/fedqa/pkg/config"
	"github.com/kadirpekel/fedqa/pkg/databases"
	"github.com/kadirpekel/fedqa/pkg/embedders"
	"github.com/kadirpekel/fedqa/pkg/evals"
	"github.com/kadirpekel/fedqa/pkg/guardrail"
	"github.com/kadirpekel/fedqa/pkg/ingest"
	"github.com/kadirpekel/fedqa/pkg/llms"
	"github.com/kadirpekel/fedqa/pkg/observability"
	"github.com/kadirpekel/fedqa/pkg/retriever"
	"github.com/kadirpekel/fedqa/pkg/server"
	"github.com/kadirpekel/fedqa/pkg/tools"
	"github.com/kadirpekel/fedqa/pkg/tracestore"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the question answering server."`
	Ingest  IngestCmd  `cmd:"" help:"Load speeches into the vector knowledge base."`
	Eval    EvalCmd    `cmd:"" help:"Run the synthetic relevance evaluation."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("fedqa version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides FEDQA_PORT)." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.FromEnv()
	if c.Port > 0 {
		cfg.Server.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	metrics, err := observability.InitMetrics(ctx, observability.MetricsConfig{Enabled: true})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	observability.SetGlobalMetrics(metrics)

	tracer, err := newTracer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	store, err := databases.NewQdrantStoreFromConfig(&cfg.VectorStore)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := buildChatService(ctx, cfg, store, tracer)
	if err != nil {
		return err
	}

	srv := server.New(&cfg.Server, service, slog.Default())

	fmt.Printf("fedqa server ready\n")
	fmt.Printf("   Chat:    http://%s/chat\n", srv.Address())
	fmt.Printf("   Health:  http://%s/health\n", srv.Address())
	fmt.Printf("   Metrics: http://%s/metrics\n", srv.Address())
	if cfg.Tracing.Enabled {
		fmt.Printf("   Tracing: %s (project %s)\n", cfg.Tracing.Endpoint, cfg.Tracing.ProjectName)
	}

	return srv.Start(ctx)
}

// IngestCmd loads speeches into the knowledge base.
type IngestCmd struct {
	Data      string `help:"Path to the speeches JSONL file." type:"path" default:"data/fed_speeches/speeches.jsonl"`
	ChunkSize int    `name:"chunk-size" help:"Chunk size in characters." default:"1500"`
	Overlap   int    `help:"Chunk overlap in characters." default:"200"`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := databases.NewQdrantStoreFromConfig(&cfg.VectorStore)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := embedders.NewOpenAIEmbedderFromConfig(&cfg.Embedder)
	if err != nil {
		return err
	}

	counter, err := ingest.NewTokenCounter(cfg.Embedder.Model)
	if err != nil {
		return err
	}
	chunker := ingest.NewChunker(c.ChunkSize, c.Overlap, ingest.DefaultMaxChunkTokens, counter)

	ingester := ingest.NewIngester(store, embedder, cfg.VectorStore.Collection, chunker, slog.Default())
	stats, err := ingester.Run(ctx, c.Data)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d speeches as %d chunks into %q (%d skipped)\n",
		stats.Speeches, stats.Chunks, cfg.VectorStore.Collection, stats.Skipped)
	return nil
}

// EvalCmd runs the offline evaluation pipeline.
type EvalCmd struct {
	MaxQueries int `name:"max-queries" help:"Number of synthetic queries to generate." default:"20"`
}

func (c *EvalCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	metrics, err := observability.InitMetrics(ctx, observability.MetricsConfig{Enabled: true})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	observability.SetGlobalMetrics(metrics)

	tracer, err := newTracer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	store, err := databases.NewQdrantStoreFromConfig(&cfg.VectorStore)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := buildChatService(ctx, cfg, store, tracer)
	if err != nil {
		return err
	}

	llm, err := llms.NewOpenAIProviderFromConfig(&cfg.LLM)
	if err != nil {
		return err
	}

	pipeline := evals.NewPipeline(
		evals.NewGenerator(llm, slog.Default()),
		service,
		tracestore.NewClient(&cfg.TraceStore, slog.Default()),
		evals.NewJudge(llm, slog.Default()),
		&cfg.Eval,
		slog.Default(),
	)

	result, err := pipeline.Run(ctx, c.MaxQueries)
	if err != nil {
		return err
	}

	fmt.Printf("Evaluated %d of %d responses\n", len(result.Records), len(result.Responses))
	for _, record := range result.Records {
		fmt.Printf("  [%d] %s\n", record.Score, record.Query)
	}
	return nil
}

// buildChatService wires the guardrail, retriever, tools, and reasoning
// loop into one chat service.
func buildChatService(ctx context.Context, cfg *config.Config, store databases.VectorStore, tracer *observability.Tracer) (*agent.Service, error) {
	embedder, err := embedders.NewOpenAIEmbedderFromConfig(&cfg.Embedder)
	if err != nil {
		return nil, err
	}

	knowledge := retriever.New(store, embedder, cfg.VectorStore.Collection, slog.Default())
	if err := knowledge.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	info, err := knowledge.VerifyCollection(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Collection verified",
		"collection", cfg.VectorStore.Collection,
		"points", info.PointCount,
		"vector_size", info.VectorSize,
		"distance", info.DistanceMetric)

	registry, err := tools.NewRegistry(tools.NewSearchTool(knowledge, retriever.DefaultTopK))
	if err != nil {
		return nil, err
	}

	llm, err := llms.NewOpenAIProviderFromConfig(&cfg.LLM)
	if err != nil {
		return nil, err
	}

	guardLLM, err := llms.NewOpenAIProviderFromConfig(&cfg.Guardrail)
	if err != nil {
		return nil, err
	}

	return agent.NewService(
		guardrail.NewClassifier(guardLLM, slog.Default()),
		agent.New(llm, registry, slog.Default()),
		tracer,
		slog.Default(),
	), nil
}

func newTracer(ctx context.Context, cfg *config.Config) (*observability.Tracer, error) {
	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{
		Enabled:      cfg.Tracing.Enabled,
		ExporterType: cfg.Tracing.ExporterType,
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		ServiceName:  cfg.Tracing.ServiceName,
		ProjectName:  cfg.Tracing.ProjectName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return tracer, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	return ctx, cancel
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("fedqa"),
		kong.Description("Question answering over Federal Reserve speeches."),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
