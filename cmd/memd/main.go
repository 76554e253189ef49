// Command memd is the long-lived per-project daemon: it runs the
// enrichment agents on their tickers and hosts the MCP tool-interface
// server over stdio (spec §2.5/§4.5/§4.7).
//
// Grounded on the teacher's internal/hivemind/server.go apiServer
// composition — ordered module construction (LLM, then dependent modules),
// an AddShutdownCallback-style reverse-order teardown, and a blocking
// Run() — generalized here: there is no gRPC gateway API server (the tool
// interface is a stdio MCP server, not an RPC endpoint you bind a port to),
// so genericapiserver/shutdown.GracefulShutdown's POSIX-signal manager is
// replaced with a direct context.WithCancel cancelled from os/signal.Notify
// since the teacher's pkg/http/shutdown package is not part of this module;
// the same "construct every module, then register its teardown in reverse
// order" idiom is kept.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kiosk404/agentmem/internal/config"
	"github.com/kiosk404/agentmem/internal/embed"
	"github.com/kiosk404/agentmem/internal/enrich"
	"github.com/kiosk404/agentmem/internal/identity"
	"github.com/kiosk404/agentmem/internal/llm"
	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/toolserver"
)

var configFile string

func main() {
	root := newMemdCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newMemdCommand() *cobra.Command {
	cmds := &cobra.Command{
		Use:   "memd",
		Short: "memd runs agentmem's enrichment agents and tool server for one project",
		RunE:  runDaemon,
	}
	cmds.Flags().StringVar(&configFile, "config", "", "Path to a JSON configuration file.")
	return cmds
}

func runDaemon(cmd *cobra.Command, args []string) error {
	opts, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logging.Init(logging.Options{Debug: opts.Debug, JSON: opts.LogJSON, Output: os.Stderr})

	projectHash, err := identity.ForPath(opts.WorkDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Options{
		Path:             opts.DBPath(projectHash),
		VecExtensionPath: opts.Store.VecExtensionPath,
	})
	if err != nil {
		return err
	}
	logging.Info("memd: store opened at %s (vector=%v fts=%v)", opts.DBPath(projectHash), db.VectorAvailable(), db.FTSAvailable())

	embedResult, err := embed.NewProvider(opts.Embedding)
	if err != nil {
		return err
	}
	if embedResult.FallbackFrom != "" {
		logging.Warn("memd: embedding provider %q unavailable (%s), fell back to %q", embedResult.FallbackFrom, embedResult.FallbackReason, embedResult.Provider.ID())
	}

	llmClient, err := llm.New(ctx, opts.LLM)
	if err != nil {
		return err
	}

	topicShift := enrich.NewTopicShiftDetector(db, projectHash)
	pathTracker := enrich.NewPathTracker(ctx, db, projectHash, llmClient)

	embeddingInterval := time.Duration(opts.Agents.EmbeddingIntervalMS) * time.Millisecond
	enrichInterval := time.Duration(opts.Agents.EnrichIntervalMS) * time.Millisecond
	curationInterval := time.Duration(opts.Agents.CurationIntervalMins) * time.Minute

	embeddingWorker := enrich.NewEmbeddingWorker(db, projectHash, embedResult.Provider, topicShift, embeddingInterval)
	llmProcessor := enrich.NewLLMProcessor(db, projectHash, llmClient, pathTracker, enrichInterval)
	curationAgent := enrich.NewCurationAgent(db, projectHash, curationInterval)

	scheduler := enrich.NewScheduler(embeddingWorker, llmProcessor, curationAgent)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	logging.Info("memd: enrichment agents started for project %s", projectHash)

	toolCfg, err := (&toolserver.Config{DB: db, ProjectHash: projectHash, LLMClient: llmClient}).Complete()
	if err != nil {
		return err
	}
	toolModule, err := toolCfg.New(ctx)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- toolModule.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		logging.Info("memd: shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logging.Error("memd: tool server exited: %v", err)
		}
	}

	scheduler.Stop()
	db.Checkpoint(context.Background())
	return db.Close()
}
