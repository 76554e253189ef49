// Command memhook is the short-lived hook handler the host assistant
// invokes once per event (spec §4.4). It reads one JSON event document from
// stdin, runs it through the ingest pipeline, and prints session-start
// context to stdout when applicable. It always exits zero: a hook that
// fails the host's turn is worse than one that silently drops an
// observation.
//
// Grounded on the teacher's single-purpose binary shape (cmd/golem is a
// thin main() deferring to an internal package), generalized here into a
// direct cobra command since the app-framework indirection the teacher uses
// (internal/pkg/server, pkg/cli/genericclioptions) is not part of this
// module.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kiosk404/agentmem/internal/config"
	"github.com/kiosk404/agentmem/internal/identity"
	"github.com/kiosk404/agentmem/internal/ingest"
	"github.com/kiosk404/agentmem/internal/logging"
	"github.com/kiosk404/agentmem/internal/repository"
	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/validate"
)

var excludedPaths []string
var recentWindow int
var configFile string

func main() {
	root := newMemhookCommand()
	if err := root.Execute(); err != nil {
		// Never propagate a nonzero exit from the normal path: errors here
		// are already logged by the subcommand itself.
		os.Exit(0)
	}
}

func newMemhookCommand() *cobra.Command {
	cmds := &cobra.Command{
		Use:   "memhook",
		Short: "memhook records one host-assistant event into agentmem",
		RunE:  runHook,
	}
	cmds.PersistentFlags().StringVar(&configFile, "config", "", "Path to a JSON configuration file.")
	cmds.Flags().StringSliceVar(&excludedPaths, "exclude", nil, "Glob-style path prefixes excluded from capture.")
	cmds.Flags().IntVar(&recentWindow, "recent-window", 20, "Number of recent session observations checked for duplicates.")

	cmds.AddCommand(newDoctorCommand())
	return cmds
}

func runHook(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd.Flags())
	if err != nil {
		logging.Error("memhook: load config: %v", err)
		return nil
	}
	logging.Init(logging.Options{Debug: opts.Debug, JSON: opts.LogJSON, Output: os.Stderr})

	var ev ingest.Event
	if err := validate.DecodeStrict(os.Stdin, &ev); err != nil {
		logging.Error("memhook: decode event: %v", err)
		return nil
	}

	workDir := ev.CWD
	if workDir == "" {
		workDir = opts.WorkDir
	}
	projectHash, err := identity.ForPath(workDir)
	if err != nil {
		logging.Error("memhook: resolve project identity: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := store.Open(ctx, store.Options{
		Path:             opts.DBPath(projectHash),
		VecExtensionPath: opts.Store.VecExtensionPath,
	})
	if err != nil {
		logging.Error("memhook: open store: %v", err)
		return nil
	}
	defer db.Close()

	sessions := repository.NewSessionRepository(db, projectHash)
	switch ev.EventType {
	case ingest.EventSessionStart:
		if err := sessions.Start(ctx, ev.SessionID); err != nil {
			logging.Warn("memhook: start session %s: %v", ev.SessionID, err)
		}
	case ingest.EventSessionEnd:
		if err := sessions.End(ctx, ev.SessionID, ""); err != nil {
			logging.Warn("memhook: end session %s: %v", ev.SessionID, err)
		}
	}

	pipeline := ingest.NewPipeline(db, ingest.Options{
		ProjectHash:   projectHash,
		ExcludedPaths: excludedPaths,
		RecentWindow:  recentWindow,
	})
	out := pipeline.Run(ctx, &ev)

	if ev.EventType == ingest.EventSessionStart && out.SessionStartText != "" {
		fmt.Fprint(os.Stdout, out.SessionStartText)
	}
	if out.Rejected {
		logging.Debug("memhook: rejected event: %s", out.RejectReason)
	}
	return nil
}

func loadOptions(fs *pflag.FlagSet) (*config.Options, error) {
	return config.Load(configFile, fs)
}

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the per-project store is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd.Flags())
			if err != nil {
				color.Red("config: %v", err)
				return nil
			}
			projectHash, err := identity.ForPath(opts.WorkDir)
			if err != nil {
				color.Red("project identity: %v", err)
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			db, err := store.Open(ctx, store.Options{Path: opts.DBPath(projectHash), VecExtensionPath: opts.Store.VecExtensionPath})
			if err != nil {
				color.Red("store: %v", err)
				return nil
			}
			defer db.Close()
			color.Green("store reachable: %s", opts.DBPath(projectHash))
			if db.VectorAvailable() {
				color.Green("vector search: enabled")
			} else {
				color.Yellow("vector search: disabled (no sqlite-vec extension configured)")
			}
			return nil
		},
	}
}
