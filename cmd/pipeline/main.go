// Command pipeline runs one stage of the training data and model pipeline per
// invocation. Stages are idempotent and meant to be re-run by a scheduler.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"plant-classifier-pipeline/internal/config"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("stage failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Run a stage of the plant classifier pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rt := &runtime{cfg: cfg}
	root.AddCommand(
		newRegisterCmd(rt),
		newSyncCmd(rt),
		newHydrateCmd(rt),
		newPublishCmd(rt),
		newResolveCmd(rt),
		newReloadCmd(rt),
	)
	return root
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// printResult writes a stage result to stdout as indented JSON. Logs go to
// stderr so the output stays machine readable.
func printResult(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
