package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spaceboy92/Aether-IDE/internal/export"
	"github.com/spaceboy92/Aether-IDE/internal/gateway"
	"github.com/spaceboy92/Aether-IDE/internal/mirror"
	"github.com/spaceboy92/Aether-IDE/internal/preview"
)

var (
	exportFormat string
	exportOut    string
	mirrorDir    string
	composeGenre string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "zip", "export format: zip or html")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (defaults to <project>.<format>)")
	mirrorCmd.Flags().StringVar(&mirrorDir, "dir", "", "checkout directory (defaults to config mirror.directory)")
	composeCmd.Flags().StringVar(&composeGenre, "genre", "electronic", "musical genre")

	snapshotCmd.AddCommand(snapshotTakeCmd, snapshotListCmd, snapshotRestoreCmd)
	rootCmd.AddCommand(enhanceCmd)
}

// serveCmd runs the live preview server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve live project previews over HTTP",
	Long: `Starts the preview server. Each project is reachable at
/preview/<project-id> as a standalone HTML page with all styles and scripts
inlined, and at /export/<project-id>.zip as an archive download.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		srv := preview.NewServer(app.store, app.cfg.Preview.Addr)
		logger.Info("preview server starting", zap.String("addr", app.cfg.Preview.Addr))

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sig:
			logger.Info("shutting down preview server")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

// exportCmd writes a project artifact to disk.
var exportCmd = &cobra.Command{
	Use:   "export [project-id]",
	Short: "Export a project as a zip archive or standalone HTML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		projectID := args[0]
		files, err := app.store.GetFiles(projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		var data []byte
		switch exportFormat {
		case "zip":
			data, err = export.ProjectZip(files)
			if err != nil {
				return err
			}
		case "html":
			data = []byte(export.StandaloneHTML(files))
		default:
			return fmt.Errorf("unknown format %q (want zip or html)", exportFormat)
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("%s.%s", projectID, exportFormat)
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

		logger.Info("project exported",
			zap.String("project", projectID),
			zap.String("format", exportFormat),
			zap.String("out", out),
			zap.Int("bytes", len(data)))
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

// snapshotCmd groups snapshot operations.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take, list, and restore project snapshots",
}

var snapshotTakeCmd = &cobra.Command{
	Use:   "take [project-id] [description]",
	Short: "Snapshot a project's current file set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		description := "manual snapshot"
		if len(args) > 1 {
			description = strings.Join(args[1:], " ")
		}

		snap, err := app.store.TakeSnapshot(args[0], description)
		if err != nil {
			return err
		}
		fmt.Printf("snapshot %s taken (%d files)\n", snap.ID, len(snap.Files))
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List a project's snapshots, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		snaps, err := app.store.Snapshots(args[0])
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("no snapshots")
			return nil
		}
		for _, s := range snaps {
			taken := time.UnixMilli(s.Timestamp).Format(time.RFC3339)
			fmt.Printf("%s  %s  %d files  %s\n", s.ID, taken, len(s.Files), s.Description)
		}
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore [project-id] [snapshot-id]",
	Short: "Replace a project's files with a snapshot's contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		files, err := app.store.RestoreSnapshot(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("restored %d files\n", len(files))
		return nil
	},
}

// mirrorCmd checks a project out to disk and keeps it in sync.
var mirrorCmd = &cobra.Command{
	Use:   "mirror [project-id]",
	Short: "Check a project out to a directory and sync edits back",
	Long: `Writes the project's files to a local directory and watches it.
Edits made with any editor are written back into the project store as they
are saved. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		dir := mirrorDir
		if dir == "" {
			dir = filepath.Join(workspace, app.cfg.Mirror.Directory, args[0])
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}

		m := mirror.New(app.store, args[0], dir)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := m.Checkout(ctx); err != nil {
			return err
		}
		logger.Info("mirror ready", zap.String("dir", dir))
		fmt.Printf("mirroring %s at %s (ctrl-c to stop)\n", args[0], dir)

		if err := m.Watch(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

// enhanceCmd rewrites a prompt for better generation results.
var enhanceCmd = &cobra.Command{
	Use:   "enhance [prompt]",
	Short: "Rewrite a prompt to get better generation results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		svc, err := gateway.NewGenAIService(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return err
		}

		fmt.Println(svc.EnhancePrompt(ctx, strings.Join(args, " ")))
		return nil
	},
}

// composeCmd generates a structured musical loop.
var composeCmd = &cobra.Command{
	Use:   "compose [description]",
	Short: "Generate a 4-bar musical loop as structured JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		svc, err := gateway.NewGenAIService(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return err
		}

		score, err := svc.GenerateMusicalScore(ctx, strings.Join(args, " "), composeGenre)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(score, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
