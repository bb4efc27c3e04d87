package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recorder/internal/browser"
	"recorder/internal/calllog"
	"recorder/internal/codegen"
	"recorder/internal/protocol"
	"recorder/internal/session"
	"recorder/internal/surface"
)

var (
	recordOutput       string
	recordLanguage     string
	recordMode         string
	recordProgrammatic bool
	recordNoSurface    bool
)

var recordCmd = &cobra.Command{
	Use:   "record [url]",
	Short: "Open a page and record interactions until interrupted",
	Long: `Launches Chrome (or attaches to browser.debugger_url), opens the given URL
and records every interaction. Generated sources are pushed to the control
surface; the primary language is mirrored to --output.

Example:
  recorder record https://example.com --language python-pytest --output test_example.py`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "File kept in sync with the primary source")
	recordCmd.Flags().StringVarP(&recordLanguage, "language", "l", "", "Primary generator id (see 'recorder languages')")
	recordCmd.Flags().StringVar(&recordMode, "mode", "", "Initial mode")
	recordCmd.Flags().BoolVar(&recordProgrammatic, "programmatic", false, "Emit one JSON action event per change on stdout instead of sources")
	recordCmd.Flags().BoolVar(&recordNoSurface, "no-surface", false, "Do not serve the control surface")
}

// sessionConfig maps the loaded config and flags onto a session config.
func sessionConfig() session.Config {
	rc := cfg.Recorder
	if recordOutput != "" {
		rc.Output = recordOutput
	}
	if recordLanguage != "" {
		rc.Language = recordLanguage
	}
	if recordMode != "" {
		rc.Mode = recordMode
	}
	return session.Config{
		Generators: codegen.Builtin(),
		PrimaryID:  rc.Language,
		Options: codegen.Options{
			BrowserName: "chromium",
			URL:         rc.StartURL,
			AutoExpect:  rc.AutoExpect,
			Headless:    cfg.Browser.Headless,
		},
		Mode:            protocol.Mode(rc.Mode),
		OutputPath:      rc.Output,
		OutputDelay:     cfg.GetOutputDelay(),
		UserSources:     rc.UserSources,
		Programmatic:    rc.Programmatic || recordProgrammatic,
		ClickWindow:     cfg.GetClickWindow(),
		SignalThreshold: cfg.GetSignalThreshold(),
		CommandTimeout:  commandTimeout(),
	}
}

func surfaceConfig() surface.Config {
	return surface.Config{
		Addr:            cfg.Surface.Addr,
		MaxMessageSize:  cfg.Surface.MaxMessageSize,
		ReadTimeout:     cfg.GetSurfaceReadTimeout(),
		WriteTimeout:    cfg.GetSurfaceWriteTimeout(),
		PingInterval:    cfg.GetSurfacePingInterval(),
		EventsPerSecond: cfg.Surface.EventsPerSecond,
		Burst:           cfg.Surface.Burst,
	}
}

// openAudit opens the call-log store when auditing is enabled.
func openAudit() (*calllog.Store, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	store, err := calllog.OpenStore(cfg.Audit.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	return store, nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	url := cfg.Recorder.StartURL
	if len(args) > 0 {
		url = args[0]
	}

	scfg := sessionConfig()
	scfg.Options.URL = url
	if scfg.Programmatic {
		enc := json.NewEncoder(cmd.OutOrStdout())
		scfg.OnActionEvent = func(ev codegen.ActionEvent) {
			if err := enc.Encode(ev); err != nil {
				logger.Warn("Failed to write action event", zap.Error(err))
			}
		}
	}

	store, err := openAudit()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		scfg.Audit = store
	}

	mgr := browser.NewManager(cfg.Browser)
	scfg.Instrumentation = mgr
	hub := surface.NewHub()
	registry := session.NewRegistry()
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("Failed to close sessions", zap.Error(err))
		}
	}()

	target := session.Target(cfg.Browser.DebuggerURL)
	if target == "" {
		target = "launched"
	}
	sess, _, err := registry.Attach(target, func() (*session.Session, error) {
		return session.New(scfg, mgr, hub)
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	mgr.SetObserver(sess)

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}()

	if cfg.Surface.Enabled && !recordNoSurface {
		srv := surface.NewServer(surfaceConfig(), hub)
		srv.Bind(sess)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start control surface: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Control surface shutdown failed", zap.Error(err))
			}
		}()
		fmt.Fprintf(cmd.ErrOrStderr(), "Control surface: ws://%s/ws\n", srv.Addr())
	}

	if len(mgr.Pages()) == 0 {
		if _, err := mgr.NewPage(ctx, url); err != nil {
			return fmt.Errorf("failed to open %s: %w", url, err)
		}
	}
	logger.Info("Recording",
		zap.String("session", sess.ID()),
		zap.String("url", url),
		zap.String("language", scfg.PrimaryID))
	fmt.Fprintln(cmd.ErrOrStderr(), "Recording. Press Ctrl+C to stop.")

	<-ctx.Done()
	logger.Info("Stopping recorder")
	return nil
}
