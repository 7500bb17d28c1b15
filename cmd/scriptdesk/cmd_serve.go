package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/scriptdesk/internal/gateway"
	"github.com/user/scriptdesk/internal/scheduler"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/telegram"
	"github.com/user/scriptdesk/internal/types"
	"github.com/user/scriptdesk/internal/webhook"
	"github.com/user/scriptdesk/internal/whatsapp"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scriptdesk daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

const pidFile = "scriptdesk.pid"

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFile)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	gw := gateway.New(p.dispatcher, p.fanout,
		gateway.WithJournal(p.journal),
		gateway.WithMaxConcurrent(int64(cfg.MaxConcurrent)),
		gateway.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	gw.Start(gctx)
	defer gw.Stop()

	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, logger)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		p.registry.Register(telegram.Prefix, adapter)
		g.Go(func() error { return adapter.Start(gctx) })
	} else {
		logger.Warn("telegram adapter disabled (no token)")
	}

	if cfg.WhatsApp.Enabled {
		adapter := whatsapp.New(cfg.DataDir, gw, logger)
		for _, ch := range roleChannels(cfg) {
			adapter.Alias(ch)
		}
		p.registry.Register(whatsapp.Prefix, adapter)
		g.Go(func() error { return adapter.Start(gctx) })
	} else {
		logger.Warn("whatsapp adapter disabled")
	}

	sched := scheduler.New(p.jobs, func(job *state.Job) {
		id, err := gw.Submit(gctx, job.Event("cron", ""))
		if err != nil {
			logger.Error("scheduled job not enqueued", "job", job.Name, "error", err)
			return
		}
		logger.Info("scheduled job enqueued", "job", job.Name, "run_id", id)
	}, logger)
	err = sched.Every("headline-sweep", "@every 10m", func() {
		if n := p.headlines.Expire(); n > 0 {
			logger.Debug("expired headline sessions", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("register headline sweep: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	g.Go(func() error {
		sched.Watch(gctx, 30*time.Second)
		return nil
	})

	if cfg.HTTP.Enabled {
		submit := func(ctx context.Context, ev *types.InboundEvent) (types.RunID, error) {
			return gw.Submit(ctx, ev)
		}
		srv := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           webhook.NewServer(p.jobs, submit, p.journal, p.headlines, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("webhook server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	}

	logger.Info("scriptdesk started",
		"data_dir", cfg.DataDir,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"intake", cfg.Channels.Intake,
		"transports", p.registry.Prefixes(),
		"pid_file", pidPath,
	)

	// Let in-flight runs finish their deliveries before the process goes away.
	drain := func() {
		if n := gw.Queue.Active(); n > 0 {
			logger.Info("waiting for active runs", "count", n)
			if !gw.Queue.WaitIdle(30 * time.Second) {
				logger.Warn("active runs still running after 30s")
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case <-gctx.Done():
			cancel()
			err := g.Wait()
			logger.Info("shutting down", "error", err)
			return err
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				logger.Info("received SIGHUP, restarting")
				drain()
				execPath, err := os.Executable()
				if err != nil {
					logger.Error("failed to get executable path", "error", err)
					continue
				}
				os.Remove(pidPath)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					logger.Error("failed to re-exec", "error", err)
					if _, werr := writePIDFile(cfg.DataDir); werr != nil {
						logger.Error("failed to re-write PID file", "error", werr)
					}
				}
				continue
			}
			logger.Info("shutting down", "signal", sig)
			drain()
			cancel()
			g.Wait()
			return nil
		}
	}
}
