// Command helpdeskd runs the helpdesk background services: the
// notification delivery queue and, when configured, the mailbox intake
// poller.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soporteware/helpdesk/internal/credential"
	"github.com/soporteware/helpdesk/internal/engine"
	"github.com/soporteware/helpdesk/internal/intake"
	"github.com/soporteware/helpdesk/internal/mailer"
	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/queue"
	"github.com/soporteware/helpdesk/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "helpdeskd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the YAML configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	st.SetMaxRetries(cfg.Queue.MaxRetries)

	eng := engine.New(st)

	dispatcher := queue.NewDispatcher(st, mailer.LogSender{}, queue.Options{
		Interval:    time.Duration(cfg.Queue.IntervalSec) * time.Second,
		BatchSize:   cfg.Queue.BatchSize,
		SendTimeout: time.Duration(cfg.Queue.SendTimeoutSec) * time.Second,
		From:        cfg.Mail.From,
		ReplyTo:     cfg.Mail.ReplyTo,
	})
	dispatcher.Start()
	defer dispatcher.Stop()
	slog.Info("delivery queue started",
		"db", cfg.DBPath, "interval_sec", cfg.Queue.IntervalSec, "batch_size", cfg.Queue.BatchSize)

	if cfg.Intake.Enabled {
		password, err := credential.Get("imap:" + cfg.Intake.Username)
		if err != nil {
			return fmt.Errorf("loading IMAP credential: %w", err)
		}

		mailbox := intake.NewIMAPClient(
			cfg.Intake.Host, cfg.Intake.Port,
			cfg.Intake.Username, password,
			cfg.Intake.TLS, cfg.Intake.Mailbox,
		)
		poller := intake.NewPoller(mailbox, st, eng,
			time.Duration(cfg.Intake.PollIntervalSec)*time.Second)
		poller.Start()
		defer poller.Stop()
		slog.Info("mailbox intake started",
			"host", cfg.Intake.Host, "mailbox", cfg.Intake.Mailbox,
			"poll_interval_sec", cfg.Intake.PollIntervalSec)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	return nil
}
