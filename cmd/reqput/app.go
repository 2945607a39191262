package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/funnyzak/reqput/internal/catalog"
	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/executor"
	"github.com/funnyzak/reqput/internal/group"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/printer"
	"github.com/funnyzak/reqput/internal/session"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/i18n"
	"github.com/funnyzak/reqput/pkg/request"
)

// app wires every component a command needs
type app struct {
	cfg      *config.Config
	log      logger.Logger
	store    storage.Store
	groups   *group.Registry
	executor *executor.Executor
	session  *session.Session
	printer  printer.Printer
	groupID  string
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(&cfg.Log, cfg.Output.Mode)

	translator, err := i18n.NewTranslator("en")
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	store, err := storage.New(&cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	groupID, _ := cmd.Flags().GetString("group")
	groups := group.Load(cfg.Groups.Path, log)
	if _, ok := groups.Find(groupID); !ok {
		store.Close()
		return nil, fmt.Errorf("%w: %q", session.ErrUnknownGroup, groupID)
	}

	exec := executor.NewExecutor(log, executorOptions(&cfg.Executor))

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		groups:   groups,
		executor: exec,
		session:  session.New(request.NewCompiler(nil), exec, catalog.New(store, log), groups, log),
		printer:  printer.New(cfg.Output.Mode, log, &cfg.Output, translator),
		groupID:  groupID,
	}, nil
}

func executorOptions(cfg *config.ExecutorConfig) executor.Options {
	seconds := func(v int) time.Duration { return time.Duration(v) * time.Second }
	return executor.Options{
		Timeout:               cfg.TimeoutDuration(),
		MaxRedirects:          cfg.MaxRedirects,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       seconds(cfg.IdleConnTimeout),
		ResponseHeaderTimeout: seconds(cfg.ResponseHeaderTimeout),
		TLSHandshakeTimeout:   seconds(cfg.TLSHandshakeTimeout),
		TLSInsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		UserAgent:             cfg.UserAgent,
	}
}

// start runs the session loop in the background and activates the selected
// group. The returned func stops the loop and waits for it.
func (a *app) start(ctx context.Context) (func(), error) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.session.Run(loopCtx)
	}()
	stop := func() {
		cancel()
		<-done
	}

	if err := a.session.SwitchGroup(ctx, a.groupID, ""); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}

func (a *app) close() {
	a.executor.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close catalog", "error", err)
	}
}
