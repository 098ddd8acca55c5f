package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"citetrack/internal/config"
	"citetrack/internal/logging"
	"citetrack/internal/notifications"
	"citetrack/internal/orchestrator"
	"citetrack/internal/records"
	"citetrack/internal/services/citelinker"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// environment bundles the collaborators a command needs once config is
// resolved. The store is closed when the command returns.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *records.Store
	orch     *orchestrator.Orchestrator
	notifier notifications.Service
}

func (c *commandContext) withEnvironment(fn func(env *environment) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	store, err := records.Open(cfg)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()

	linker := citelinker.NewClient(
		citelinker.WithBaseURL(cfg.Linker.BaseURL),
		citelinker.WithAPIKey(cfg.Linker.APIKey),
	)

	env := &environment{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		orch:     orchestrator.New(cfg, store, linker, logger),
		notifier: notifications.NewService(cfg),
	}
	return fn(env)
}

func parseRecordID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}

func parseRecordIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseRecordID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
