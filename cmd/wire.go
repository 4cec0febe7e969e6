package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	statusadapter "github.com/billaspace/anonxmusic/internal/adapters/render/status"
	"github.com/billaspace/anonxmusic/internal/config"
	"github.com/billaspace/anonxmusic/internal/domain"
)

type app struct {
	cfg            config.Config
	logger         *logrus.Logger
	credentials    domain.CredentialStore
	statusRenderer func([]statusadapter.SlotStatus, statusadapter.RenderOptions) (string, error)
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	credentials, err := domain.NewCredentialStore(cfg.Sessions...)
	if err != nil {
		return nil, fmt.Errorf("build credential store: %w", err)
	}

	return &app{
		cfg:            cfg,
		logger:         newLogger(cfg.LogLevel),
		credentials:    credentials,
		statusRenderer: statusadapter.Render,
	}, nil
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
