package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonwraymond/codecall/backend"
	"github.com/jonwraymond/codecall/backend/remote"
	"github.com/jonwraymond/codecall/config"
	"github.com/jonwraymond/codecall/registry"
)

// session is the state shared by subcommands: configuration, a registry
// with built-in and remote tools, and the backends it must close.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	reg     *registry.Registry
	closers []backend.Closer
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	s := &session{
		cfg:    cfg,
		logger: logger,
		reg:    registry.New(registry.WithLogger(logger)),
	}
	if err := s.reg.RegisterLocal("util", builtinTools(time.Now)...); err != nil {
		return nil, err
	}

	if cfg.ServersFile == "" {
		return s, nil
	}
	servers, err := config.LoadServers(cfg.ServersFile)
	if err != nil {
		return nil, err
	}
	for _, sc := range servers {
		conn, err := remote.Connect(ctx, sc)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, conn)
		if err := s.reg.RegisterRemote(sc.Name, conn); err != nil {
			_ = s.Close()
			return nil, err
		}
		logger.Info("remote connected", "name", sc.Name, "transport", conn.Transport(), "tools", len(conn.Tools()))
	}
	return s, nil
}

// Close closes every owned backend.
func (s *session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
