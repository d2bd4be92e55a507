package main

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"regionhooks.ai/internal/claimstore"
	"regionhooks.ai/internal/config"
	"regionhooks.ai/internal/host"
	"regionhooks.ai/internal/landstore"
	"regionhooks.ai/internal/regions"
	"regionhooks.ai/internal/regions/claimhook"
	"regionhooks.ai/internal/regions/landhook"
)

type backends struct {
	server   *host.Server
	registry *regions.Registry
	lands    *landstore.Store // nil unless lands are enabled
	closers  []io.Closer
}

// openBackends builds the worlds, opens the enabled backends and registers
// their providers, claims first.
func openBackends(cfg config.Config, promReg prometheus.Registerer, logger *log.Logger) (*backends, error) {
	rt := &backends{
		server:   host.NewServer(),
		registry: regions.NewRegistry(logger, regions.NewMetrics(promReg)),
	}
	for _, w := range cfg.Worlds {
		rt.server.AddWorld(&host.World{ID: uuid.MustParse(w.ID), Name: w.Name, MaxHeight: w.MaxHeight})
	}

	if cfg.Claims.Enabled {
		claims, err := claimstore.Open(cfg.Claims.DBPath)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("claims: %w", err)
		}
		rt.closers = append(rt.closers, claims)
		if err := rt.registry.Register(claimhook.New(claims, rt.server, logger)); err != nil {
			rt.Close()
			return nil, err
		}
		logger.Printf("claims: %d loaded from %s", len(claims.Claims()), cfg.Claims.DBPath)
	}
	if cfg.Lands.Enabled {
		lands, err := landstore.Open(cfg.Lands.Dir)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("lands: %w", err)
		}
		rt.closers = append(rt.closers, lands)
		rt.lands = lands
		if err := rt.registry.Register(landhook.New(lands, rt.server, logger)); err != nil {
			rt.Close()
			return nil, err
		}
		logger.Printf("lands: %d loaded", len(lands.All()))
	}
	return rt, nil
}

func (rt *backends) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
