package main

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/experiment"
	"github.com/mcdev12/choicetrial/go/internal/results"
	"github.com/mcdev12/choicetrial/go/internal/session"
	"github.com/mcdev12/choicetrial/go/internal/stimulus"
	"github.com/rs/zerolog/log"
)

// Services holds the result backends and the session factory.
type Services struct {
	Experiment *experiment.Experiment
	Reader     results.Reader
	Sink       results.Sink

	closers []func() error
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	exp, err := experiment.Load(config.Experiment, stimulus.DefaultRegistry())
	if err != nil {
		return nil, err
	}

	// Memory store always records, so results can be queried without a database.
	memory := results.NewMemoryStore()
	services := &Services{Experiment: exp, Reader: memory}
	sinks := results.MultiSink{memory}

	if config.Results.Postgres {
		database, err := setupDatabase(ctx)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, database.Close)

		store := results.NewPostgresStore(database)
		if err := store.EnsureSchema(ctx); err != nil {
			services.Close()
			return nil, err
		}
		sinks = append(sinks, store)
		services.Reader = store
	}

	if dir := config.Results.CSVDir; dir != "" {
		csvSink, err := results.NewCSVSink(dir)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, csvSink.Close)
		sinks = append(sinks, csvSink)
		log.Info().Str("dir", dir).Msg("writing results as CSV")
	}

	if url := config.Results.NATS.URL; url != "" {
		nc, js, err := results.ConnectNATS(url)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, func() error {
			return nc.Drain()
		})
		prefix := config.Results.NATS.SubjectPrefix
		if err := results.EnsureStream(ctx, js, prefix); err != nil {
			services.Close()
			return nil, err
		}
		sinks = append(sinks, results.NewNATSPublisher(js, prefix))
		log.Info().Str("url", url).Str("prefix", prefix).Msg("publishing results to NATS")
	}

	services.Sink = sinks
	return services, nil
}

// NewSession is the gateway's session factory. Each participant gets the
// experiment's trials in their own order.
func (s *Services) NewSession(participant string, container *dom.Container) (*session.Session, error) {
	if len(s.Experiment.Trials) == 0 {
		return nil, fmt.Errorf("experiment %q has no trials", s.Experiment.Name)
	}
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return session.New(session.Params{
		Participant: participant,
		Experiment:  s.Experiment.Name,
		Trials:      s.Experiment.Order(rng),
		Clock:       clockwork.NewRealClock(),
		Sink:        s.Sink,
	}, container), nil
}

// Close releases every backend in reverse order of setup.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close results backend")
		}
	}
	s.closers = nil
}
