// Package session assembles a ready-to-use folio client from the .folio
// directory: config, diagnostics, credential storage, session events, the
// access layer and the resource facades.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/folio/pkg/access"
	"github.com/papercomputeco/folio/pkg/account"
	"github.com/papercomputeco/folio/pkg/blog"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/diagnostics"
	"github.com/papercomputeco/folio/pkg/dotdir"
	"github.com/papercomputeco/folio/pkg/publisher"
	"github.com/papercomputeco/folio/pkg/publisher/kafka"
)

// Options control how Open builds a Session.
type Options struct {
	// ConfigDir overrides .folio directory discovery.
	ConfigDir string

	// Environment overrides the configured environment when set.
	Environment string

	// BaseURL overrides the configured API base URL when set.
	BaseURL string

	Navigator  access.Navigator
	HTTPClient access.HTTPDoer

	// Sleep replaces the retry wait, for tests.
	Sleep func(ctx context.Context, d time.Duration) error

	// Sink replaces the environment-derived sink.
	Sink *diagnostics.Sink
}

// Session is an open folio client.
type Session struct {
	Dir     string
	Config  *config.Config
	Sink    *diagnostics.Sink
	Store   *credentials.Store
	Events  *publisher.ChannelPublisher
	Client  *access.Client
	Account *account.Facade
	Blogs   *blog.Facade

	publisher publisher.Publisher
	closers   []func() error
}

// Open resolves the .folio directory and builds every component.
func Open(opts Options) (*Session, error) {
	dir, err := dotdir.NewManager().EnsureTarget(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if opts.Environment != "" {
		cfg.Environment = opts.Environment
	}
	if opts.BaseURL != "" {
		cfg.API.BaseURL = opts.BaseURL
	}

	s := &Session{Dir: dir, Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	s.Sink = opts.Sink
	if s.Sink == nil {
		env, err := diagnostics.ParseEnvironment(cfg.Environment)
		if err != nil {
			return nil, err
		}
		if s.Sink, err = diagnostics.New(env); err != nil {
			return nil, err
		}
	}

	backend, err := s.openBackend()
	if err != nil {
		return nil, err
	}
	s.Store = credentials.NewStore(backend, credentials.WithSink(s.Sink.Named("credentials")))

	if err := s.openPublisher(); err != nil {
		return nil, err
	}

	s.Client, err = access.New(access.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		MaxRetries:  cfg.API.MaxRetries,
		BackoffBase: cfg.API.BackoffBase,
		HTTPClient:  opts.HTTPClient,
		Store:       s.Store,
		Sink:        s.Sink.Named("access"),
		Navigator:   opts.Navigator,
		Publisher:   s.publisher,
		Sleep:       opts.Sleep,
	})
	if err != nil {
		return nil, err
	}

	s.Account = account.New(s.Client, s.Sink.Named("account"))
	s.Blogs = blog.New(s.Client)

	s.Sink.Info("session opened",
		zap.String("dir", dir),
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("credentials", cfg.Credentials.Backend),
	)

	ok = true
	return s, nil
}

func (s *Session) openBackend() (credentials.Backend, error) {
	switch s.Config.Credentials.Backend {
	case config.BackendMemory:
		return credentials.NewMemoryBackend(), nil
	case config.BackendSQLite:
		b, err := credentials.NewSQLiteBackend(s.Config.Credentials.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, b.Close)
		return b, nil
	case config.BackendFile, "":
		return credentials.NewFileBackend(s.Dir)
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", s.Config.Credentials.Backend)
	}
}

func (s *Session) openPublisher() error {
	s.Events = publisher.NewChannelPublisher()
	publishers := []publisher.Publisher{s.Events}

	if events := s.Config.Events; len(events.KafkaBrokers) > 0 {
		kp, err := kafka.NewPublisher(kafka.Config{
			Brokers:  events.KafkaBrokers,
			Topic:    events.KafkaTopic,
			ClientID: events.ClientID,
		})
		if err != nil {
			return fmt.Errorf("creating kafka publisher: %w", err)
		}
		publishers = append(publishers, kp)
	}

	s.publisher = publisher.NewMultiPublisher(publishers...)
	s.closers = append(s.closers, s.publisher.Close)
	return nil
}

// Close releases the publisher and credential backend and flushes the sink.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.Sink != nil {
		_ = s.Sink.Sync()
	}
	return errors.Join(errs...)
}
