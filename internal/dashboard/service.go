package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/acquire"
	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/datasets"
	"github.com/vinodismyname/sidpol/internal/store"
	"github.com/vinodismyname/sidpol/internal/telemetry"
)

// ErrNoDataset means no dataset is cached and none could be discovered.
var ErrNoDataset = errors.New("dashboard: no dataset loaded")

// ErrStoreDisabled means an operation needs the relational store but none is
// configured.
var ErrStoreDisabled = errors.New("dashboard: store not configured")

// Options wires a Service. Store and Fetcher are optional.
type Options struct {
	Datasets *datasets.Manager
	Store    *store.Store
	Fetcher  *acquire.Fetcher
	Observer telemetry.Observer
	Logger   zerolog.Logger
	Dir      string
	Pattern  string
	// EnableSQL allows free-text read-only queries against Store.
	EnableSQL bool
}

// Service orchestrates loading, caching, filtering and the statistics core.
// Every core computation is reported to the observer.
type Service struct {
	datasets *datasets.Manager
	store    *store.Store
	fetcher  *acquire.Fetcher
	obs      telemetry.Observer
	logger   zerolog.Logger
	dir      string
	pattern  string
	sql      bool

	mu        sync.Mutex
	persisted string
}

// New builds a Service.
func New(opts Options) *Service {
	if opts.Observer == nil {
		opts.Observer = telemetry.Nop
	}
	if opts.Pattern == "" {
		opts.Pattern = config.DefaultSourcePattern
	}
	return &Service{
		datasets: opts.Datasets,
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		obs:      opts.Observer,
		logger:   opts.Logger.With().Str("component", "dashboard").Logger(),
		dir:      opts.Dir,
		pattern:  opts.Pattern,
		sql:      opts.EnableSQL,
	}
}

// Store returns the configured store or nil.
func (s *Service) Store() *store.Store { return s.store }

// Load reads path into the cache, or the newest matching file in the data
// directory when path is empty. A newly read source replaces the store
// contents when a store is configured.
func (s *Service) Load(ctx context.Context, path string) (*datasets.Handle, error) {
	done := telemetry.Track(ctx, s.obs, "dataset.load", 0)
	var (
		h   *datasets.Handle
		err error
	)
	if path == "" {
		h, err = s.datasets.LoadLatest(ctx, s.dir, s.pattern)
	} else {
		h, err = s.datasets.Load(ctx, path)
	}
	if err != nil {
		done(false, err)
		return nil, err
	}
	if err := s.persist(ctx, h); err != nil {
		done(false, err)
		return nil, err
	}
	done(true, nil)
	s.logger.Info().Ctx(ctx).Str("handle", h.ID).Str("path", h.Source.Path).Int("rows", h.Table.Len()).Msg("dataset ready")
	return h, nil
}

func (s *Service) persist(ctx context.Context, h *datasets.Handle) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persisted == h.Source.Key() {
		return nil
	}
	done := telemetry.Track(ctx, s.obs, "store.replace", h.Table.Len())
	stats, err := s.store.Replace(ctx, h.Source, h.Table)
	done(err == nil, err)
	if err != nil {
		return fmt.Errorf("dashboard: persist: %w", err)
	}
	s.persisted = h.Source.Key()
	s.logger.Debug().Ctx(ctx).Int("facts", stats.Facts).Int("locations", stats.Locations).Int("modalities", stats.Modalities).Msg("store replaced")
	return nil
}

// Refresh downloads the newest published CSV and loads it.
func (s *Service) Refresh(ctx context.Context) (acquire.Result, *datasets.Handle, error) {
	if s.fetcher == nil {
		return acquire.Result{}, nil, errors.New("dashboard: fetcher not configured")
	}
	done := telemetry.Track(ctx, s.obs, "acquire.download", 0)
	res, err := s.fetcher.Download(ctx)
	done(err == nil, err)
	if err != nil {
		return res, nil, err
	}
	h, err := s.Load(ctx, res.Path)
	return res, h, err
}

// Handle resolves id to a cached dataset. An empty id selects the most
// recent dataset, loading the newest file from disk if nothing is cached.
func (s *Service) Handle(ctx context.Context, id string) (*datasets.Handle, error) {
	if id != "" {
		h, ok := s.datasets.Get(id)
		if !ok {
			return nil, datasets.ErrHandleNotFound
		}
		return h, nil
	}
	if h, ok := s.datasets.Latest(); ok {
		return h, nil
	}
	h, err := s.Load(ctx, "")
	if errors.Is(err, dataset.ErrSourceNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNoDataset, err)
	}
	return h, err
}

// Filtered applies sel to the dataset behind id.
func (s *Service) Filtered(ctx context.Context, id string, sel dataset.Selection) (*dataset.Table, *datasets.Handle, error) {
	h, err := s.Handle(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	done := telemetry.Track(ctx, s.obs, "dataset.filter", h.Table.Len())
	t := dataset.Filter(h.Table, sel)
	done(true, nil)
	return t, h, nil
}

// Options lists the selectable values of the dataset behind id.
func (s *Service) Options(ctx context.Context, id, department string) (dataset.Options, error) {
	h, err := s.Handle(ctx, id)
	if err != nil {
		return dataset.Options{}, err
	}
	return dataset.SelectionOptions(h.Table, department), nil
}

// SQLEnabled reports whether Query is available.
func (s *Service) SQLEnabled() bool { return s.sql && s.store != nil }

// CanRefresh reports whether a portal fetcher is configured.
func (s *Service) CanRefresh() bool { return s.fetcher != nil }

// Query runs a read-only statement against the store, after making sure the
// newest dataset has been persisted.
func (s *Service) Query(ctx context.Context, q string, maxRows int) (*store.QueryResult, error) {
	if !s.SQLEnabled() {
		return nil, ErrStoreDisabled
	}
	if err := store.CheckReadOnly(q); err != nil {
		return nil, err
	}
	if _, err := s.Handle(ctx, ""); err != nil {
		return nil, err
	}
	done := telemetry.Track(ctx, s.obs, "store.query", 0)
	res, err := s.store.Query(ctx, q, maxRows)
	done(err == nil && len(res.Rows) > 0, err)
	return res, err
}
