package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/metrics"
	"github.com/alanyoungcy/lotoqubo/internal/scoring"
)

// DrawSource fetches the complete draw history from upstream.
type DrawSource interface {
	FetchAll(ctx context.Context) ([]domain.Draw, error)
}

// DrawSummary describes the stored history.
type DrawSummary struct {
	Count  int          `json:"count"`
	Latest *domain.Draw `json:"latest,omitempty"`
}

// DrawService loads the historical dataset a run works from. The store,
// cache, archiver and bus are optional and may be nil.
type DrawService struct {
	source   DrawSource
	draws    domain.DrawStore
	cache    domain.FrequencyCache
	archiver domain.Archiver
	bus      domain.SignalBus
	costs    domain.CostTable
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDrawService creates a DrawService.
func NewDrawService(
	source DrawSource,
	draws domain.DrawStore,
	cache domain.FrequencyCache,
	archiver domain.Archiver,
	bus domain.SignalBus,
	costs domain.CostTable,
	m *metrics.Metrics,
	logger *slog.Logger,
) *DrawService {
	return &DrawService{
		source:   source,
		draws:    draws,
		cache:    cache,
		archiver: archiver,
		bus:      bus,
		costs:    costs,
		metrics:  m,
		logger:   logger.With(slog.String("component", "draw_service")),
	}
}

// Load builds the dataset for one or more budget runs. Stored draws are
// preferred; an empty store is filled from the source. When the source is
// unreachable the dataset is empty rather than an error, so the run fails
// per budget with ErrNoCandidates.
func (s *DrawService) Load(ctx context.Context) (*domain.Dataset, error) {
	draws, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}

	if len(draws) == 0 {
		draws, err = s.fetch(ctx)
		switch {
		case errors.Is(err, domain.ErrDataSourceUnavailable):
			s.logger.WarnContext(ctx, "draw_service: source unavailable, continuing with empty history",
				slog.String("error", err.Error()),
			)
			draws = nil
		case err != nil:
			return nil, fmt.Errorf("draw_service: load: %w", err)
		default:
			s.persist(ctx, draws)
		}
	}

	return &domain.Dataset{
		Draws:     draws,
		Frequency: s.frequency(ctx, draws),
		Costs:     s.costs,
	}, nil
}

// Refresh re-fetches the full history, upserts it and drops the cached
// frequency table. It returns the number of draws fetched.
func (s *DrawService) Refresh(ctx context.Context) (int, error) {
	draws, err := s.fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("draw_service: refresh: %w", err)
	}
	s.persist(ctx, draws)

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "draw_service: cache invalidate failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil && len(draws) > 0 {
		payload, _ := json.Marshal(domain.DrawsEvent{
			Type:   domain.EventDrawsRefreshed,
			Count:  len(draws),
			Latest: draws[len(draws)-1].Contest,
		})
		if err := s.bus.Publish(ctx, domain.ChannelDraws, payload); err != nil {
			s.logger.WarnContext(ctx, "draw_service: publish failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "draw_service: refreshed draws", slog.Int("count", len(draws)))
	return len(draws), nil
}

// Summary reports the stored draw count and the latest contest.
func (s *DrawService) Summary(ctx context.Context) (DrawSummary, error) {
	if s.draws == nil {
		ds, err := s.Load(ctx)
		if err != nil {
			return DrawSummary{}, err
		}
		sum := DrawSummary{Count: len(ds.Draws)}
		if n := len(ds.Draws); n > 0 {
			latest := ds.Draws[n-1]
			sum.Latest = &latest
		}
		return sum, nil
	}

	count, err := s.draws.Count(ctx)
	if err != nil {
		return DrawSummary{}, fmt.Errorf("draw_service: count: %w", err)
	}
	sum := DrawSummary{Count: int(count)}
	latest, err := s.draws.Latest(ctx)
	switch {
	case err == nil:
		sum.Latest = &latest
	case !errors.Is(err, domain.ErrNotFound):
		return DrawSummary{}, fmt.Errorf("draw_service: latest: %w", err)
	}
	return sum, nil
}

// Frequency returns the cached frequency table, loading the dataset on a
// miss. The second result is the number of draws it was derived from.
func (s *DrawService) Frequency(ctx context.Context) (domain.FrequencyTable, int, error) {
	if s.cache != nil {
		if freq, st, err := s.cache.Get(ctx); err == nil {
			return freq, st.Draws, nil
		}
	}
	ds, err := s.Load(ctx)
	if err != nil {
		return nil, 0, err
	}
	return ds.Frequency, len(ds.Draws), nil
}

func (s *DrawService) stored(ctx context.Context) ([]domain.Draw, error) {
	if s.draws == nil {
		return nil, nil
	}
	draws, err := s.draws.List(ctx)
	if err != nil {
		// the source can still serve the run
		s.logger.WarnContext(ctx, "draw_service: store read failed",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return draws, nil
}

func (s *DrawService) fetch(ctx context.Context) ([]domain.Draw, error) {
	draws, err := s.source.FetchAll(ctx)
	s.metrics.ObserveFetch(len(draws), err)
	if err != nil {
		return nil, err
	}
	return draws, nil
}

// persist writes draws to the store and archive. Both are best effort.
func (s *DrawService) persist(ctx context.Context, draws []domain.Draw) {
	if len(draws) == 0 {
		return
	}
	if s.draws != nil {
		if err := s.draws.UpsertBatch(ctx, draws); err != nil {
			s.logger.WarnContext(ctx, "draw_service: upsert failed",
				slog.Int("count", len(draws)),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.archiver != nil {
		if path, err := s.archiver.ArchiveDraws(ctx, draws); err != nil {
			s.logger.WarnContext(ctx, "draw_service: archive failed",
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.DebugContext(ctx, "draw_service: archived draws", slog.String("path", path))
		}
	}
}

// frequency returns the table for draws, reusing the cache when it was
// built from the same number of draws ending at the same contest.
func (s *DrawService) frequency(ctx context.Context, draws []domain.Draw) domain.FrequencyTable {
	stamp := domain.StampOf(draws)
	if s.cache != nil {
		if freq, st, err := s.cache.Get(ctx); err == nil && st == stamp {
			return freq
		}
	}

	freq := scoring.Frequencies(draws)
	if s.cache != nil && len(draws) > 0 {
		if err := s.cache.Set(ctx, freq, stamp); err != nil {
			s.logger.WarnContext(ctx, "draw_service: cache set failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return freq
}
