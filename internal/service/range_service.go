package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/gaissmai/bart"
	"go.uber.org/zap"

	"rirranges/internal/config"
	"rirranges/internal/model"
)

const unknownCountry = "ZZ"

// Sink receives one finished (country, family) table.
type Sink interface {
	Publish(ctx context.Context, country string, family model.Family, cidrs []string) error
}

// Source yields the raw delegated-stats lines of all registries.
type Source interface {
	FetchAll(ctx context.Context, rirs []config.RIR) ([]string, error)
}

type Repository interface {
	FindCountryForIP(ctx context.Context, ip netip.Addr) (string, error)
}

type Cache interface {
	SetCountry(ctx context.Context, ip, countryCode string) error
	GetCountry(ctx context.Context, ip string) (string, error)
}

type RangeService struct {
	source Source
	sinks  []Sink
	repo   Repository
	cache  Cache
	config *config.Config
	logger *zap.Logger

	updateMux sync.Mutex

	mu     sync.RWMutex
	table  model.CountryTable
	lookup *bart.Table[string]
}

// NewRangeService wires the service. repo and cache are optional lookup
// fallbacks and may be nil.
func NewRangeService(
	source Source,
	sinks []Sink,
	repo Repository,
	cache Cache,
	config *config.Config,
	logger *zap.Logger,
) *RangeService {
	return &RangeService{
		source: source,
		sinks:  sinks,
		repo:   repo,
		cache:  cache,
		config: config,
		logger: logger,
		table:  model.CountryTable{},
		lookup: new(bart.Table[string]),
	}
}

// Start performs the initial update and schedules periodic ones until ctx
// is cancelled.
func (s *RangeService) Start(ctx context.Context) error {
	if err := s.UpdateRanges(ctx); err != nil {
		return fmt.Errorf("initial ranges update failed: %w", err)
	}

	interval := s.config.UpdateInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				if err := s.UpdateRanges(ctx); err != nil {
					s.logger.Error("scheduled ranges update failed", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// UpdateRanges fetches all registries, builds the country table and hands
// every non-empty list to the sinks. Nothing is published unless fetching and
// aggregation succeeded.
func (s *RangeService) UpdateRanges(ctx context.Context) error {
	s.updateMux.Lock()
	defer s.updateMux.Unlock()

	s.logger.Info("Starting ranges update")
	startTime := time.Now()

	lines, err := s.source.FetchAll(ctx, s.config.RIRs)
	if err != nil {
		return fmt.Errorf("fetching RIR data: %w", err)
	}

	table, stats := BuildCountryTable(lines, s.logger)

	fields := []zap.Field{
		zap.Int("total_lines", stats.Lines),
		zap.Int("ipv4_records", stats.IPv4Records),
		zap.Int("ipv6_records", stats.IPv6Records),
		zap.Int("cidr_blocks", stats.Blocks),
		zap.Int("countries", len(table)),
		zap.Int("skipped_lines", stats.SkippedTotal()),
	}
	for reason, n := range stats.Skipped {
		fields = append(fields, zap.Int("skipped_"+string(reason), n))
	}
	s.logger.Info("Built country table", fields...)

	if len(table) == 0 {
		return errors.New("no country ranges built from RIR data")
	}

	if err := s.publish(ctx, table); err != nil {
		return err
	}

	s.swap(table)

	s.logger.Info("Successfully updated ranges",
		zap.Int("countries", len(table)),
		zap.Duration("duration", time.Since(startTime)))

	return nil
}

func (s *RangeService) publish(ctx context.Context, table model.CountryTable) error {
	var errs []error
	for _, sink := range s.sinks {
		for _, country := range table.Countries() {
			for _, family := range model.Families {
				cidrs := table.Ranges(country, family)
				if len(cidrs) == 0 {
					continue
				}
				if err := sink.Publish(ctx, country, family, cidrs); err != nil {
					s.logger.Error("Failed to publish ranges",
						zap.String("country", country),
						zap.String("family", string(family)),
						zap.Error(err))
					errs = append(errs, fmt.Errorf("%s %s: %w", family, country, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (s *RangeService) swap(table model.CountryTable) {
	lookup := new(bart.Table[string])
	for _, country := range table.Countries() {
		for _, family := range model.Families {
			for _, cidr := range table.Ranges(country, family) {
				pfx, err := netip.ParsePrefix(cidr)
				if err != nil {
					s.logger.Warn("unindexable prefix", zap.String("cidr", cidr), zap.Error(err))
					continue
				}
				lookup.Insert(pfx.Masked(), country)
			}
		}
	}

	s.mu.Lock()
	s.table = table
	s.lookup = lookup
	s.mu.Unlock()
}

func (s *RangeService) LookupIP(ctx context.Context, ipStr string) (*model.IPResponse, error) {
	// Try direct IP cache first
	if s.cache != nil {
		if countryCode, err := s.cache.GetCountry(ctx, ipStr); err == nil && countryCode != "" {
			return &model.IPResponse{
				IP:          ipStr,
				CountryCode: countryCode,
			}, nil
		}
	}

	ip, err := netip.ParseAddr(ipStr)
	if err != nil {
		return nil, fmt.Errorf("invalid IP address: %s", ipStr)
	}
	ip = ip.Unmap()

	s.mu.RLock()
	countryCode, ok := s.lookup.Lookup(ip)
	s.mu.RUnlock()

	if !ok {
		countryCode = unknownCountry
		if s.repo != nil {
			countryCode, err = s.repo.FindCountryForIP(ctx, ip)
			if err != nil {
				return nil, err
			}
		}
	}

	// Don't cache unknown results
	if countryCode != unknownCountry && s.cache != nil {
		if err := s.cache.SetCountry(ctx, ipStr, countryCode); err != nil {
			s.logger.Warn("failed to cache IP lookup result",
				zap.String("ip", ipStr),
				zap.Error(err))
		}
	}

	return &model.IPResponse{
		IP:          ipStr,
		CountryCode: countryCode,
	}, nil
}

// CountryRanges returns the current sorted list for one country and family.
func (s *RangeService) CountryRanges(country string, family model.Family) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Ranges(country, family)
}

func (s *RangeService) Countries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Countries()
}
