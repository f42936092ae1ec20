package mocks

import (
	"context"
	"net/netip"
	"sync"

	"rirranges/internal/config"
	"rirranges/internal/model"
)

type MockSource struct {
	FetchAllFunc func(ctx context.Context, rirs []config.RIR) ([]string, error)
}

func (m *MockSource) FetchAll(ctx context.Context, rirs []config.RIR) ([]string, error) {
	return m.FetchAllFunc(ctx, rirs)
}

// Published is one call recorded by MockSink.
type Published struct {
	Country string
	Family  model.Family
	CIDRs   []string
}

type MockSink struct {
	PublishFunc func(ctx context.Context, country string, family model.Family, cidrs []string) error

	mu    sync.Mutex
	Calls []Published
}

func (m *MockSink) Publish(ctx context.Context, country string, family model.Family, cidrs []string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, Published{Country: country, Family: family, CIDRs: cidrs})
	m.mu.Unlock()

	if m.PublishFunc == nil {
		return nil
	}
	return m.PublishFunc(ctx, country, family, cidrs)
}

type MockRepository struct {
	FindCountryForIPFunc func(ctx context.Context, ip netip.Addr) (string, error)
}

func (m *MockRepository) FindCountryForIP(ctx context.Context, ip netip.Addr) (string, error) {
	return m.FindCountryForIPFunc(ctx, ip)
}

type MockCache struct {
	SetCountryFunc func(ctx context.Context, ip, countryCode string) error
	GetCountryFunc func(ctx context.Context, ip string) (string, error)
}

func (m *MockCache) SetCountry(ctx context.Context, ip, countryCode string) error {
	return m.SetCountryFunc(ctx, ip, countryCode)
}

func (m *MockCache) GetCountry(ctx context.Context, ip string) (string, error) {
	return m.GetCountryFunc(ctx, ip)
}
