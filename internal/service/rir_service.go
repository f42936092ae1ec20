package service

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rirranges/internal/config"
)

type RIRService struct {
	logger     *zap.Logger
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

func NewRIRService(logger *zap.Logger, timeout time.Duration) *RIRService {
	return &RIRService{
		logger:     logger,
		maxRetries: 3,
		retryDelay: 5 * time.Second,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:       100,
				IdleConnTimeout:    90 * time.Second,
				DisableCompression: true,
				MaxConnsPerHost:    100,
				DisableKeepAlives:  false,
				ForceAttemptHTTP2:  true,
			},
		},
	}
}

// WithRetryDelay sets the base delay between fetch attempts.
func (s *RIRService) WithRetryDelay(d time.Duration) *RIRService {
	s.retryDelay = d
	return s
}

// FetchAll downloads every registry in parallel and returns their lines
// concatenated in the order of rirs. Any failed registry fails the whole
// fetch.
func (s *RIRService) FetchAll(ctx context.Context, rirs []config.RIR) ([]string, error) {
	results := make([][]string, len(rirs))

	g, ctx := errgroup.WithContext(ctx)
	for i, rir := range rirs {
		i, rir := i, rir
		g.Go(func() error {
			lines, err := s.FetchLines(ctx, rir.URL)
			if err != nil {
				return fmt.Errorf("%s: %w", rir.Name, err)
			}
			s.logger.Info("Fetched RIR data",
				zap.String("rir", rir.Name),
				zap.Int("lines", len(lines)))
			results[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, lines := range results {
		total += len(lines)
	}
	all := make([]string, 0, total)
	for _, lines := range results {
		all = append(all, lines...)
	}
	return all, nil
}

func (s *RIRService) FetchLines(ctx context.Context, url string) ([]string, error) {
	var lastErr error

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * s.retryDelay
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		lines, err := s.fetchWithTimeout(ctx, url)
		if err == nil {
			return lines, nil
		}

		lastErr = err
		s.logger.Warn("Failed to fetch RIR data, retrying...",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *RIRService) fetchWithTimeout(ctx context.Context, url string) ([]string, error) {
	startTime := time.Now()

	s.logger.Info("Starting RIR data fetch", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", "rirranges/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching RIR data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading RIR data: %w", err)
	}

	s.logger.Info("Successfully downloaded RIR data",
		zap.String("url", url),
		zap.Int("total_lines", len(lines)),
		zap.Duration("download_time", time.Since(startTime)))

	return lines, nil
}
