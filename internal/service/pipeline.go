package service

import (
	"errors"

	"go.uber.org/zap"

	"rirranges/internal/model"
)

type BuildStats struct {
	Lines       int
	IPv4Records int
	IPv6Records int
	Blocks      int
	Skipped     map[SkipReason]int
}

func (s BuildStats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// BuildCountryTable runs every line through the parser and range converter
// and folds the result into a country table. Lines that cannot be used are
// counted and dropped.
func BuildCountryTable(lines []string, logger *zap.Logger) (model.CountryTable, BuildStats) {
	stats := BuildStats{Skipped: make(map[SkipReason]int)}
	agg := NewAggregator()

	for _, line := range lines {
		stats.Lines++

		rec, err := ParseLine(line)
		if err != nil {
			stats.skip(err, line, logger)
			continue
		}

		blocks, err := RangeToCIDRs(rec)
		if err != nil {
			stats.skip(err, line, logger)
			continue
		}
		if len(blocks) == 0 {
			logger.Debug("allocation covers no addresses", zap.String("line", line))
			continue
		}

		if rec.Family == model.IPv4 {
			stats.IPv4Records++
		} else {
			stats.IPv6Records++
		}
		for _, block := range blocks {
			agg.Add(rec.CountryCode, rec.Family, block)
		}
		stats.Blocks += len(blocks)
	}

	return agg.Table(), stats
}

func (s *BuildStats) skip(err error, line string, logger *zap.Logger) {
	var skipErr *SkipError
	reason := SkipUnknown
	if errors.As(err, &skipErr) {
		reason = skipErr.Reason
	}
	s.Skipped[reason]++

	// Comments and headers make up most skips and are not worth logging.
	switch reason {
	case SkipComment, SkipShortLine, SkipUnsupportedType:
		return
	}
	logger.Debug("skipping record",
		zap.String("reason", string(reason)),
		zap.String("line", line),
		zap.Error(err))
}
