package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"rirranges/internal/model"
)

// FileSink writes each table to <dir>/{family}/{CC}.json.
type FileSink struct {
	dir    string
	logger *zap.Logger
}

func NewFileSink(dir string, logger *zap.Logger) *FileSink {
	return &FileSink{
		dir:    dir,
		logger: logger,
	}
}

func (s *FileSink) Publish(ctx context.Context, country string, family model.Family, cidrs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := model.EncodeRangeList(cidrs)
	if err != nil {
		return fmt.Errorf("encoding ranges: %w", err)
	}

	path := filepath.Join(s.dir, filepath.FromSlash(model.ObjectKey(family, country)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	// Write then rename so readers never see a half-written file.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+country+"-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	s.logger.Debug("wrote ranges file",
		zap.String("path", path),
		zap.Int("ranges", len(cidrs)))

	return nil
}
