package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"rirranges/internal/model"
)

func TestFileSink_Publish(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, zap.NewNop())

	err := sink.Publish(context.Background(), "DE", model.IPv6, []string{"2001:db8::/32", "2001:db9::/32"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ipv6", "DE.json"))
	if err != nil {
		t.Fatal(err)
	}

	expected := "[\n  \"2001:db8::/32\",\n  \"2001:db9::/32\"\n]"
	if string(data) != expected {
		t.Errorf("expected %q, got %q", expected, string(data))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "ipv6"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only DE.json, got %d entries", len(entries))
	}
}

func TestFileSink_PublishOverwrites(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, zap.NewNop())
	ctx := context.Background()

	if err := sink.Publish(ctx, "JP", model.IPv4, []string{"1.0.0.0/22", "1.0.4.0/23"}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Publish(ctx, "JP", model.IPv4, []string{"1.0.0.0/22"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ipv4", "JP.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[\n  \"1.0.0.0/22\"\n]" {
		t.Errorf("unexpected content %q", string(data))
	}
}

func TestFileSink_PublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := NewFileSink(t.TempDir(), zap.NewNop())
	if err := sink.Publish(ctx, "JP", model.IPv4, []string{"1.0.0.0/22"}); err == nil {
		t.Error("expected error, got nil")
	}
}
