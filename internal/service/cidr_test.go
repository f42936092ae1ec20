package service

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"net/netip"
	"testing"

	"rirranges/internal/model"
)

func ipv4Record(t *testing.T, start string, count uint64) model.AllocationRecord {
	t.Helper()
	return model.AllocationRecord{
		Family:    model.IPv4,
		Start:     start,
		StartAddr: netip.MustParseAddr(start),
		Size:      count,
	}
}

func renderBlocks(blocks []model.CIDRBlock) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.String()
	}
	return out
}

func TestRangeToCIDRs(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		count    uint64
		expected []string
	}{
		{name: "power of two", start: "1.0.0.0", count: 1024, expected: []string{"1.0.0.0/22"}},
		{name: "sum of two blocks", start: "1.0.0.0", count: 1536, expected: []string{"1.0.0.0/22", "1.0.4.0/23"}},
		{name: "single host", start: "192.0.2.7", count: 1, expected: []string{"192.0.2.7/32"}},
		{name: "unaligned start", start: "10.0.0.128", count: 256, expected: []string{"10.0.0.128/25", "10.0.1.0/25"}},
		{name: "odd count", start: "10.0.0.0", count: 7, expected: []string{"10.0.0.0/30", "10.0.0.4/31", "10.0.0.6/32"}},
		{name: "whole space", start: "0.0.0.0", count: 1 << 32, expected: []string{"0.0.0.0/0"}},
		{name: "last address", start: "255.255.255.255", count: 1, expected: []string{"255.255.255.255/32"}},
		{name: "zero count", start: "1.0.0.0", count: 0, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := RangeToCIDRs(ipv4Record(t, tt.start, tt.count))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := renderBlocks(blocks)
			if !equalStrings(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRangeToCIDRs_IPv6(t *testing.T) {
	rec := model.AllocationRecord{
		Family:    model.IPv6,
		Start:     "2001:0db8::",
		StartAddr: netip.MustParseAddr("2001:0db8::"),
		Size:      32,
	}

	blocks, err := RangeToCIDRs(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := renderBlocks(blocks)
	if !equalStrings(got, []string{"2001:0db8::/32"}) {
		t.Errorf("expected [2001:0db8::/32], got %v", got)
	}
	if blocks[0].Prefix() != netip.MustParsePrefix("2001:db8::/32") {
		t.Errorf("unexpected prefix %s", blocks[0].Prefix())
	}
}

func TestRangeToCIDRs_Overflow(t *testing.T) {
	tests := []struct {
		start string
		count uint64
	}{
		{start: "255.255.255.0", count: 257},
		{start: "0.0.0.1", count: 1 << 32},
		{start: "1.0.0.0", count: 1 << 40},
	}

	for _, tt := range tests {
		_, err := RangeToCIDRs(ipv4Record(t, tt.start, tt.count))
		var skipErr *SkipError
		if !errors.As(err, &skipErr) || skipErr.Reason != SkipOverflow {
			t.Errorf("%s+%d: expected overflow skip, got %v", tt.start, tt.count, err)
		}
	}
}

func TestRangeToCIDRs_PowersOfTwo(t *testing.T) {
	for k := 0; k <= 32; k++ {
		blocks, err := RangeToCIDRs(ipv4Record(t, "0.0.0.0", uint64(1)<<k))
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if len(blocks) != 1 {
			t.Fatalf("k=%d: expected one block, got %v", k, renderBlocks(blocks))
		}
		if blocks[0].Bits != 32-k {
			t.Errorf("k=%d: expected /%d, got /%d", k, 32-k, blocks[0].Bits)
		}
	}
}

// Every decomposition must cover the range exactly: blocks are aligned,
// contiguous, start at the record start and add up to the count.
func TestRangeToCIDRs_ExactCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		start := uint64(rng.Uint32())
		count := uint64(rng.Int63n(1<<20)) + 1
		if start+count > ipv4Space {
			count = ipv4Space - start
		}

		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(start))
		addr := netip.AddrFrom4(b)

		blocks, err := RangeToCIDRs(ipv4Record(t, addr.String(), count))
		if err != nil {
			t.Fatalf("%s+%d: unexpected error: %v", addr, count, err)
		}

		next := start
		for _, block := range blocks {
			a := block.Addr.As4()
			blockStart := uint64(binary.BigEndian.Uint32(a[:]))
			size := uint64(1) << (32 - block.Bits)

			if blockStart != next {
				t.Fatalf("%s+%d: gap or overlap at %s", addr, count, block)
			}
			if blockStart%size != 0 {
				t.Fatalf("%s+%d: misaligned block %s", addr, count, block)
			}
			next += size
		}
		if next != start+count {
			t.Fatalf("%s+%d: blocks cover %d addresses", addr, count, next-start)
		}
	}
}

func TestRangeToCIDRs_SkipCarriesLine(t *testing.T) {
	line := "arin|US|ipv4|255.255.255.0|512|19830101|allocated"
	rec, err := ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = RangeToCIDRs(rec)
	var skipErr *SkipError
	if !errors.As(err, &skipErr) {
		t.Fatalf("expected skip, got %v", err)
	}
	if skipErr.Reason != SkipOverflow {
		t.Errorf("expected overflow skip, got %s", skipErr.Reason)
	}
	if skipErr.Line != line {
		t.Errorf("expected line %q, got %q", line, skipErr.Line)
	}
}

func TestRangeToCIDRs_UnknownFamily(t *testing.T) {
	rec := model.AllocationRecord{Family: "ipx", Line: "apnic|JP|ipx|1.0.0.0|256|20110811|allocated"}

	_, err := RangeToCIDRs(rec)
	var skipErr *SkipError
	if !errors.As(err, &skipErr) {
		t.Fatalf("expected skip, got %v", err)
	}
	if skipErr.Reason != SkipUnsupportedType || skipErr.Line != rec.Line {
		t.Errorf("unexpected skip %+v", skipErr)
	}
}
