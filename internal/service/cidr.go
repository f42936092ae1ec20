package service

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"go4.org/netipx"

	"rirranges/internal/model"
)

const ipv4Space = uint64(1) << 32

// RangeToCIDRs converts an allocation into the CIDR blocks that cover exactly
// its address space. IPv6 records already carry a prefix length; IPv4 host
// counts are decomposed into the largest aligned power-of-two blocks. Every
// non-nil error is a *SkipError carrying rec.Line.
func RangeToCIDRs(rec model.AllocationRecord) ([]model.CIDRBlock, error) {
	switch rec.Family {
	case model.IPv6:
		return []model.CIDRBlock{{
			Addr:    rec.StartAddr,
			Bits:    int(rec.Size),
			Literal: rec.Start,
		}}, nil
	case model.IPv4:
		return ipv4RangeToCIDRs(rec)
	}
	return nil, skip(SkipUnsupportedType, rec.Line, fmt.Errorf("unknown address family: %q", rec.Family))
}

func ipv4RangeToCIDRs(rec model.AllocationRecord) ([]model.CIDRBlock, error) {
	start, count := rec.StartAddr, rec.Size
	if count == 0 {
		return nil, nil
	}

	// netipx has no notion of a host count, so the last address is computed
	// here in 64 bits where start+count cannot wrap.
	b := start.As4()
	first := uint64(binary.BigEndian.Uint32(b[:]))
	if count > ipv4Space-first {
		return nil, skip(SkipOverflow, rec.Line, fmt.Errorf("%s + %d exceeds the IPv4 address space", start, count))
	}

	var last [4]byte
	binary.BigEndian.PutUint32(last[:], uint32(first+count-1))

	r := netipx.IPRangeFrom(start, netip.AddrFrom4(last))
	if !r.IsValid() {
		return nil, skip(SkipInvalidAddress, rec.Line, fmt.Errorf("invalid range %s", r))
	}

	prefixes := r.Prefixes()
	blocks := make([]model.CIDRBlock, len(prefixes))
	for i, pfx := range prefixes {
		blocks[i] = model.CIDRBlock{Addr: pfx.Addr(), Bits: pfx.Bits()}
	}
	return blocks, nil
}
