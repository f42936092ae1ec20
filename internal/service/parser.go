package service

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"rirranges/internal/model"
)

type SkipReason string

const (
	SkipComment         SkipReason = "comment"
	SkipShortLine       SkipReason = "short_line"
	SkipUnsupportedType SkipReason = "unsupported_type"
	SkipReservedCountry SkipReason = "reserved_country"
	SkipInvalidCountry  SkipReason = "invalid_country"
	SkipInvalidSize     SkipReason = "invalid_size"
	SkipInvalidAddress  SkipReason = "invalid_address"
	SkipOverflow        SkipReason = "overflow"
	SkipUnknown         SkipReason = "unknown"
)

// SkipError reports a line that does not yield an allocation. It is routine
// and never aborts a run. Line is the raw input line.
type SkipError struct {
	Reason SkipReason
	Line   string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skipping record (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("skipping record (%s)", e.Reason)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

func skip(reason SkipReason, line string, err error) *SkipError {
	return &SkipError{Reason: reason, Line: line, Err: err}
}

const minFields = 7

// ParseLine parses one delegated-stats line. Every non-nil error is a
// *SkipError.
func ParseLine(line string) (model.AllocationRecord, error) {
	var rec model.AllocationRecord

	if len(line) == 0 || strings.HasPrefix(line, "#") {
		return rec, skip(SkipComment, line, nil)
	}

	parts := strings.Split(line, "|")
	if len(parts) < minFields {
		return rec, skip(SkipShortLine, line, nil)
	}

	switch parts[2] {
	case "ipv4":
		rec.Family = model.IPv4
	case "ipv6":
		rec.Family = model.IPv6
	default:
		return rec, skip(SkipUnsupportedType, line, nil)
	}

	// "*" marks summary and reserved buckets, "ZZ" unknown.
	country := strings.ToUpper(parts[1])
	switch country {
	case "", "*", "ZZ":
		return rec, skip(SkipReservedCountry, line, nil)
	}
	if !isCountryCode(country) {
		return rec, skip(SkipInvalidCountry, line, fmt.Errorf("%q is not a two-letter country code", parts[1]))
	}

	rec.Line = line
	rec.Registry = parts[0]
	rec.CountryCode = country
	rec.Start = parts[3]
	rec.Date = parts[5]
	rec.Status = parts[6]

	addr, err := netip.ParseAddr(rec.Start)
	if err != nil {
		return rec, skip(SkipInvalidAddress, line, err)
	}
	if addr.Zone() != "" {
		return rec, skip(SkipInvalidAddress, line, fmt.Errorf("%s carries a zone", rec.Start))
	}
	if (rec.Family == model.IPv4) != addr.Is4() {
		return rec, skip(SkipInvalidAddress, line, fmt.Errorf("%s is not an %s address", rec.Start, rec.Family))
	}
	rec.StartAddr = addr

	switch rec.Family {
	case model.IPv4:
		count, err := strconv.ParseUint(parts[4], 10, 64)
		if err != nil {
			return rec, skip(SkipInvalidSize, line, err)
		}
		rec.Size = count
	case model.IPv6:
		prefixLen, err := strconv.Atoi(parts[4])
		if err != nil {
			return rec, skip(SkipInvalidSize, line, err)
		}
		if prefixLen < 0 || prefixLen > 128 {
			return rec, skip(SkipInvalidSize, line, fmt.Errorf("prefix length %d out of range", prefixLen))
		}
		rec.Size = uint64(prefixLen)
	}

	return rec, nil
}

func isCountryCode(s string) bool {
	return len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}
