package model

import (
	"fmt"
	"net/netip"
	"sort"
	"strconv"
)

type Family string

const (
	IPv4 Family = "ipv4"
	IPv6 Family = "ipv6"
)

// Families lists the address families in publishing order.
var Families = []Family{IPv4, IPv6}

func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case IPv4, IPv6:
		return Family(s), nil
	}
	return "", fmt.Errorf("unknown address family: %q", s)
}

// Version returns 4 or 6.
func (f Family) Version() int {
	if f == IPv6 {
		return 6
	}
	return 4
}

// AllocationRecord is one ipv4/ipv6 line of a delegated-stats file.
// Size holds the host count for IPv4 and the prefix length for IPv6. Line is
// the raw input the record was parsed from.
type AllocationRecord struct {
	Registry    string
	CountryCode string
	Family      Family
	Start       string
	StartAddr   netip.Addr
	Size        uint64
	Date        string
	Status      string
	Line        string
}

// CIDRBlock is a network address and prefix length. Literal, when set, is the
// address text exactly as the registry wrote it and is used for rendering.
type CIDRBlock struct {
	Addr    netip.Addr
	Bits    int
	Literal string
}

func (b CIDRBlock) String() string {
	if b.Literal != "" {
		return b.Literal + "/" + strconv.Itoa(b.Bits)
	}
	return b.Addr.String() + "/" + strconv.Itoa(b.Bits)
}

// Prefix returns the block as a masked netip.Prefix.
func (b CIDRBlock) Prefix() netip.Prefix {
	return netip.PrefixFrom(b.Addr, b.Bits).Masked()
}

// CountryTable maps country code -> family -> sorted CIDR strings.
// Families without blocks are absent.
type CountryTable map[string]map[Family][]string

// Countries returns the country codes in ascending order.
func (t CountryTable) Countries() []string {
	countries := make([]string, 0, len(t))
	for cc := range t {
		countries = append(countries, cc)
	}
	sort.Strings(countries)
	return countries
}

func (t CountryTable) Ranges(country string, family Family) []string {
	return t[country][family]
}

// Blocks counts all CIDR strings in the table.
func (t CountryTable) Blocks() int {
	n := 0
	for _, families := range t {
		for _, cidrs := range families {
			n += len(cidrs)
		}
	}
	return n
}

type IPRange struct {
	ID          int64  `db:"id"`
	Network     string `db:"network"`
	CountryCode string `db:"country_code"`
	Version     int    `db:"ip_version"` // 4 or 6
}

type IPResponse struct {
	IP          string `json:"ip"`
	CountryCode string `json:"country_code"`
}

type Error struct {
	Message string `json:"message"`
}
