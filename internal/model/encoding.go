package model

import (
	"encoding/json"
)

// EncodeRangeList renders a CIDR list as a JSON array indented by two spaces.
// A nil list encodes as [] rather than null.
func EncodeRangeList(cidrs []string) ([]byte, error) {
	if cidrs == nil {
		cidrs = []string{}
	}
	return json.MarshalIndent(cidrs, "", "  ")
}

// ObjectKey returns the logical path of a country table, e.g. "ipv4/JP.json".
func ObjectKey(family Family, country string) string {
	return string(family) + "/" + country + ".json"
}
