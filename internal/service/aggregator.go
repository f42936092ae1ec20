package service

import (
	"sort"

	"rirranges/internal/model"
)

// Aggregator collects CIDR blocks per country and family. Buckets are only
// sorted when Table is called, after all records have been added.
type Aggregator struct {
	buckets map[string]map[model.Family][]string
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		buckets: make(map[string]map[model.Family][]string),
	}
}

func (a *Aggregator) Add(country string, family model.Family, block model.CIDRBlock) {
	families, ok := a.buckets[country]
	if !ok {
		families = make(map[model.Family][]string, 2)
		a.buckets[country] = families
	}
	families[family] = append(families[family], block.String())
}

// Table returns the finished table. Each list is sorted by CIDR text and
// empty buckets are left out. The result does not share memory with the
// aggregator.
func (a *Aggregator) Table() model.CountryTable {
	table := make(model.CountryTable, len(a.buckets))
	for country, families := range a.buckets {
		for family, cidrs := range families {
			if len(cidrs) == 0 {
				continue
			}
			sorted := make([]string, len(cidrs))
			copy(sorted, cidrs)
			sort.Strings(sorted)

			if table[country] == nil {
				table[country] = make(map[model.Family][]string, 2)
			}
			table[country][family] = sorted
		}
	}
	return table
}
