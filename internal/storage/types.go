package storage

import "sort"

// Usage maps a domain to the number of seconds spent on it.
type Usage map[string]int64

// DomainUsage is a single domain's entry in a Usage record.
type DomainUsage struct {
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
}

// Clone returns a copy of u that never shares the underlying map.
func (u Usage) Clone() Usage {
	out := make(Usage, len(u))
	for domain, seconds := range u {
		out[domain] = seconds
	}
	return out
}

// Add adds seconds to domain, creating the entry at zero first.
func (u Usage) Add(domain string, seconds int64) {
	u[domain] += seconds
}

// Total returns the sum of all seconds in u.
func (u Usage) Total() int64 {
	var total int64
	for _, seconds := range u {
		total += seconds
	}
	return total
}

// Sorted returns the entries ordered by seconds descending, then domain.
func (u Usage) Sorted() []DomainUsage {
	entries := make([]DomainUsage, 0, len(u))
	for domain, seconds := range u {
		entries = append(entries, DomainUsage{Domain: domain, Seconds: seconds})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seconds != entries[j].Seconds {
			return entries[i].Seconds > entries[j].Seconds
		}
		return entries[i].Domain < entries[j].Domain
	})
	return entries
}
