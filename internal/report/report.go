// Package report summarizes a usage record: categories, a productivity score
// and the most visited sites.
package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/goodtune/tabtime/internal/domain"
	"github.com/goodtune/tabtime/internal/storage"
)

// DefaultTopSites is how many sites a report lists by default.
const DefaultTopSites = 10

// Options tune report generation.
type Options struct {
	TopSites          int
	ProductiveDomains []string
}

// CategoryTotal is the time spent in one category.
type CategoryTotal struct {
	Category string `json:"category"`
	Seconds  int64  `json:"seconds"`
}

// Site is one entry of the top sites list.
type Site struct {
	Domain    string `json:"domain"`
	Seconds   int64  `json:"seconds"`
	Category  string `json:"category"`
	Formatted string `json:"formatted"`
}

// Report is a summary of a usage record.
type Report struct {
	TotalSeconds int64           `json:"total_seconds"`
	Score        int             `json:"productivity_score"`
	Categories   []CategoryTotal `json:"categories"`
	TopSites     []Site          `json:"top_sites"`
}

// Build summarizes usage.
func Build(usage storage.Usage, opts Options) Report {
	if opts.TopSites <= 0 {
		opts.TopSites = DefaultTopSites
	}
	if opts.ProductiveDomains == nil {
		opts.ProductiveDomains = DefaultProductiveDomains
	}

	r := Report{
		TotalSeconds: usage.Total(),
		Score:        Score(usage, opts.ProductiveDomains),
		Categories:   CategoryTotals(usage),
		TopSites:     []Site{},
	}

	for i, entry := range usage.Sorted() {
		if i == opts.TopSites {
			break
		}
		r.TopSites = append(r.TopSites, Site{
			Domain:    entry.Domain,
			Seconds:   entry.Seconds,
			Category:  Categorize(entry.Domain),
			Formatted: FormatMinSec(entry.Seconds),
		})
	}

	return r
}

// Score returns the share of time spent on productive sites as a percentage
// between 0 and 100. A domain is productive when it matches productiveDomains
// or falls in the Coding or Learning category.
func Score(usage storage.Usage, productiveDomains []string) int {
	total := usage.Total()
	if total <= 0 {
		return 0
	}

	var productive int64
	for d, seconds := range usage {
		if isProductive(d, productiveDomains) {
			productive += seconds
		}
	}

	score := int(math.Round(float64(productive) / float64(total) * 100))
	if score > 100 {
		return 100
	}
	return score
}

func isProductive(d string, productiveDomains []string) bool {
	for _, target := range productiveDomains {
		if domain.Matches(d, target) {
			return true
		}
	}
	switch Categorize(d) {
	case Coding, Learning:
		return true
	}
	return false
}

// CategoryTotals sums seconds per category, largest first.
func CategoryTotals(usage storage.Usage) []CategoryTotal {
	sums := make(map[string]int64)
	for d, seconds := range usage {
		sums[Categorize(d)] += seconds
	}

	totals := make([]CategoryTotal, 0, len(sums))
	for category, seconds := range sums {
		totals = append(totals, CategoryTotal{Category: category, Seconds: seconds})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Seconds != totals[j].Seconds {
			return totals[i].Seconds > totals[j].Seconds
		}
		return totals[i].Category < totals[j].Category
	})
	return totals
}

// FormatMinSec renders seconds as "Xm YYs". Negative values render as zero.
func FormatMinSec(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
}
