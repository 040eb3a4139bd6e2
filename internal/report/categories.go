package report

import (
	"strings"

	"github.com/goodtune/tabtime/internal/domain"
)

// Category names.
const (
	Coding        = "Coding"
	Learning      = "Learning"
	Social        = "Social"
	Entertainment = "Entertainment"
	Communication = "Communication"
	Shopping      = "Shopping"
	News          = "News"
	Productivity  = "Productivity"
	Other         = "Other"
)

type categoryDomains struct {
	name    string
	domains []string
}

// categoryTable is matched in order; the first category listing the domain or
// one of its parents wins.
var categoryTable = []categoryDomains{
	{Coding, []string{
		"github.com", "gitlab.com", "bitbucket.org", "stackblitz.com",
		"vscode.dev", "codepen.io", "stackshare.io",
	}},
	{Learning, []string{
		"coursera.org", "edx.org", "udemy.com", "khanacademy.org",
		"pluralsight.com", "nptel.ac.in", "w3schools.com", "developer.mozilla.org",
	}},
	{Social, []string{
		"facebook.com", "instagram.com", "twitter.com", "x.com",
		"reddit.com", "linkedin.com", "tiktok.com",
	}},
	{Entertainment, []string{
		"youtube.com", "netflix.com", "spotify.com", "hulu.com",
		"primevideo.com", "twitch.tv",
	}},
	{Communication, []string{
		"slack.com", "teams.microsoft.com", "discord.com", "mail.google.com",
		"outlook.live.com", "zoom.us", "meet.google.com",
	}},
	{Shopping, []string{"amazon.com", "ebay.com", "etsy.com", "flipkart.com"}},
	{News, []string{"nytimes.com", "bbc.com", "cnn.com", "theguardian.com"}},
}

type categoryKeywords struct {
	name     string
	keywords []string
}

// keywordTable applies when no category lists the domain.
var keywordTable = []categoryKeywords{
	{Productivity, []string{"docs", "notion", "confluence"}},
	{News, []string{"blog", "news"}},
	{Entertainment, []string{"video", "stream"}},
}

// DefaultProductiveDomains count as productive regardless of category.
var DefaultProductiveDomains = []string{
	"github.com",
	"stackoverflow.com",
	"colab.research.google.com",
	"coursera.org",
	"edx.org",
	"udemy.com",
	"nptel.ac.in",
}

// Categorize returns the category of a stored domain.
func Categorize(d string) string {
	normalized := domain.Normalize(d)
	if normalized == "" {
		return Other
	}

	for _, c := range categoryTable {
		for _, target := range c.domains {
			if domain.Matches(normalized, target) {
				return c.name
			}
		}
	}

	for _, c := range keywordTable {
		for _, keyword := range c.keywords {
			if strings.Contains(normalized, keyword) {
				return c.name
			}
		}
	}

	return Other
}
