package report

import (
	"testing"

	"github.com/goodtune/tabtime/internal/storage"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"github.com", Coding},
		{"gist.github.com", Coding},
		{"WWW.GitLab.com", Coding},
		{"developer.mozilla.org", Learning},
		{"mozilla.org", Other},
		{"x.com", Social},
		{"box.com", Other},
		{"music.youtube.com", Entertainment},
		{"mail.google.com", Communication},
		{"google.com", Other},
		{"amazon.com", Shopping},
		{"bbc.com", News},
		{"docs.python.org", Productivity},
		{"notion.so", Productivity},
		{"engineering-blog.example.com", News},
		{"videostream.example", Entertainment},
		{"", Other},
		{"   ", Other},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			if got := Categorize(tt.domain); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.domain, got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		usage storage.Usage
		want  int
	}{
		{"empty", storage.Usage{}, 0},
		{"zero total", storage.Usage{"github.com": 0}, 0},
		{"all productive", storage.Usage{"github.com": 30, "coursera.org": 30}, 100},
		{"none productive", storage.Usage{"youtube.com": 60}, 0},
		{"explicit list", storage.Usage{"stackoverflow.com": 1, "reddit.com": 2}, 33},
		{"category counts", storage.Usage{"w3schools.com": 1, "reddit.com": 1}, 50},
		{"rounds half up", storage.Usage{"github.com": 1, "reddit.com": 7}, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.usage, DefaultProductiveDomains); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatMinSec(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0m 00s"},
		{5, "0m 05s"},
		{60, "1m 00s"},
		{125, "2m 05s"},
		{3601, "60m 01s"},
		{-4, "0m 00s"},
	}

	for _, tt := range tests {
		if got := FormatMinSec(tt.seconds); got != tt.want {
			t.Errorf("FormatMinSec(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestBuild(t *testing.T) {
	usage := storage.Usage{
		"github.com":  600,
		"youtube.com": 300,
		"reddit.com":  300,
		"bbc.com":     0,
	}

	r := Build(usage, Options{TopSites: 2})

	if r.TotalSeconds != 1200 {
		t.Errorf("Expected total 1200, got %d", r.TotalSeconds)
	}
	if r.Score != 50 {
		t.Errorf("Expected score 50, got %d", r.Score)
	}

	if len(r.TopSites) != 2 {
		t.Fatalf("Expected 2 top sites, got %d", len(r.TopSites))
	}
	if r.TopSites[0].Domain != "github.com" || r.TopSites[0].Formatted != "10m 00s" {
		t.Errorf("Unexpected first site %+v", r.TopSites[0])
	}
	if r.TopSites[1].Domain != "reddit.com" || r.TopSites[1].Category != Social {
		t.Errorf("Unexpected second site %+v", r.TopSites[1])
	}

	want := []CategoryTotal{
		{Coding, 600},
		{Entertainment, 300},
		{Social, 300},
		{News, 0},
	}
	if len(r.Categories) != len(want) {
		t.Fatalf("Expected categories %v, got %v", want, r.Categories)
	}
	for i := range want {
		if r.Categories[i] != want[i] {
			t.Errorf("Category %d: expected %v, got %v", i, want[i], r.Categories[i])
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	r := Build(storage.Usage{}, Options{})

	if r.Score != 0 || r.TotalSeconds != 0 {
		t.Errorf("Expected zero report, got %+v", r)
	}
	if r.TopSites == nil || len(r.TopSites) != 0 {
		t.Errorf("Expected empty top sites list, got %v", r.TopSites)
	}
}
