package domain

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "", ""},
		{"plain host", "https://github.com/x", "github.com"},
		{"www stripped", "https://www.youtube.com/watch?v=1", "youtube.com"},
		{"uppercase host", "https://WWW.Example.COM/path", "example.com"},
		{"port dropped", "http://localhost:8080/", "localhost"},
		{"subdomain kept", "https://mail.google.com/mail/u/0", "mail.google.com"},
		{"only leading www", "https://wwwfoo.com/", "wwwfoo.com"},
		{"chrome page", "chrome://extensions", ""},
		{"edge page", "edge://settings", ""},
		{"about page", "about:blank", ""},
		{"extension page", "chrome-extension://abcdef/popup.html", ""},
		{"unparseable", "http://[::1", ""},
		{"no host", "mailto:someone@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.url); got != tt.want {
				t.Errorf("Extract(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		domain string
		target string
		want   bool
	}{
		{"github.com", "github.com", true},
		{"gist.github.com", "github.com", true},
		{"www.github.com", "github.com", true},
		{"notgithub.com", "github.com", false},
		{"", "github.com", false},
		{"github.com", "", false},
	}

	for _, tt := range tests {
		if got := Matches(tt.domain, tt.target); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.domain, tt.target, got, tt.want)
		}
	}
}
