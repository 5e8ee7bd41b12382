package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompanyName(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		expected string
	}{
		{
			name:     "json_ld_organization",
			markup:   `<html><head><script type="application/ld+json">{"@type":"Organization","name":"Acme Corporation"}</script></head><body></body></html>`,
			expected: "Acme Corporation",
		},
		{
			name:     "json_ld_legal_name_fallback",
			markup:   `<script type="application/ld+json">{"@type":"LocalBusiness","legalName":"Smith & Sons Pty Ltd"}</script>`,
			expected: "Smith & Sons Pty Ltd",
		},
		{
			name:     "json_ld_array_picks_organization",
			markup:   `<script type="application/ld+json">[{"@type":"WebSite","name":"Ignored"},{"@type":"Corporation","name":"Initech"}]</script>`,
			expected: "Initech",
		},
		{
			name:     "json_ld_type_list",
			markup:   `<script type="application/ld+json">{"@type":["LegalService","Attorney"],"name":"Dewey LLP"}</script>`,
			expected: "Dewey LLP",
		},
		{
			name:     "json_ld_beats_og_site_name",
			markup:   `<head><script type="application/ld+json">{"@type":"Organization","name":"Structured Co"}</script><meta property="og:site_name" content="Meta Co"></head>`,
			expected: "Structured Co",
		},
		{
			name:     "malformed_json_ld_falls_through",
			markup:   `<script type="application/ld+json">{not valid json</script><meta property="og:site_name" content="Fallback Co">`,
			expected: "Fallback Co",
		},
		{
			name:     "og_site_name",
			markup:   `<head><meta property="og:site_name" content="Acme Widgets"></head>`,
			expected: "Acme Widgets",
		},
		{
			name:     "og_site_name_trailing_separator",
			markup:   `<meta property="og:site_name" content="Acme Widgets - ">`,
			expected: "Acme Widgets",
		},
		{
			name:     "title_with_home_suffix",
			markup:   `<title>Acme Widgets | Home</title>`,
			expected: "Acme Widgets",
		},
		{
			name:     "title_with_long_tagline",
			markup:   `<title>Initech - Tech Support That Never Sleeps</title>`,
			expected: "Initech",
		},
		{
			name:     "title_with_short_trailer",
			markup:   `<title>Acme - NYC</title>`,
			expected: "Acme",
		},
		{
			name:     "title_home_page_without_separator",
			markup:   `<title>NCCA Home Page</title>`,
			expected: "NCCA",
		},
		{
			name:     "url_like_title_rejected",
			markup:   `<title>https://acme.example.com</title>`,
			expected: "",
		},
		{
			name:     "overlong_title_rejected",
			markup:   `<title>The Very Best Widgets Flanges and Grommets in the Greater Area</title>`,
			expected: "",
		},
		{
			name:     "no_name_anywhere",
			markup:   `<html><body><p>Just a page</p></body></html>`,
			expected: "",
		},
		{
			name:     "empty_input",
			markup:   "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompanyName(tt.markup))
		})
	}
}

func TestValidCompanyName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"normal name", "Acme Corporation", true},
		{"single character", "A", false},
		{"url scheme", "visit https://acme.example.com today", false},
		{"www prefix", "www.acme.example", false},
		{"dot com path", "acme.com/about", false},
		{"too long", "This name runs on far past the point where any real company would stop naming itself ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, validCompanyName(tt.input))
		})
	}
}
