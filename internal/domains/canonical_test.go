package domains

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalise(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain_domain_unchanged",
			input:    "example.com",
			expected: "example.com",
		},
		{
			name:     "lowercases_and_strips_www",
			input:    "WWW.Foo.IO",
			expected: "foo.io",
		},
		{
			name:     "strips_scheme_path_query_fragment",
			input:    "https://www.Example.com/about?q=1#team",
			expected: "example.com",
		},
		{
			name:     "strips_trailing_slash",
			input:    "bar.net/",
			expected: "bar.net",
		},
		{
			name:     "strips_trailing_dot",
			input:    "WWW.TEST.ORG.",
			expected: "test.org",
		},
		{
			name:     "repairs_doubled_scheme",
			input:    "https://https//acornlawpc.com/",
			expected: "acornlawpc.com",
		},
		{
			name:     "repairs_duplicated_full_scheme",
			input:    "http://http://example.com/contact",
			expected: "example.com",
		},
		{
			name:     "repairs_empty_netloc",
			input:    "https:///example.com",
			expected: "example.com",
		},
		{
			name:     "strips_www_as_prefix_not_charset",
			input:    "www.web.com",
			expected: "web.com",
		},
		{
			name:     "keeps_www_like_names_without_prefix",
			input:    "wwwebsite.com",
			expected: "wwwebsite.com",
		},
		{
			name:     "rejects_internal_whitespace",
			input:    "foo bar.com",
			expected: "",
		},
		{
			name:     "trims_surrounding_whitespace",
			input:    "  example.com  ",
			expected: "example.com",
		},
		{
			name:     "empty_input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace_only_input",
			input:    "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Canonicalise(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		wantErr bool
	}{
		{
			name:    "valid_domain",
			domain:  "example.com",
			wantErr: false,
		},
		{
			name:    "valid_hyphenated_multi_label",
			domain:  "my-site.co.uk",
			wantErr: false,
		},
		{
			name:    "empty_domain",
			domain:  "",
			wantErr: true,
		},
		{
			name:    "missing_tld",
			domain:  "example",
			wantErr: true,
		},
		{
			name:    "invalid_character",
			domain:  "exam_ple.com",
			wantErr: true,
		},
		{
			name:    "empty_segment",
			domain:  "example..com",
			wantErr: true,
		},
		{
			name:    "leading_hyphen",
			domain:  "-example.com",
			wantErr: true,
		},
		{
			name:    "single_character_tld",
			domain:  "example.c",
			wantErr: true,
		},
		{
			name:    "localhost_blocked",
			domain:  "localhost",
			wantErr: true,
		},
		{
			name:    "internal_suffix_blocked",
			domain:  "db.internal",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.domain)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
