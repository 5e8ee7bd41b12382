package domains

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "domains.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "domain_header_with_mixed_values",
			content:  "domain\nexample.com\nWWW.Foo.IO\nbar.net/\n",
			expected: []string{"example.com", "foo.io", "bar.net"},
		},
		{
			name:     "website_column_preferred_over_first",
			content:  "name,website\nAcme Pty Ltd,https://acme.com\nBeta Corp,www.beta.org\n",
			expected: []string{"acme.com", "beta.org"},
		},
		{
			name:     "header_priority_prefers_domain",
			content:  "url,domain\nhttps://ignored.com,primary.com\n",
			expected: []string{"primary.com"},
		},
		{
			name:     "semicolon_delimiter",
			content:  "domain;phone\nfoo.com;5551234\nbar.org;5555678\n",
			expected: []string{"foo.com", "bar.org"},
		},
		{
			name:     "tab_delimiter",
			content:  "domain\tcity\nfoo.com\tSydney\n",
			expected: []string{"foo.com"},
		},
		{
			name:     "pipe_delimiter",
			content:  "domain|city\nfoo.com|Melbourne\n",
			expected: []string{"foo.com"},
		},
		{
			name:     "headerless_single_column",
			content:  "alpha.com\nbeta.org\ngamma.net\n",
			expected: []string{"alpha.com", "beta.org", "gamma.net"},
		},
		{
			name:     "row_falls_back_to_preferred_column",
			content:  "id,domain\n1,foo.com\n2,bar.org\n",
			expected: []string{"foo.com", "bar.org"},
		},
		{
			name:     "dedupes_preserving_first_seen_order",
			content:  "domain\nfoo.com\nhttps://FOO.com/\nbar.com\nwww.foo.com\n",
			expected: []string{"foo.com", "bar.com"},
		},
		{
			name:     "strips_utf8_bom",
			content:  "\uFEFFdomain\nfoo.com\n",
			expected: []string{"foo.com"},
		},
		{
			name:     "skips_blank_and_unusable_rows",
			content:  "domain\nfoo.com\n\n   \nnot a domain\nbar.org\n",
			expected: []string{"foo.com", "bar.org"},
		},
		{
			name:     "quoted_values",
			content:  "\"domain\",\"city\"\n\"foo.com\",\"Brisbane, QLD\"\n",
			expected: []string{"foo.com"},
		},
		{
			name:     "empty_file",
			content:  "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeInput(t, tt.content)
			domains, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, domains)
		})
	}
}

func TestLoadUnknownHeaderTreatedAsHeaderless(t *testing.T) {
	// With no recognised column the whole file is read positionally,
	// including the first line.
	path := writeInput(t, "company.com,phone\nacme.com,5551234\n")
	domains, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"company.com", "acme.com"}, domains)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
