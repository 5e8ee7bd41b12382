package domains

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// preferredHeaders lists the column names recognised as domain columns,
// in priority order. Matching is case-insensitive.
var preferredHeaders = []string{"domain", "website", "website_url", "url", "site", "homepage"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a delimited file of domains and returns them canonicalised,
// deduplicated, and in first-seen order. The delimiter is sniffed from the
// first line; when no recognised header is present every line's first
// field is taken as the domain. An empty result is not an error.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	// Strip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed rows rather than failing the whole file
			log.Debug().Err(err).Msg("Skipping malformed input row")
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, nil
	}

	tryColumns := headerColumns(records[0])

	rows := records
	if tryColumns != nil {
		rows = records[1:]
	}

	seen := make(map[string]bool)
	domains := make([]string, 0, len(rows))
	for _, row := range rows {
		raw := domainValue(row, tryColumns)
		domain := Canonicalise(raw)
		if domain == "" {
			if raw != "" {
				log.Debug().Str("value", raw).Msg("Skipping value with no usable domain")
			}
			continue
		}
		if seen[domain] {
			continue
		}
		seen[domain] = true
		domains = append(domains, domain)
	}

	return domains, nil
}

// headerColumns maps the header row to the column indexes to try per row,
// ordered by header priority. Returns nil when no recognised header is
// present, which switches loading to headerless mode.
func headerColumns(header []string) []int {
	normalised := make(map[string]int, len(header))
	for i, field := range header {
		name := strings.ToLower(strings.TrimSpace(field))
		if name == "" {
			continue
		}
		if _, ok := normalised[name]; !ok {
			normalised[name] = i
		}
	}

	var columns []int
	for _, name := range preferredHeaders {
		if idx, ok := normalised[name]; ok {
			columns = append(columns, idx)
		}
	}
	return columns
}

// domainValue picks the raw domain value from a row: the first non-empty
// preferred column, falling back to the first column.
func domainValue(row []string, tryColumns []int) string {
	for _, idx := range tryColumns {
		if idx < len(row) {
			if v := strings.TrimSpace(row[idx]); v != "" {
				return v
			}
		}
	}
	if len(row) > 0 {
		return strings.TrimSpace(row[0])
	}
	return ""
}

// sniffDelimiter picks the most frequent of the common delimiters in the
// first line of the file, defaulting to comma.
func sniffDelimiter(data []byte) rune {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	line := string(sample)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	delimiter := ','
	best := 0
	for _, candidate := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(candidate)); n > best {
			delimiter = candidate
			best = n
		}
	}
	return delimiter
}
