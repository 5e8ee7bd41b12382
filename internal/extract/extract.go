package extract

import (
	"encoding/json"
	"strings"
)

// Fields holds the contact data pulled out of a single fetched page.
// Empty strings mean the field was not found.
type Fields struct {
	Phones       []string
	CompanyName  string
	FacebookURL  string
	LinkedInURL  string
	TwitterURL   string
	InstagramURL string
	Address      string
}

// All runs every extractor over the page and collects the results. Social
// extractors scan the raw markup for href attributes, phone extraction works
// on the tag-stripped text, and company name and address walk the parsed
// document.
func All(page string) Fields {
	if page == "" {
		return Fields{}
	}
	return Fields{
		Phones:       Phones(page),
		CompanyName:  CompanyName(page),
		FacebookURL:  Facebook(page),
		LinkedInURL:  LinkedIn(page),
		TwitterURL:   Twitter(page),
		InstagramURL: Instagram(page),
		Address:      Address(page),
	}
}

// decodeJSONLD parses a JSON-LD script body into a flat list of objects,
// accepting either a single object or an array of objects. Malformed JSON
// yields nil.
func decodeJSONLD(raw string) []map[string]any {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	var items []any
	switch v := data.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	default:
		return nil
	}
	objects := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if object, ok := item.(map[string]any); ok {
			objects = append(objects, object)
		}
	}
	return objects
}

// isOrganisation reports whether a JSON-LD object describes a business
// entity. The @type field may be a single string or a list of strings.
func isOrganisation(item map[string]any) bool {
	var itemType string
	switch v := item["@type"].(type) {
	case string:
		itemType = v
	case []any:
		parts := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				parts = append(parts, s)
			}
		}
		itemType = strings.Join(parts, " ")
	}
	for _, t := range []string{"Organization", "LocalBusiness", "Corporation", "LegalService"} {
		if strings.Contains(itemType, t) {
			return true
		}
	}
	return false
}
