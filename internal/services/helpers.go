package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/contextmeet/contextmeet/internal/calendar"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// normaliseEmails trims, lowercases, and de-duplicates a list of addresses.
func normaliseEmails(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// toJSON marshals a value into a datatypes.JSON column, defaulting to null.
func toJSON(value any) datatypes.JSON {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// stringsFromJSON decodes a JSON string array column, tolerating null.
func stringsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

// platformForLink classifies a meeting link, tolerating blanks.
func platformForLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	return calendar.PlatformFromLink(link)
}

// stringMapFromJSON decodes a JSON object column, tolerating null.
func stringMapFromJSON(raw datatypes.JSON) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
