package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/example/garde/internal/core/calendar"
)

// entityPrefixes maps entity types to their expected ID prefixes
var entityPrefixes = map[string][]string{
	"roster":         {"ROSTER"},
	"unavailability": {"UNAV"},
	"escalation":     {"ESC"},
	"log":            {"LOG"},
	"user":           {"USR", "ENG", "ADM"},
}

// validateEntityID checks if an ID has the correct prefix format.
// Returns an error with helpful message if the ID appears to be a short ID.
func validateEntityID(id, entityType string) error {
	if id == "" {
		return nil // Empty is OK, let other validation handle required fields
	}

	prefixes, ok := entityPrefixes[entityType]
	if !ok {
		return nil // Unknown entity type, skip validation
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(id, prefix+"-") {
			return nil
		}
	}
	prefix := prefixes[0]

	// Check if it looks like a short ID (just digits)
	if matched, _ := regexp.MatchString(`^\d+$`, id); matched {
		return fmt.Errorf("invalid %s ID '%s'. Use full ID format: %s-%s", entityType, id, prefix, id)
	}

	// Check if it's using wrong case
	upper := strings.ToUpper(id)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p+"-") {
			return fmt.Errorf("invalid %s ID '%s'. IDs are case-sensitive, use: %s", entityType, id, upper)
		}
	}

	// Generic invalid format
	return fmt.Errorf("invalid %s ID '%s'. Expected format: %s-xxx", entityType, id, prefix)
}

// parseDayFlag parses a required YYYY-MM-DD flag value.
func parseDayFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required (YYYY-MM-DD)", name)
	}
	d, err := calendar.ParseDay(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

// parseInstantFlag parses an RFC3339 or "YYYY-MM-DD HH:MM" value in local
// time. Empty means now.
func parseInstantFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want RFC3339 or \"YYYY-MM-DD HH:MM\"", name, value)
	}
	return t, nil
}
