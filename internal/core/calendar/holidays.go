package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed holidays.yaml
var defaultHolidaysYAML []byte

// HolidayTable maps an exact day (YYYY-MM-DD) to the holiday name.
// It is a configuration input: entries are never computed.
type HolidayTable map[string]string

// Lookup returns the holiday name for the given day.
func (h HolidayTable) Lookup(day time.Time) (string, bool) {
	if h == nil {
		return "", false
	}
	name, ok := h[FormatDay(Day(day))]
	return name, ok
}

// Days returns the table's days in ascending order.
func (h HolidayTable) Days() []string {
	days := make([]string, 0, len(h))
	for d := range h {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

type holidayFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// ParseHolidays decodes a YAML holiday table.
func ParseHolidays(data []byte) (HolidayTable, error) {
	var f holidayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse holiday table: %w", err)
	}

	table := make(HolidayTable, len(f.Holidays))
	for _, h := range f.Holidays {
		day, err := ParseDay(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		key := FormatDay(day)
		if _, dup := table[key]; dup {
			return nil, fmt.Errorf("holiday table lists %s twice", key)
		}
		table[key] = h.Name
	}
	return table, nil
}

// LoadHolidays reads a YAML holiday table from disk.
// An empty path yields the embedded default table.
func LoadHolidays(path string) (HolidayTable, error) {
	if path == "" {
		return DefaultHolidays()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holiday table: %w", err)
	}
	return ParseHolidays(data)
}

// DefaultHolidays returns the embedded 2024-2025 national holiday table.
func DefaultHolidays() (HolidayTable, error) {
	return ParseHolidays(defaultHolidaysYAML)
}
