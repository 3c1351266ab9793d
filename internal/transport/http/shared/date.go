package shared

import "time"

// ParseMonth reads a YYYY-MM period.
func ParseMonth(value string) (year int, month time.Month, err error) {
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, err
	}
	return parsed.Year(), parsed.Month(), nil
}
