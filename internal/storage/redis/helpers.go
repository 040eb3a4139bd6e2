package redis

import (
	"fmt"
	"strconv"

	"github.com/goodtune/tabtime/internal/storage"
)

// parseUsage converts the usage hash to a Usage record
func parseUsage(data map[string]string) (storage.Usage, error) {
	usage := make(storage.Usage, len(data))
	for domain, raw := range data {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seconds for %s: %w", domain, err)
		}
		usage[domain] = seconds
	}
	return usage, nil
}

// usageFields flattens a Usage record into HSET field/value pairs
func usageFields(usage storage.Usage) []interface{} {
	fields := make([]interface{}, 0, len(usage)*2)
	for domain, seconds := range usage {
		fields = append(fields, domain, seconds)
	}
	return fields
}
