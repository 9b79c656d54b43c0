package cache

import (
	"fmt"
	"strings"
	"time"

	"chartfeed/internal/config"
)

// Namespace is the Redis key prefix for the chartfeed application.
const Namespace = "chartfeed"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 30*time.Second),
		Medium: durationOrDefault(cfg.Medium, 5*time.Minute),
		Long:   durationOrDefault(cfg.Long, 30*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Cache Keys -------------------------------------------------------------

// TokenKey stores token metadata (symbol, name, decimals) per chain.
func TokenKey(chainID int64, address string) string {
	return formatKey("token", fmt.Sprintf("%d", chainID), strings.ToLower(address))
}

// QuoteListKey stores the ordered quote asset list for a chain.
func QuoteListKey(chainID int64) string {
	return formatKey("quotes", fmt.Sprintf("%d", chainID))
}

// --- TTL Helpers ------------------------------------------------------------

// TokenTTL returns the TTL for token metadata. Metadata is immutable in
// practice, so it rides the long bucket.
func TokenTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// PairTTL returns the TTL for discovered pools.
func PairTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// PairMissTTL returns the short TTL for "no pool found" negative entries.
func PairMissTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLShort, 0.5)
}
