package settings

import "github.com/router-for-me/passwordpolicy/hasher"

// DB config keys and defaults for policy settings.
const (
	// RetentionWindowKey is the DB config key for the reuse lookback count.
	RetentionWindowKey = "RETENTION_WINDOW"
	// HashAlgorithmKey is the DB config key for the current hash algorithm.
	HashAlgorithmKey = "HASH_ALGORITHM"
	// HashIterationsKey is the DB config key for the current work factor.
	HashIterationsKey = "HASH_ITERATIONS"

	// DefaultRetentionWindow keeps every historical password (non-positive
	// means unbounded).
	DefaultRetentionWindow = 0
	// DefaultHashAlgorithm is the fallback hash algorithm.
	DefaultHashAlgorithm = hasher.AlgorithmPBKDF2SHA256
	// DefaultHashIterations is the fallback work factor.
	DefaultHashIterations = 390000
)
