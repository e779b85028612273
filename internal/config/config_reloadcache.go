package config

// ReloadCacheBackend selects the CacheStore implementation.
type ReloadCacheBackend string

const (
	ReloadCacheBackendJSONFile ReloadCacheBackend = "jsonfile"
	ReloadCacheBackendSQLite   ReloadCacheBackend = "sqlite"
	ReloadCacheBackendS3       ReloadCacheBackend = "s3"
)

// ReloadCacheConfig configures the ReloadCache and its persistence backend.
type ReloadCacheConfig struct {
	Backend ReloadCacheBackend `yaml:"backend"`

	// Path is the JSON file path (jsonfile) or the sqlite database file (sqlite).
	Path string `yaml:"path"`

	// S3Bucket/S3Prefix apply when Backend is s3.
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`

	// ExactMatchThreshold and FuzzyThreshold are similarity cutoffs (spec
	// defaults: exact requires similarity >= 0.95 and contentHash equality;
	// fuzzy candidates default to >= 0.6).
	ExactMatchThreshold float64 `yaml:"exact_match_threshold"`
	FuzzyThreshold      float64 `yaml:"fuzzy_threshold"`

	// TopK is the number of fuzzy candidates returned by Lookup (spec default 3).
	TopK int `yaml:"top_k"`
}

func defaultReloadCacheConfig() ReloadCacheConfig {
	return ReloadCacheConfig{
		Backend:             ReloadCacheBackendJSONFile,
		Path:                "./sessions/reload_cache.json",
		ExactMatchThreshold: 0.95,
		FuzzyThreshold:      0.6,
		TopK:                3,
	}
}
