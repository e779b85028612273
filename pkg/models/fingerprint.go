package models

import "time"

// Fingerprint is the normalized-content + window-state summary used to key
// the ReloadCache.
type Fingerprint struct {
	TriggerType   string   `json:"triggerType"`
	TriggerTarget string   `json:"triggerTarget,omitempty"`
	Ngrams        []string `json:"ngrams"`
	ContentHash   string   `json:"contentHash"`
	WindowStateHash string `json:"windowStateHash"`
}

// CacheEntry is a recorded, replayable action sequence.
//
// Immutable after creation except for UseCount/LastUsedAt/FailCount.
type CacheEntry struct {
	ID                string      `json:"id"`
	Label             string      `json:"label"`
	Fingerprint       Fingerprint `json:"fingerprint"`
	Actions           []Action    `json:"actions"`
	RequiredWindowIDs []string    `json:"requiredWindowIds"`
	UseCount          int         `json:"useCount"`
	LastUsedAt        time.Time   `json:"lastUsedAt"`
	FailCount         int         `json:"failCount"`
}
