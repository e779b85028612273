// Package reloadcache implements ReloadCache: a content-addressed store of
// fingerprint -> action sequence with exact-hit and similarity-ranked fuzzy
// lookup.
package reloadcache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/deskmux/deskmux/pkg/models"
)

var tagBlockPattern = regexp.MustCompile(`(?s)<open_windows>.*?</open_windows>|<user_interaction:[^>]*>.*?</[^>]*>|<previous_interactions>.*?</previous_interactions>`)
var whitespacePattern = regexp.MustCompile(`\s+`)

// Normalize strips the tagged blocks called out in the fingerprinting
// contract, lowercases, and collapses whitespace runs. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(content string) string {
	stripped := tagBlockPattern.ReplaceAllString(content, "")
	lowered := strings.ToLower(stripped)
	collapsed := whitespacePattern.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(collapsed)
}

// Ngrams splits normalized text into words and computes word-level bigrams;
// unigrams if the text has fewer than 2 words.
func Ngrams(normalized string) []string {
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return nil
	}
	if len(words) < 2 {
		return words
	}
	grams := make([]string, 0, len(words)-1)
	for i := 0; i < len(words)-1; i++ {
		grams = append(grams, words[i]+" "+words[i+1])
	}
	return grams
}

func contentHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// WindowStateHash hashes the sorted "id:renderer" pairs of the current
// window set, truncated to 16 hex characters.
func WindowStateHash(windows []models.WindowState) string {
	pairs := make([]string, 0, len(windows))
	for _, w := range windows {
		pairs = append(pairs, w.ID+":"+w.Content.Renderer)
	}
	sort.Strings(pairs)
	sum := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	encoded := hex.EncodeToString(sum[:])
	return encoded[:16]
}

// Compute builds a Fingerprint for task content of the given triggerType
// (and optional triggerTarget, e.g. a component action's target id) against
// the current window set.
func Compute(content, triggerType, triggerTarget string, windows []models.WindowState) models.Fingerprint {
	normalized := Normalize(content)
	return models.Fingerprint{
		TriggerType:     triggerType,
		TriggerTarget:   triggerTarget,
		Ngrams:          Ngrams(normalized),
		ContentHash:     contentHash(normalized),
		WindowStateHash: WindowStateHash(windows),
	}
}

// Similarity scores two fingerprints per the contract:
//
//	0.5*triggerScore + 0.3*jaccard(ngrams) + 0.2*[windowStateHash equal]
//
// triggerScore is 1 if kind matches and target matches exactly, 0.5 if kind
// matches but target differs, else 0, so the trigger term contributes 0.5,
// 0.25 or 0 and two identical fingerprints score 1.0.
func Similarity(a, b models.Fingerprint) float64 {
	trigger := 0.0
	if a.TriggerType == b.TriggerType {
		if a.TriggerTarget == b.TriggerTarget {
			trigger = 1.0
		} else {
			trigger = 0.5
		}
	}

	jacc := jaccard(a.Ngrams, b.Ngrams)

	windowEq := 0.0
	if a.WindowStateHash == b.WindowStateHash {
		windowEq = 1.0
	}

	return 0.5*trigger + 0.3*jacc + 0.2*windowEq
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	setA := toSet(a)
	setB := toSet(b)
	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}

// IsExactMatch reports whether a and b are an exact match: similarity >=
// threshold and equal content hashes.
func IsExactMatch(a, b models.Fingerprint, threshold float64) bool {
	return Similarity(a, b) >= threshold && a.ContentHash == b.ContentHash
}
