package reloadcache

import (
	"testing"

	"github.com/deskmux/deskmux/pkg/models"
)

func TestNormalizeIsIdempotent(t *testing.T) {
	input := "<open_windows>W1</open_windows>  Open  the  NOTES app"
	once := Normalize(input)
	twice := Normalize(once)
	if once != twice {
		t.Fatalf("expected idempotent normalization, got %q vs %q", once, twice)
	}
}

func TestNormalizeStripsTaggedBlocks(t *testing.T) {
	input := "hello <previous_interactions>click x=1</previous_interactions> world"
	out := Normalize(input)
	if got := out; got != "hello world" {
		t.Fatalf("expected tagged block stripped, got %q", got)
	}
}

func TestNgramsFallsBackToUnigramsUnderTwoWords(t *testing.T) {
	if grams := Ngrams("hello"); len(grams) != 1 || grams[0] != "hello" {
		t.Fatalf("expected single unigram, got %v", grams)
	}
}

func TestNgramsBigrams(t *testing.T) {
	grams := Ngrams("open the notes app")
	want := []string{"open the", "the notes", "notes app"}
	if len(grams) != len(want) {
		t.Fatalf("expected %d bigrams, got %v", len(want), grams)
	}
	for i, g := range want {
		if grams[i] != g {
			t.Fatalf("bigram %d: expected %q got %q", i, g, grams[i])
		}
	}
}

func TestExactMatchRequiresHighSimilarityAndEqualContentHash(t *testing.T) {
	windows := []models.WindowState{{ID: "w1", Content: models.Content{Renderer: "html"}}}
	a := Compute("open notes app", "main", "", windows)
	b := Compute("open notes app", "main", "", windows)
	if !IsExactMatch(a, b, 0.95) {
		t.Fatal("expected identical content+windows to be an exact match")
	}
}

func TestDifferentContentIsNotExactMatch(t *testing.T) {
	windows := []models.WindowState{{ID: "w1"}}
	a := Compute("open notes app", "main", "", windows)
	b := Compute("close notes app", "main", "", windows)
	if IsExactMatch(a, b, 0.95) {
		t.Fatal("expected different content to not be an exact match")
	}
}

func TestSimilarityTriggerScoring(t *testing.T) {
	a := models.Fingerprint{TriggerType: "main", TriggerTarget: "t1"}
	sameTarget := models.Fingerprint{TriggerType: "main", TriggerTarget: "t1"}
	diffTarget := models.Fingerprint{TriggerType: "main", TriggerTarget: "t2"}
	diffKind := models.Fingerprint{TriggerType: "window"}

	if Similarity(a, sameTarget) <= Similarity(a, diffTarget) {
		t.Fatal("expected matching target to score higher than differing target")
	}
	if Similarity(a, diffTarget) <= Similarity(a, diffKind) {
		t.Fatal("expected matching kind with differing target to outscore a differing kind")
	}
}
