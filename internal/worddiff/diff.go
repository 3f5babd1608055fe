// Package worddiff compares two texts as bags of words.
//
// Texts are split into lowercase word tokens and counted. A token is
// reported as added when it occurs more often in the new text than in the
// old one, and as removed in the opposite case. Position is ignored.
package worddiff

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Result holds the tokens that gained or lost occurrences.
type Result struct {
	Added   []string `json:"addedWords"`
	Removed []string `json:"removedWords"`
}

// Empty reports whether neither list has tokens.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Counts is a token frequency table that remembers first-seen order.
type Counts struct {
	order []string
	n     map[string]int
}

// Frequencies counts the given tokens.
func Frequencies(tokens []string) *Counts {
	c := &Counts{n: make(map[string]int, len(tokens))}
	for _, t := range tokens {
		if _, ok := c.n[t]; !ok {
			c.order = append(c.order, t)
		}
		c.n[t]++
	}
	return c
}

// Get returns the number of occurrences of token.
func (c *Counts) Get(token string) int {
	return c.n[token]
}

// Tokens returns the distinct tokens in first-seen order.
func (c *Counts) Tokens() []string {
	return c.order
}

// Len returns the number of distinct tokens.
func (c *Counts) Len() int {
	return len(c.order)
}

// Tokenize splits text into lowercase word tokens. A word is a run of
// letters, digits or underscores; everything else separates words.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	lower := cases.Lower(language.Und)
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return words
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Diff returns the tokens whose count grew (Added) or shrank (Removed)
// going from previous to next. Each list is in first-occurrence order of
// the text it was taken from and holds each token at most once.
func Diff(previous, next string) Result {
	oldCounts := Frequencies(Tokenize(previous))
	newCounts := Frequencies(Tokenize(next))

	return Result{
		Added:   grown(newCounts, oldCounts),
		Removed: grown(oldCounts, newCounts),
	}
}

// grown lists tokens of a that occur more often in a than in b.
func grown(a, b *Counts) []string {
	out := []string{}
	for _, t := range a.order {
		if a.n[t] > b.n[t] {
			out = append(out, t)
		}
	}
	return out
}

// Similarity computes the cosine similarity of the word frequency vectors
// of two texts. Two texts without words are considered identical.
func Similarity(previous, next string) float64 {
	a := Frequencies(Tokenize(previous))
	b := Frequencies(Tokenize(next))

	if a.Len() == 0 && b.Len() == 0 {
		return 1
	}

	var dot, normA, normB float64
	for _, t := range a.order {
		x := float64(a.n[t])
		dot += x * float64(b.n[t])
		normA += x * x
	}
	for _, t := range b.order {
		y := float64(b.n[t])
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
