// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requestindex

import (
	"math"
	"regexp"
	"strings"
)

// BM25 parameters (Okapi variant, standard values).
const (
	paramK1      = 1.2
	paramB       = 0.75
	paramEpsilon = 0.25
)

// Field weights. A weight repeats the field's tokens in the composite
// document.
const (
	weightTitle       = 5
	weightDescription = 2
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize splits text into lowercase alphanumeric tokens of at least
// two characters.
func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, match := range matches {
		if len(match) >= 2 {
			tokens = append(tokens, match)
		}
	}
	return tokens
}

type weightedText struct {
	text   string
	weight int
}

// textIndex is a BM25 term index that is updated per document instead
// of rebuilt: term frequencies are kept per request id and document
// frequencies are adjusted on put and remove.
type textIndex struct {
	frequencies map[string]map[string]int
	lengths     map[string]int
	totalLength int

	// documentFrequency[term] counts the documents containing term.
	documentFrequency map[string]int
}

func newTextIndex() *textIndex {
	return &textIndex{
		frequencies:       make(map[string]map[string]int),
		lengths:           make(map[string]int),
		documentFrequency: make(map[string]int),
	}
}

func (t *textIndex) put(id string, fields ...weightedText) {
	t.remove(id)

	frequency := make(map[string]int)
	length := 0
	for _, field := range fields {
		if field.weight <= 0 {
			continue
		}
		for _, token := range tokenize(field.text) {
			frequency[token] += field.weight
			length += field.weight
		}
	}
	for term := range frequency {
		t.documentFrequency[term]++
	}
	t.frequencies[id] = frequency
	t.lengths[id] = length
	t.totalLength += length
}

func (t *textIndex) remove(id string) {
	frequency, exists := t.frequencies[id]
	if !exists {
		return
	}
	for term := range frequency {
		t.documentFrequency[term]--
		if t.documentFrequency[term] == 0 {
			delete(t.documentFrequency, term)
		}
	}
	t.totalLength -= t.lengths[id]
	delete(t.frequencies, id)
	delete(t.lengths, id)
}

// score returns the BM25 score of document id for the query tokens.
// Zero means no query token occurs in the document.
func (t *textIndex) score(id string, queryTokens []string) float64 {
	frequency := t.frequencies[id]
	if len(frequency) == 0 || len(t.frequencies) == 0 {
		return 0
	}
	documentCount := float64(len(t.frequencies))
	averageLength := float64(t.totalLength) / documentCount
	documentLength := float64(t.lengths[id])

	var score float64
	for _, token := range queryTokens {
		termFrequency := float64(frequency[token])
		if termFrequency == 0 {
			continue
		}
		containing := float64(t.documentFrequency[token])
		idf := math.Log(1 + (documentCount-containing+0.5)/(containing+0.5))
		if idf <= 0 {
			idf = paramEpsilon
		}
		numerator := termFrequency * (paramK1 + 1)
		denominator := termFrequency + paramK1*(1-paramB+paramB*documentLength/averageLength)
		score += idf * numerator / denominator
	}
	return score
}
