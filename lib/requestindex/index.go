// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package requestindex

import (
	"regexp"
	"slices"
	"strings"

	"github.com/bureau-foundation/requests/lib/ref"
	schema "github.com/bureau-foundation/requests/lib/schema/request"
)

// Sort orders search hits.
type Sort string

const (
	// SortNewest orders by creation time, newest first. The default
	// without a query.
	SortNewest Sort = "newest"

	// SortOldest orders by creation time, oldest first.
	SortOldest Sort = "oldest"

	// SortActivity orders by last_activity, most recent first.
	SortActivity Sort = "activity"

	// SortBestMatch orders by text relevance. The default with a
	// query.
	SortBestMatch Sort = "bestmatch"
)

// Page sizes.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// boostExactNumber ranks a request whose number appears in the query
// above every text match.
const boostExactNumber = 1e6

// numberPattern finds request numbers in a query.
var numberPattern = regexp.MustCompile(`\breq-[a-f0-9]{4,}\b`)

// Filter controls which requests [Index.Search] returns. Zero-value
// fields mean no filter for that dimension; all set fields must match.
type Filter struct {
	Status string
	Type   string

	CreatedBy ref.Reference
	Receiver  ref.Reference
	Topic     ref.Reference
	Reviewer  ref.Reference

	// IsOpen matches the dumped is_open flag. Nil means no filter.
	IsOpen *bool

	// Query is free text matched against title and description.
	// Request numbers in the query match exactly.
	Query string

	Sort Sort

	// Visible hides requests the caller may not see. Applied before
	// paging, so totals count only visible requests.
	Visible func(*schema.RequestDocument) bool
}

// Page is one page of search hits.
type Page struct {
	Hits []schema.RequestDocument

	// Total counts every visible match, across all pages.
	Total int

	// Page is the 1-based page number; Size the page size used.
	Page int
	Size int
}

// Index holds request documents with secondary indexes. Construct
// with [NewIndex]. Not safe for concurrent use.
type Index struct {
	requests map[string]schema.RequestDocument
	byNumber map[string]string

	// Secondary indexes: dimension value → set of request ids.
	// Reference slots are keyed by the reference's text form.
	byStatus   map[string]map[string]struct{}
	byType     map[string]map[string]struct{}
	byCreator  map[string]map[string]struct{}
	byReceiver map[string]map[string]struct{}
	byTopic    map[string]map[string]struct{}
	byReviewer map[string]map[string]struct{}

	text *textIndex
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	idx := &Index{}
	idx.Reset()
	return idx
}

// Reset empties the index.
func (idx *Index) Reset() {
	idx.requests = make(map[string]schema.RequestDocument)
	idx.byNumber = make(map[string]string)
	idx.byStatus = make(map[string]map[string]struct{})
	idx.byType = make(map[string]map[string]struct{})
	idx.byCreator = make(map[string]map[string]struct{})
	idx.byReceiver = make(map[string]map[string]struct{})
	idx.byTopic = make(map[string]map[string]struct{})
	idx.byReviewer = make(map[string]map[string]struct{})
	idx.text = newTextIndex()
}

// Len returns the number of indexed requests.
func (idx *Index) Len() int { return len(idx.requests) }

// Put adds or replaces a request document. The document is stored as
// given; the request service validated it before storing.
func (idx *Index) Put(document schema.RequestDocument) {
	if old, exists := idx.requests[document.ID]; exists {
		idx.updateIndexes(&old, removeFromIndex)
		delete(idx.byNumber, old.Number)
	}
	document.Reviewers = slices.Clone(document.Reviewers)
	idx.requests[document.ID] = document
	if document.Number != "" {
		idx.byNumber[document.Number] = document.ID
	}
	idx.updateIndexes(&document, addToIndex)
	idx.text.put(document.ID,
		weightedText{text: document.Title, weight: weightTitle},
		weightedText{text: document.Description, weight: weightDescription},
	)
}

// Remove deletes a request. No-op for an unknown id.
func (idx *Index) Remove(id string) {
	old, exists := idx.requests[id]
	if !exists {
		return
	}
	idx.updateIndexes(&old, removeFromIndex)
	delete(idx.byNumber, old.Number)
	idx.text.remove(id)
	delete(idx.requests, id)
}

// Get returns the document of a request by internal id or number.
func (idx *Index) Get(id string) (schema.RequestDocument, bool) {
	if internal, exists := idx.byNumber[id]; exists {
		id = internal
	}
	document, exists := idx.requests[id]
	return document, exists
}

// Search returns the requested page of documents matching filter.
// page is 1-based; size is clamped to [1, MaxPageSize] with
// DefaultPageSize for zero.
func (idx *Index) Search(filter Filter, page, size int) Page {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	queryTokens := tokenize(filter.Query)
	numbers := numberPattern.FindAllString(strings.ToLower(filter.Query), -1)

	type hit struct {
		document schema.RequestDocument
		score    float64
	}
	var hits []hit
	for id := range idx.candidates(&filter) {
		document := idx.requests[id]
		if !matchesFilter(&document, &filter) {
			continue
		}
		var score float64
		if filter.Query != "" {
			if slices.Contains(numbers, document.Number) {
				score += boostExactNumber
			}
			score += idx.text.score(id, queryTokens)
			if score == 0 {
				continue
			}
		}
		if filter.Visible != nil && !filter.Visible(&document) {
			continue
		}
		hits = append(hits, hit{document: document, score: score})
	}

	order := filter.Sort
	if order == "" {
		order = SortNewest
		if filter.Query != "" {
			order = SortBestMatch
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		var result int
		switch order {
		case SortOldest:
			result = strings.Compare(a.document.CreatedAt, b.document.CreatedAt)
		case SortActivity:
			result = strings.Compare(b.document.LastActivity, a.document.LastActivity)
		case SortBestMatch:
			switch {
			case a.score > b.score:
				result = -1
			case a.score < b.score:
				result = 1
			}
		}
		if result == 0 {
			result = strings.Compare(b.document.CreatedAt, a.document.CreatedAt)
		}
		if result == 0 {
			result = strings.Compare(a.document.ID, b.document.ID)
		}
		return result
	})

	result := Page{Total: len(hits), Page: page, Size: size}
	start := (page - 1) * size
	if start >= len(hits) {
		return result
	}
	end := min(start+size, len(hits))
	result.Hits = make([]schema.RequestDocument, 0, end-start)
	for _, hit := range hits[start:end] {
		result.Hits = append(result.Hits, hit.document)
	}
	return result
}

// candidates returns the smallest secondary index set that the filter
// selects, or every request when no indexed dimension is set.
func (idx *Index) candidates(filter *Filter) map[string]struct{} {
	var smallest map[string]struct{}
	narrowed := false
	narrow := func(index map[string]map[string]struct{}, key string) {
		if key == "" {
			return
		}
		set := index[key]
		if !narrowed || len(set) < len(smallest) {
			smallest = set
		}
		narrowed = true
	}
	narrow(idx.byStatus, filter.Status)
	narrow(idx.byType, filter.Type)
	narrow(idx.byCreator, referenceKey(filter.CreatedBy))
	narrow(idx.byReceiver, referenceKey(filter.Receiver))
	narrow(idx.byTopic, referenceKey(filter.Topic))
	narrow(idx.byReviewer, referenceKey(filter.Reviewer))
	if !narrowed {
		all := make(map[string]struct{}, len(idx.requests))
		for id := range idx.requests {
			all[id] = struct{}{}
		}
		return all
	}
	return smallest
}

func referenceKey(reference ref.Reference) string {
	if reference.IsZero() {
		return ""
	}
	return reference.String()
}

func matchesFilter(document *schema.RequestDocument, filter *Filter) bool {
	if filter.Status != "" && document.Status != filter.Status {
		return false
	}
	if filter.Type != "" && document.Type != filter.Type {
		return false
	}
	if !filter.CreatedBy.IsZero() && document.CreatedBy != filter.CreatedBy {
		return false
	}
	if !filter.Receiver.IsZero() && document.ReceiverReference() != filter.Receiver {
		return false
	}
	if !filter.Topic.IsZero() && document.TopicReference() != filter.Topic {
		return false
	}
	if !filter.Reviewer.IsZero() && !slices.Contains(document.Reviewers, filter.Reviewer) {
		return false
	}
	if filter.IsOpen != nil && document.IsOpen != *filter.IsOpen {
		return false
	}
	return true
}

// updateIndexes applies op to every secondary index for document.
func (idx *Index) updateIndexes(document *schema.RequestDocument, op func(map[string]map[string]struct{}, string, string)) {
	id := document.ID
	op(idx.byStatus, document.Status, id)
	op(idx.byType, document.Type, id)
	op(idx.byCreator, referenceKey(document.CreatedBy), id)
	op(idx.byReceiver, referenceKey(document.ReceiverReference()), id)
	op(idx.byTopic, referenceKey(document.TopicReference()), id)
	for _, reviewer := range document.Reviewers {
		op(idx.byReviewer, referenceKey(reviewer), id)
	}
}

func addToIndex(index map[string]map[string]struct{}, key, value string) {
	if key == "" {
		return
	}
	set, exists := index[key]
	if !exists {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[value] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, value string) {
	set, exists := index[key]
	if !exists {
		return
	}
	delete(set, value)
	if len(set) == 0 {
		delete(index, key)
	}
}
