package model

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultSentenceLimit is the default maximum length, in characters, of each
// search result returned by Document.Search.
const DefaultSentenceLimit = 80

var (
	// ErrEmptyQuery is returned when a search query is empty.
	ErrEmptyQuery = errors.New("a search query must be provided")

	// ErrOddSentenceLimit is returned when the sentence limit cannot be split
	// evenly around a match.
	ErrOddSentenceLimit = errors.New("the sentence limit must be even")
)

// searchHit is one ranked result: a snippet and its match count.
type searchHit struct {
	sentence string
	hits     int
}

// Search matches query, a case-insensitive regular expression, against every
// text snippet and returns the matching snippets ranked by number of matches,
// most matches first.
//
// Each result is cut to at most sentenceLimit characters centred on the first
// match (see FormatSentence); 0 means no limit. Results are keyed by the cut
// snippet: when two snippets cut to the same text, the later hit count wins
// and the first position is kept. Equal hit counts keep first-seen order.
func (d *Document) Search(query string, sentenceLimit int) ([]string, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if sentenceLimit%2 != 0 {
		return nil, ErrOddSentenceLimit
	}
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		return nil, fmt.Errorf("invalid search query %q: %w", query, err)
	}

	var results []searchHit
	position := make(map[string]int)

	for _, snippet := range d.text {
		matches := re.FindAllStringIndex(snippet, -1)
		if len(matches) == 0 {
			continue
		}

		sentence := strings.TrimSpace(snippet)
		loc := re.FindStringIndex(sentence)
		index := 0
		if loc != nil {
			index = utf8.RuneCountInString(sentence[:loc[0]])
		}
		sentence = FormatSentence(sentence, index, sentenceLimit)

		if i, ok := position[sentence]; ok {
			results[i].hits = len(matches)
			continue
		}
		position[sentence] = len(results)
		results = append(results, searchHit{sentence: sentence, hits: len(matches)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].hits > results[j].hits
	})

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.sentence
	}
	return out, nil
}

// SearchInPlace runs Search and replaces the document's text with the
// results, returning the previous text. This narrows the document for a
// follow-up search; the old text is only kept by the caller.
func (d *Document) SearchInPlace(query string, sentenceLimit int) ([]string, error) {
	results, err := d.Search(query, sentenceLimit)
	if err != nil {
		return nil, err
	}
	orig := d.text
	d.text = results
	return orig, nil
}

// FormatSentence cuts sentence to limit characters around the character at
// index. The window [index-limit/2, index+limit/2) is shifted to stay inside
// the sentence, so the result is always exactly limit characters long. The
// sentence is returned unchanged when limit is 0 or it is already short enough.
func FormatSentence(sentence string, index, limit int) string {
	runes := []rune(sentence)
	if limit <= 0 || len(runes) <= limit {
		return sentence
	}

	start := index - limit/2
	end := index + limit/2

	if start < 0 {
		start = 0
		end = limit
	}
	if end > len(runes) {
		end = len(runes)
		start = end - limit
	}

	return string(runes[start:end])
}
