// Package search ranks event participants against a typed name using fzf's
// fuzzy matching algorithm.
package search

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/model"
)

// DefaultLimit is the number of matches returned to the identity picker.
const DefaultLimit = 5

const (
	slab16Size = 100 * 1024
	slab32Size = 2048
)

// fold lowercases s and strips diacritics so "José" matches "jose".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Rank returns up to limit participants whose names fuzzily match query,
// best score first. An empty query matches everyone with score 0, ordered
// by name. A limit <= 0 means no limit.
func Rank(participants []model.Participant, query string, limit int) []model.SearchMatch {
	pattern := []rune(fold(strings.TrimSpace(query)))

	matches := make([]model.SearchMatch, 0, len(participants))
	slab := util.MakeSlab(slab16Size, slab32Size)
	for _, p := range participants {
		if len(pattern) == 0 {
			matches = append(matches, model.SearchMatch{ID: p.ID, Name: p.Name})
			continue
		}
		score := Score(p.Name, pattern, slab)
		if score <= 0 {
			continue
		}
		matches = append(matches, model.SearchMatch{ID: p.ID, Name: p.Name, Score: score})
	}

	slices.SortFunc(matches, func(a, b model.SearchMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(fold(a.Name), fold(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Score returns the fzf score of pattern against name, or 0 when it does
// not match. The pattern must already be folded. slab may be nil.
func Score(name string, pattern []rune, slab *util.Slab) int {
	if len(pattern) == 0 {
		return 0
	}
	chars := util.ToChars([]byte(fold(name)))
	res, _ := algo.FuzzyMatchV2(false, false, true, &chars, pattern, false, slab)
	if res.Start < 0 {
		return 0
	}
	return res.Score
}
