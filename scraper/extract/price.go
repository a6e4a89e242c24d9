// Package extract turns raw listing HTML and embedded JSON into typed values.
// Nothing here performs I/O.
package extract

import (
	"encoding/json"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PriceFields are the JSON/script keys that may hold a rental price, in
// lookup order.
var PriceFields = []string{"price", "rent", "rentalPrice", "amount", "cost", "monthlyRent", "weeklyRent", "dailyRent"}

// JSONSearchDepth bounds the recursive price search in embedded JSON.
const JSONSearchDepth = 5

// amount matches a single price number: either grouped thousands
// ("16 000", "16,000.00") or a plain digit run. A suffix may follow directly
// ("R12,500pm"); use amountMatches to reject captures that run into a digit.
const amount = `(\d{1,3}(?:[ ,\x{00A0}]\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`

var (
	keepNumeric = regexp.MustCompile(`[^\d.,]`)

	stateMarkers = []string{"window.__INITIAL_STATE__", "window.__NEXT_DATA__", "__INITIAL_PROPS__"}

	scriptAssign = regexp.MustCompile(`(?i)["']?\b(?:price|rent|rentalPrice|amount|cost|monthlyRent|weeklyRent|dailyRent)["']?\s*[:=]\s*["']?(?:R\s*)?` + amount)

	// htmlPricePatterns run from most to least specific.
	htmlPricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i:<[^>]*(?:class|id)="[^"]*price[^"]*"[^>]*>)[\s\S]{0,200}?\bR\s*` + amount),
		regexp.MustCompile(`\bR\s*` + amount + `\s*(?i:per\s*(?:month|week|day)|p/m|p/w|p/d|pm|pw|pd)\b`),
		regexp.MustCompile(`(?i:\b(?:rent|price)[^:<>]{0,20}:)\s*R?\s*` + amount),
		regexp.MustCompile(`(?i:data-(?:price|rent|cost)=")[^"\d]*` + amount),
		regexp.MustCompile(`(?i:<meta[^>]*(?:property|name)="[^"]*price[^"]*"[^>]*content=")[^"\d]*` + amount),
		regexp.MustCompile(`(?i:"price")\s*:\s*"?R?\s*` + amount),
		regexp.MustCompile(`\bZAR\s*` + amount),
		regexp.MustCompile(`\bR\s*` + amount),
	}
)

// ParsePrice reads a number out of loosely formatted price text such as
// "R 16 000.00" or "R16,000". It returns false unless the result is a finite
// positive number.
func ParsePrice(text string) (float64, bool) {
	cleaned := keepNumeric.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// ExtractPrice resolves the rental price of a page or card fragment.
// Embedded JSON wins over script assignments, which win over visible markup.
// A false result means the caller must discard the listing.
func ExtractPrice(page string) (float64, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		scripts := scriptBodies(doc)
		if p, ok := priceFromEmbeddedJSON(doc, scripts); ok {
			return p, true
		}
		if p, ok := priceFromScriptAssignments(scripts); ok {
			return p, true
		}
	}
	return priceFromMarkup(html.UnescapeString(page))
}

func scriptBodies(doc *goquery.Document) []string {
	var out []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if body := s.Text(); strings.TrimSpace(body) != "" {
			out = append(out, body)
		}
	})
	return out
}

func priceFromEmbeddedJSON(doc *goquery.Document, scripts []string) (float64, bool) {
	var found float64
	doc.Find(`script[type="application/json"], script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		if p, ok := FindPriceInJSON(v, JSONSearchDepth); ok {
			found = p
			return false
		}
		return true
	})
	if found > 0 {
		return found, true
	}

	for _, body := range scripts {
		for _, marker := range stateMarkers {
			v, ok := DecodeAssignment(body, marker)
			if !ok {
				continue
			}
			if p, ok := FindPriceInJSON(v, JSONSearchDepth); ok {
				return p, true
			}
		}
	}
	return 0, false
}

// DecodeAssignment decodes the JSON object assigned to marker inside a
// script body, e.g. `window.__NEXT_DATA__ = {...};`.
func DecodeAssignment(body, marker string) (any, bool) {
	idx := strings.Index(body, marker)
	if idx < 0 {
		return nil, false
	}
	rest := body[idx+len(marker):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return nil, false
	}
	rest = rest[eq+1:]
	brace := strings.IndexByte(rest, '{')
	if brace < 0 {
		return nil, false
	}
	var v any
	if err := json.NewDecoder(strings.NewReader(rest[brace:])).Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

type numberTier int

const (
	tierSpaced numberTier = iota
	tierComma
	tierPlain
)

func tierOf(s string) numberTier {
	switch {
	case strings.ContainsAny(s, " \u00a0"):
		return tierSpaced
	case strings.Contains(s, ","):
		return tierComma
	default:
		return tierPlain
	}
}

// priceFromScriptAssignments prefers space-grouped values over comma-grouped
// over bare digits; within a tier the first occurrence wins.
func priceFromScriptAssignments(scripts []string) (float64, bool) {
	var (
		best     float64
		bestTier = tierPlain + 1
	)
	for _, body := range scripts {
		for _, m := range amountMatches(scriptAssign, body) {
			p, ok := ParsePrice(m)
			if !ok {
				continue
			}
			if t := tierOf(m); t < bestTier {
				best, bestTier = p, t
			}
		}
	}
	return best, bestTier <= tierPlain
}

// priceFromMarkup collects every match of every pattern and keeps the one
// with the most digits. Ties go to the more specific pattern, then the
// earlier position. Entities must already be decoded.
func priceFromMarkup(markup string) (float64, bool) {
	var (
		best       float64
		bestDigits int
	)
	for _, re := range htmlPricePatterns {
		for _, m := range amountMatches(re, markup) {
			p, ok := ParsePrice(m)
			if !ok {
				continue
			}
			if d := countDigits(m); d > bestDigits {
				best, bestDigits = p, d
			}
		}
	}
	return best, bestDigits > 0
}

// amountMatches returns the first capture of every match of re in s,
// skipping captures followed by another digit: "R12,5000" is not R12,500.
func amountMatches(re *regexp.Regexp, s string) []string {
	var out []string
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		start, end := loc[2], loc[3]
		if start < 0 {
			continue
		}
		if end < len(s) && s[end] >= '0' && s[end] <= '9' {
			continue
		}
		out = append(out, s[start:end])
	}
	return out
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
