package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanText strips tags, decodes entities and collapses whitespace.
func CleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// SelectionText returns the cleaned text of a selection.
func SelectionText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// FirstText returns the cleaned text of the first selector that yields
// non-empty content.
func FirstText(root *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		var out string
		root.Find(s).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			out = SelectionText(sel)
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	return ""
}

// ImageOptions controls image harvesting.
type ImageOptions struct {
	Exclude []string
	Limit   int
}

// ExtractImages collects img sources below root in document order, resolving
// relative URLs against base, skipping excluded substrings and duplicates.
func ExtractImages(root *goquery.Selection, base *url.URL, opts ImageOptions) []string {
	var raw []string
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" || strings.HasPrefix(src, "data:") {
			src, _ = img.Attr("data-src")
		}
		if src != "" {
			raw = append(raw, src)
		}
	})
	return NormalizeImages(raw, base, opts)
}

// NormalizeImages resolves, filters, dedups and caps a list of image URLs.
func NormalizeImages(raw []string, base *url.URL, opts ImageOptions) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, src := range raw {
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") || excluded(src, opts.Exclude) {
			continue
		}
		abs := Resolve(base, src)
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out
}

func excluded(src string, needles []string) bool {
	lower := strings.ToLower(src)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// Resolve makes href absolute against base. Unparseable input is returned
// unchanged.
func Resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
