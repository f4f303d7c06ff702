// Package gcovr reads the HTML report written by gcovr and produces the raw
// navigation tree consumed by pkg/tree. It also embeds tree data into the
// report pages and rewrites file paths in gcovr JSON output.
package gcovr

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Entry is one row of a gcovr directory listing.
type Entry struct {
	Name     string
	Coverage string
	IsDir    bool
	Link     string
}

var percentPattern = regexp.MustCompile(`([\d.]+)%?`)

// ParsePage extracts the file-row entries of a gcovr directory page. A row
// is a <div> whose class list contains "file-row"; its name and coverage
// come from data-filename and data-coverage, its link from the first <a>
// inside it, and a span.coverage-percent overrides the coverage value.
// Rows without a name are skipped.
func ParsePage(r io.Reader) ([]Entry, error) {
	z := html.NewTokenizer(r)

	var (
		entries      []Entry
		current      *Entry
		rowDepth     int
		divDepth     int
		wantCoverage bool
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("tokenize page: %w", z.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			attrs := readAttrs(z, hasAttr)

			switch tag {
			case "div":
				if tt == html.SelfClosingTagToken {
					continue
				}
				divDepth++
				if current == nil && hasClass(attrs["class"], "file-row") {
					coverage := attrs["data-coverage"]
					if coverage == "" {
						coverage = "0"
					}
					current = &Entry{
						Name:     attrs["data-filename"],
						Coverage: coverage,
						IsDir:    hasClass(attrs["class"], "directory"),
					}
					rowDepth = divDepth
				}
			case "a":
				if current != nil && current.Link == "" {
					current.Link = attrs["href"]
				}
			case "span":
				if current != nil && hasClass(attrs["class"], "coverage-percent") {
					wantCoverage = true
				}
			}

		case html.TextToken:
			if current == nil || !wantCoverage {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if m := percentPattern.FindStringSubmatch(text); m != nil {
				current.Coverage = m[1]
			}
			wantCoverage = false

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "div" {
				continue
			}
			if current != nil && divDepth == rowDepth {
				if current.Name != "" {
					entries = append(entries, *current)
				}
				current = nil
				wantCoverage = false
			}
			if divDepth > 0 {
				divDepth--
			}
		}
	}
}

func readAttrs(z *html.Tokenizer, more bool) map[string]string {
	attrs := make(map[string]string)
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs[string(key)] = string(val)
	}
	return attrs
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
