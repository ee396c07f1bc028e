// Package shownotes annotates rendered shownote markup with chapter start
// offsets.
package shownotes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"episode-desk/internal/models"
)

const (
	openTag  = "<h3>"
	closeTag = "</h3>"
)

var headingPattern = regexp.MustCompile(`<h3>.*?</h3>`)

// ChapterOffsets maps chapter titles to their start offset with the
// fractional part dropped ("00:05.000" -> "00:05"). The first chapter with a
// given title wins.
func ChapterOffsets(chapters []models.Chapter) map[string]string {
	offsets := make(map[string]string, len(chapters))
	for _, chapter := range chapters {
		if _, ok := offsets[chapter.Title]; ok {
			continue
		}
		start, _, _ := strings.Cut(chapter.Start, ".")
		offsets[chapter.Title] = start
	}
	return offsets
}

// Annotate prefixes every <h3> heading whose text exactly matches a chapter
// title with "[offset] ". Other headings and markup are returned untouched.
func Annotate(markup string, chapters []models.Chapter) string {
	annotated, _ := AnnotateReport(markup, chapters)
	return annotated
}

// AnnotateReport annotates markup like Annotate and also returns the chapter
// titles that received no offset, in chapter order and without duplicates.
func AnnotateReport(markup string, chapters []models.Chapter) (string, []string) {
	offsets := ChapterOffsets(chapters)
	applied := make(map[string]struct{}, len(offsets))

	annotated := markup
	if len(offsets) > 0 {
		annotated = headingPattern.ReplaceAllStringFunc(markup, func(match string) string {
			text := match[len(openTag) : len(match)-len(closeTag)]
			offset, ok := offsets[text]
			if !ok {
				return match
			}
			applied[text] = struct{}{}
			return openTag + "[" + offset + "] " + text + closeTag
		})
	}

	var unmatched []string
	seen := make(map[string]struct{}, len(chapters))
	for _, chapter := range chapters {
		if _, ok := seen[chapter.Title]; ok {
			continue
		}
		seen[chapter.Title] = struct{}{}
		if _, ok := applied[chapter.Title]; !ok {
			unmatched = append(unmatched, chapter.Title)
		}
	}
	return annotated, unmatched
}

// Headings returns the decoded, trimmed text of every <h3> element in
// document order.
func Headings(markup string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse shownotes: %w", err)
	}

	var headings []string
	doc.Find("h3").Each(func(_ int, sel *goquery.Selection) {
		headings = append(headings, strings.TrimSpace(sel.Text()))
	})
	return headings, nil
}

// NearMisses narrows unmatched chapter titles to those that do have an <h3>
// heading once entities are decoded and whitespace or attributes are ignored.
// Those headings are skipped by Annotate only because of how they are written.
func NearMisses(markup string, unmatched []string) ([]string, error) {
	if len(unmatched) == 0 {
		return nil, nil
	}
	headings, err := Headings(markup)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(headings))
	for _, h := range headings {
		present[h] = struct{}{}
	}

	var near []string
	for _, title := range unmatched {
		if _, ok := present[title]; ok {
			near = append(near, title)
		}
	}
	return near, nil
}
