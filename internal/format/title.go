package format

import (
	"fmt"
	"strconv"
	"strings"
)

// TitleKind selects one of the fixed episode title templates.
type TitleKind int

const (
	// TitlePlain renders "#7 (Title)".
	TitlePlain TitleKind = iota
	// TitleLineBreak renders "#7 <br>(Title)" for narrow layouts.
	TitleLineBreak
	// TitleNumber renders the numeric id only.
	TitleNumber
	// TitleSlug renders the raw id string, keeping leading zeros.
	TitleSlug
	// TitleSite renders "<site> #7 (Title)".
	TitleSite
)

// EpisodeNumber converts an episode slug such as "007" into its number.
// Leading digits are used, mirroring a lenient integer cast; a slug without
// leading digits yields 0.
func EpisodeNumber(slug string) int {
	slug = strings.TrimSpace(slug)
	end := 0
	for end < len(slug) && slug[end] >= '0' && slug[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(slug[:end])
	if err != nil {
		return 0
	}
	return n
}

// Title renders an episode title. Pages without a slug are not episodes and
// get their bare title back.
func Title(kind TitleKind, slug, title, siteTitle string) string {
	if slug == "" {
		return title
	}

	id := EpisodeNumber(slug)
	switch kind {
	case TitlePlain:
		return fmt.Sprintf("#%d (%s)", id, title)
	case TitleLineBreak:
		return fmt.Sprintf("#%d <br>(%s)", id, title)
	case TitleNumber:
		return strconv.Itoa(id)
	case TitleSlug:
		return slug
	case TitleSite:
		return fmt.Sprintf("%s #%d (%s)", siteTitle, id, title)
	}
	return ""
}

// Titles bundles every template for JSON views.
type Titles struct {
	Plain     string `json:"plain"`
	LineBreak string `json:"line_break"`
	Number    string `json:"number"`
	Slug      string `json:"slug"`
	Site      string `json:"site"`
}

// AllTitles renders each template for one episode.
func AllTitles(slug, title, siteTitle string) Titles {
	return Titles{
		Plain:     Title(TitlePlain, slug, title, siteTitle),
		LineBreak: Title(TitleLineBreak, slug, title, siteTitle),
		Number:    Title(TitleNumber, slug, title, siteTitle),
		Slug:      Title(TitleSlug, slug, title, siteTitle),
		Site:      Title(TitleSite, slug, title, siteTitle),
	}
}
