package server

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"episode-desk/internal/broadcast"
	"episode-desk/internal/format"
	"episode-desk/internal/models"
	"episode-desk/internal/shownotes"
)

func requestBaseURL(r *http.Request) *url.URL {
	scheme := "http"
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if candidate := strings.TrimSpace(parts[0]); candidate != "" {
			scheme = candidate
		}
	} else if r.TLS != nil {
		scheme = "https"
	}

	host := strings.TrimSpace(r.Host)
	if host == "" {
		return nil
	}

	return &url.URL{Scheme: scheme, Host: host}
}

func (h *serverHandler) buildRSSFeed(base *url.URL, requestPath, rawQuery string, episodes []models.Episode) ([]byte, error) {
	feedURL := *base
	feedURL.Path = requestPath
	feedURL.RawQuery = rawQuery

	channelLink := *base
	channelLink.Path = ""
	channelLink.RawQuery = ""

	released := make([]models.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Published() {
			released = append(released, ep)
		}
	}
	sort.SliceStable(released, func(i, j int) bool {
		return released[i].ID > released[j].ID
	})

	lastBuild := time.Time{}
	for _, ep := range released {
		if aired, ok := h.airTime(ep); ok && aired.After(lastBuild) {
			lastBuild = aired
		}
	}
	if lastBuild.IsZero() {
		lastBuild = time.Now().UTC()
	}

	rss := rssFeed{
		Version:  "2.0",
		AtomNS:   "http://www.w3.org/2005/Atom",
		ITunesNS: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel: rssChannel{
			Title:         h.site.Title,
			Link:          channelLink.String(),
			Description:   h.site.Title,
			Language:      h.site.Language,
			LastBuildDate: lastBuild.Format(time.RFC1123Z),
			Generator:     "episode-desk",
			AtomLink: rssAtomLink{
				Href: feedURL.String(),
				Rel:  "self",
				Type: "application/rss+xml",
			},
		},
	}

	for _, ep := range released {
		item := rssItem{
			Title:       format.Title(format.TitlePlain, ep.Slug, ep.Title, h.site.Title),
			Link:        *ep.Files.MP3,
			GUID:        rssGUID{IsPermaLink: "false", Value: ep.Slug},
			Description: episodeDescription(ep),
			Enclosure: rssEnclosure{
				URL:    *ep.Files.MP3,
				Length: ep.MP3Bytes,
				Type:   "audio/mpeg",
			},
			ITunesDuration: format.Duration(ep.DurationSeconds),
			ITunesImage:    rssImage{Href: *ep.Files.Cover},
		}
		if aired, ok := h.airTime(ep); ok {
			item.PubDate = aired.Format(time.RFC1123Z)
		}

		rss.Channel.Items = append(rss.Channel.Items, item)
	}

	output, err := xml.MarshalIndent(rss, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), output...), nil
}

func (h *serverHandler) airTime(ep models.Episode) (time.Time, bool) {
	if ep.Live == nil {
		return time.Time{}, false
	}
	t, ok := broadcast.ParseAirTime(*ep.Live, h.site.Location)
	if !ok {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// episodeDescription lists the chapters as "[offset] title" lines.
func episodeDescription(ep models.Episode) string {
	if len(ep.Chapters) == 0 {
		return ep.Title
	}
	offsets := shownotes.ChapterOffsets(ep.Chapters)
	lines := make([]string, 0, len(ep.Chapters))
	for _, chapter := range ep.Chapters {
		lines = append(lines, "["+offsets[chapter.Title]+"] "+chapter.Title)
	}
	return strings.Join(lines, "\n")
}

type rssFeed struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	AtomNS   string     `xml:"xmlns:atom,attr"`
	ITunesNS string     `xml:"xmlns:itunes,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string      `xml:"title"`
	Link          string      `xml:"link"`
	Description   string      `xml:"description"`
	Language      string      `xml:"language,omitempty"`
	LastBuildDate string      `xml:"lastBuildDate"`
	Generator     string      `xml:"generator"`
	AtomLink      rssAtomLink `xml:"atom:link"`
	Items         []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title          string       `xml:"title"`
	Link           string       `xml:"link"`
	GUID           rssGUID      `xml:"guid"`
	PubDate        string       `xml:"pubDate,omitempty"`
	Description    string       `xml:"description"`
	Enclosure      rssEnclosure `xml:"enclosure"`
	ITunesDuration string       `xml:"itunes:duration,omitempty"`
	ITunesImage    rssImage     `xml:"itunes:image"`
}

type rssImage struct {
	Href string `xml:"href,attr"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}
