package mediaapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"episode-desk/internal/format"
	"episode-desk/internal/models"
)

type allResponse struct {
	Episodes json.RawMessage `json:"episodes"`
}

type wireEpisode struct {
	Title    string                       `json:"title"`
	Live     string                       `json:"live"`
	Duration flexFloat                    `json:"duration"`
	Files    map[string]map[string]string `json:"files"`
	Infos    map[string]any               `json:"infos"`
	Chapters []wireChapter                `json:"chapters"`
}

type wireChapter struct {
	Title string `json:"title"`
	Start string `json:"start"`
}

// flexFloat accepts both JSON numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("duration %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// Decode reads the payload of the "all episodes" endpoint. The episodes
// member may be an object keyed by episode slug or a plain array, in which
// case the array index is the slug.
func Decode(r io.Reader) ([]models.Episode, error) {
	var resp allResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode episodes payload: %w", err)
	}

	raw := bytes.TrimSpace(resp.Episodes)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	bySlug := make(map[string]wireEpisode)
	switch raw[0] {
	case '{':
		if err := json.Unmarshal(raw, &bySlug); err != nil {
			return nil, fmt.Errorf("decode episodes map: %w", err)
		}
	case '[':
		var list []wireEpisode
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode episodes list: %w", err)
		}
		for i, ep := range list {
			bySlug[strconv.Itoa(i)] = ep
		}
	default:
		return nil, fmt.Errorf("decode episodes: unexpected payload %q", raw[:1])
	}

	episodes := make([]models.Episode, 0, len(bySlug))
	for slug, wire := range bySlug {
		episodes = append(episodes, wire.toModel(slug))
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].ID == episodes[j].ID {
			return episodes[i].Slug < episodes[j].Slug
		}
		return episodes[i].ID < episodes[j].ID
	})
	return episodes, nil
}

func (w wireEpisode) toModel(slug string) models.Episode {
	ep := models.Episode{
		ID:              format.EpisodeNumber(slug),
		Slug:            slug,
		Title:           strings.TrimSpace(w.Title),
		DurationSeconds: float64(w.Duration),
		Files: models.Files{
			Cover: fileLink(w.Files, "cover", "png"),
			PSC:   fileLink(w.Files, "meta", "psc"),
			M4A:   fileLink(w.Files, "media", "m4a"),
			MP3:   fileLink(w.Files, "media", "mp3"),
			OGG:   fileLink(w.Files, "media", "ogg"),
			Opus:  fileLink(w.Files, "media", "opus"),
		},
	}

	if live := strings.TrimSpace(w.Live); live != "" {
		ep.Live = &live
	}

	if len(w.Infos) > 0 {
		ep.Infos = make(map[string]string, len(w.Infos))
		for k, v := range w.Infos {
			ep.Infos[k] = fmt.Sprint(v)
		}
	}

	for _, ch := range w.Chapters {
		ep.Chapters = append(ep.Chapters, models.Chapter{Title: ch.Title, Start: ch.Start})
	}
	return ep
}

func fileLink(files map[string]map[string]string, group, kind string) *string {
	value := strings.TrimSpace(files[group][kind])
	if value == "" {
		return nil
	}
	return &value
}
