package models

// Chapter is a named segment of an episode with its start offset
// (for example "00:05.000").
type Chapter struct {
	Title string `json:"title"`
	Start string `json:"start"`
}

// Files holds the optional asset links published for an episode.
type Files struct {
	Cover *string `json:"cover_png,omitempty"`
	PSC   *string `json:"psc,omitempty"`
	M4A   *string `json:"m4a,omitempty"`
	MP3   *string `json:"mp3,omitempty"`
	OGG   *string `json:"ogg,omitempty"`
	Opus  *string `json:"opus,omitempty"`
}

// Episode is an immutable snapshot of one episode as served by the media API.
type Episode struct {
	ID              int               `json:"id"`
	Slug            string            `json:"slug"`
	Title           string            `json:"title"`
	Files           Files             `json:"files"`
	Live            *string           `json:"live,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	MP3Bytes        int64             `json:"mp3_bytes,omitempty"`
	BitrateKbps     int               `json:"bitrate_kbps,omitempty"`
	Infos           map[string]string `json:"infos,omitempty"`
	Chapters        []Chapter         `json:"chapters,omitempty"`
}

// Published reports whether the episode carries everything needed to be shown
// as a released episode.
func (e Episode) Published() bool {
	return e.Files.MP3 != nil && e.Files.Cover != nil && e.Title != ""
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (e Episode) Clone() Episode {
	out := e
	if e.Infos != nil {
		out.Infos = make(map[string]string, len(e.Infos))
		for k, v := range e.Infos {
			out.Infos[k] = v
		}
	}
	if e.Chapters != nil {
		out.Chapters = make([]Chapter, len(e.Chapters))
		copy(out.Chapters, e.Chapters)
	}
	return out
}
