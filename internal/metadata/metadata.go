// Package metadata fills gaps in API episode records from a local mirror of the
// episode audio.
package metadata

import (
	"errors"
	"io"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	"episode-desk/internal/models"
)

// Probe is what could be read from a local audio file.
type Probe struct {
	Title           string
	SizeBytes       int64
	Artist          *string
	Album           *string
	DurationSeconds *float64
	BitrateKbps     *int
}

// ProbeFile reads tags and, for mp3 files, the decoded duration of path.
func ProbeFile(path string) (Probe, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Probe{}, err
	}

	title, artist, album := readTags(path)
	probe := Probe{Title: title, SizeBytes: info.Size(), Artist: artist, Album: album}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		dur, err := computeMP3Duration(path)
		if err == nil && dur > 0 {
			duration := dur
			probe.DurationSeconds = &duration

			bitrate := int(math.Round((float64(info.Size()) * 8) / duration / 1000))
			if bitrate > 0 {
				probe.BitrateKbps = &bitrate
			}
		}
	}

	return probe, nil
}

// LocalPath maps an asset link onto mediaDir by its file name. It returns ""
// when the link has no usable file name.
func LocalPath(mediaDir, link string) string {
	if mediaDir == "" || link == "" {
		return ""
	}
	p := link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == "" {
		return ""
	}
	return filepath.Join(mediaDir, name)
}

// Enrich completes ep from the local copy of its mp3: file size and bitrate
// always, duration, title, artist and album only where the API left them
// empty. The episode is returned unchanged when no local file exists.
func Enrich(ep models.Episode, mediaDir string) (models.Episode, error) {
	if ep.Files.MP3 == nil {
		return ep, nil
	}

	local := LocalPath(mediaDir, *ep.Files.MP3)
	if local == "" {
		return ep, nil
	}

	probe, err := ProbeFile(local)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ep, nil
		}
		return ep, err
	}

	ep = ep.Clone()
	ep.MP3Bytes = probe.SizeBytes
	if probe.BitrateKbps != nil {
		ep.BitrateKbps = *probe.BitrateKbps
	}
	if ep.DurationSeconds <= 0 && probe.DurationSeconds != nil {
		ep.DurationSeconds = *probe.DurationSeconds
	}
	if ep.Title == "" {
		ep.Title = probe.Title
		if ep.Title == "" {
			ep.Title = strings.TrimSuffix(filepath.Base(local), filepath.Ext(local))
		}
	}
	setInfo(&ep, "artist", probe.Artist)
	setInfo(&ep, "album", probe.Album)
	return ep, nil
}

func setInfo(ep *models.Episode, key string, value *string) {
	if value == nil {
		return
	}
	if _, ok := ep.Infos[key]; ok {
		return
	}
	if ep.Infos == nil {
		ep.Infos = make(map[string]string)
	}
	ep.Infos[key] = *value
}

func readTags(path string) (string, *string, *string) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, nil
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", nil, nil
	}

	return strings.TrimSpace(meta.Title()), optionalString(meta.Artist()), optionalString(meta.Album())
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func computeMP3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}

	return total, nil
}
