package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"episode-desk/internal/models"
)

func strPtr(s string) *string { return &s }

func TestProbeFileNonMP3HasNoDuration(t *testing.T) {
	root := t.TempDir()
	for _, ext := range []string{".m4a", ".ogg", ".opus"} {
		path := filepath.Join(root, "track"+ext)
		if err := os.WriteFile(path, []byte("audio data"), 0o644); err != nil {
			t.Fatalf("write %s: %v", ext, err)
		}

		probe, err := ProbeFile(path)
		if err != nil {
			t.Fatalf("ProbeFile(%s): %v", ext, err)
		}
		if probe.DurationSeconds != nil || probe.BitrateKbps != nil {
			t.Fatalf("expected no duration for %s", ext)
		}
	}
}

func TestProbeFileInvalidMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mp3")
	if err := os.WriteFile(path, []byte("not really an mp3"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	probe, err := ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile unexpected error: %v", err)
	}
	if probe.DurationSeconds != nil {
		t.Fatalf("expected duration to be nil on decode error")
	}
}

func TestProbeFileMissing(t *testing.T) {
	if _, err := ProbeFile(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestReadTagsAndOptionalString(t *testing.T) {
	title, artist, album := readTags("/no/such/file.mp3")
	if title != "" || artist != nil || album != nil {
		t.Fatalf("expected empty metadata on failure")
	}

	if optionalString("   ") != nil {
		t.Fatalf("expected nil for whitespace input")
	}
	value := optionalString(" value ")
	if value == nil || *value != "value" {
		t.Fatalf("expected pointer to trimmed value")
	}
}

func TestComputeMP3DurationErrors(t *testing.T) {
	if _, err := computeMP3Duration("/does/not/exist.mp3"); err == nil {
		t.Fatalf("expected error when file is missing")
	}

	path := filepath.Join(t.TempDir(), "bad.mp3")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	duration, err := computeMP3Duration(path)
	if err == nil {
		t.Fatalf("expected decode error for invalid mp3 data")
	}
	if duration != 0 {
		t.Fatalf("expected zero duration on error, got %f", duration)
	}
}

func TestLocalPath(t *testing.T) {
	cases := []struct {
		dir, link, want string
	}{
		{"/media", "http://media.example/tpp/tpp007.mp3?x=1", filepath.Join("/media", "tpp007.mp3")},
		{"/media", "tpp008.mp3", filepath.Join("/media", "tpp008.mp3")},
		{"", "http://media.example/a.mp3", ""},
		{"/media", "", ""},
		{"/media", "http://media.example/", ""},
	}
	for _, tc := range cases {
		if got := LocalPath(tc.dir, tc.link); got != tc.want {
			t.Fatalf("LocalPath(%q, %q) = %q, want %q", tc.dir, tc.link, got, tc.want)
		}
	}
}

func TestEnrichFillsTitleFromFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Pilot Episode.mp3"), []byte("not audio"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ep := models.Episode{ID: 1, Slug: "001", Files: models.Files{MP3: strPtr("http://media.example/Pilot%20Episode.mp3")}}
	got, err := Enrich(ep, dir)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.Title != "Pilot Episode" {
		t.Fatalf("expected filename title, got %q", got.Title)
	}
	if got.DurationSeconds != 0 {
		t.Fatalf("expected duration to stay unknown, got %v", got.DurationSeconds)
	}
}

func TestEnrichLeavesCompleteOrUnmirroredEpisodes(t *testing.T) {
	dir := t.TempDir()

	complete := models.Episode{Title: "Done", DurationSeconds: 60, Files: models.Files{MP3: strPtr("x.mp3")}}
	if got, err := Enrich(complete, dir); err != nil || got.Title != "Done" || got.DurationSeconds != 60 {
		t.Fatalf("expected complete episode unchanged, got %+v %v", got, err)
	}

	missing := models.Episode{Files: models.Files{MP3: strPtr("http://media.example/absent.mp3")}}
	if got, err := Enrich(missing, dir); err != nil || got.Title != "" {
		t.Fatalf("expected missing local file to be ignored, got %+v %v", got, err)
	}

	noMP3 := models.Episode{}
	if got, err := Enrich(noMP3, dir); err != nil || got.Title != "" {
		t.Fatalf("expected episode without mp3 unchanged, got %+v %v", got, err)
	}
}

func TestEnrichRecordsLocalFileSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "007.mp3"), []byte("twelve bytes"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ep := models.Episode{
		Title:           "Known",
		DurationSeconds: 60,
		Infos:           map[string]string{"artist": "API"},
		Files:           models.Files{MP3: strPtr("http://media.example/007.mp3")},
	}
	got, err := Enrich(ep, dir)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.MP3Bytes != 12 {
		t.Fatalf("expected 12 bytes, got %d", got.MP3Bytes)
	}
	if got.Title != "Known" || got.DurationSeconds != 60 {
		t.Fatalf("expected API values to win, got %q %v", got.Title, got.DurationSeconds)
	}
	if got.Infos["artist"] != "API" {
		t.Fatalf("expected API artist kept, got %q", got.Infos["artist"])
	}
}

func TestSetInfoKeepsExistingValues(t *testing.T) {
	original := map[string]string{"artist": "API"}
	ep := models.Episode{Infos: original}.Clone()

	setInfo(&ep, "artist", strPtr("Tag"))
	setInfo(&ep, "album", strPtr("Season 1"))
	setInfo(&ep, "genre", nil)

	if ep.Infos["artist"] != "API" || ep.Infos["album"] != "Season 1" {
		t.Fatalf("unexpected infos %v", ep.Infos)
	}
	if _, ok := ep.Infos["genre"]; ok {
		t.Fatalf("expected nil value to be skipped")
	}
	if len(original) != 1 {
		t.Fatalf("expected original infos untouched, got %v", original)
	}

	var empty models.Episode
	setInfo(&empty, "album", strPtr("Season 2"))
	if empty.Infos["album"] != "Season 2" {
		t.Fatalf("expected infos map to be created, got %v", empty.Infos)
	}
}
