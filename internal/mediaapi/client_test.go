package mediaapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const samplePayload = `{
  "episodes": {
    "002": {
      "title": "Second",
      "live": "2024-01-10 20:00:00",
      "duration": "3600.5",
      "files": {
        "cover": {"png": "http://media.example/2.png"},
        "media": {"mp3": "http://media.example/2.mp3", "opus": ""}
      },
      "infos": {"guests": "Ada", "explicit": false},
      "chapters": [{"title": "Intro", "start": "00:00:05.000"}]
    },
    "001": {
      "title": " First ",
      "duration": 1800,
      "files": {"meta": {"psc": "http://media.example/1.psc"}}
    }
  }
}`

func TestDecodeObjectPayload(t *testing.T) {
	episodes, err := Decode(strings.NewReader(samplePayload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}

	first, second := episodes[0], episodes[1]
	if first.ID != 1 || first.Slug != "001" || first.Title != "First" {
		t.Fatalf("unexpected first episode: %+v", first)
	}
	if first.Live != nil {
		t.Fatalf("expected no live time for first episode")
	}
	if first.Files.PSC == nil || *first.Files.PSC != "http://media.example/1.psc" {
		t.Fatalf("expected psc link on first episode")
	}
	if first.DurationSeconds != 1800 {
		t.Fatalf("expected numeric duration, got %v", first.DurationSeconds)
	}

	if second.ID != 2 || second.DurationSeconds != 3600.5 {
		t.Fatalf("unexpected second episode: %+v", second)
	}
	if second.Live == nil || *second.Live != "2024-01-10 20:00:00" {
		t.Fatalf("expected live time on second episode")
	}
	if second.Files.MP3 == nil || second.Files.Cover == nil {
		t.Fatalf("expected mp3 and cover links")
	}
	if second.Files.Opus != nil {
		t.Fatalf("expected empty opus link to be dropped")
	}
	if second.Infos["guests"] != "Ada" || second.Infos["explicit"] != "false" {
		t.Fatalf("unexpected infos: %v", second.Infos)
	}
	if len(second.Chapters) != 1 || second.Chapters[0].Title != "Intro" {
		t.Fatalf("unexpected chapters: %+v", second.Chapters)
	}
}

func TestDecodeArrayPayload(t *testing.T) {
	episodes, err := Decode(strings.NewReader(`{"episodes": [{"title": "Zero"}, {"title": "One"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(episodes) != 2 || episodes[1].ID != 1 || episodes[1].Title != "One" {
		t.Fatalf("unexpected episodes: %+v", episodes)
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	for _, payload := range []string{`not json`, `{"episodes": 5}`, `{"episodes": {"1": {"duration": "long"}}}`} {
		if _, err := Decode(strings.NewReader(payload)); err == nil {
			t.Fatalf("expected error for %s", payload)
		}
	}

	episodes, err := Decode(strings.NewReader(`{}`))
	if err != nil || len(episodes) != 0 {
		t.Fatalf("expected empty result for missing episodes, got %v %v", episodes, err)
	}
}

func TestFetchAll(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	t.Cleanup(srv.Close)

	client, err := New(srv.URL+"/", "teamplus", srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	episodes, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if gotPath != "/teamplus/all" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
}

func TestFetchAllStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, "teamplus", srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.FetchAll(context.Background()); err == nil {
		t.Fatalf("expected error for 502 response")
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New("", "x", nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty base")
	}
	if _, err := New("media.example", "x", nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for relative base")
	}
	if _, err := New("http://media.example", " / ", nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty subdomain")
	}

	client, err := New("http://media.example/api/", "site", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.AllURL() != "http://media.example/api/site/all" {
		t.Fatalf("unexpected all url %s", client.AllURL())
	}
}
