// Package auth keeps the set of API tokens allowed to read the episode API.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"episode-desk/internal/watch"
)

// TokenStore manages a set of authorized API tokens backed by a single file on
// disk. Each non-empty trimmed line is one token; lines starting with '#' are
// comments.
type TokenStore struct {
	file    string
	logger  zerolog.Logger
	watcher *watch.FileWatcher

	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewTokenStore loads filePath and reloads it whenever it changes.
func NewTokenStore(filePath string, debounce time.Duration, logger zerolog.Logger) (*TokenStore, error) {
	s := &TokenStore{
		file:   filepath.Clean(filePath),
		logger: logger,
		tokens: make(map[string]struct{}),
	}

	if err := s.refresh(); err != nil {
		return nil, err
	}

	watcher, err := watch.NewFileWatcher(s.file, debounce, func() {
		if err := s.refresh(); err != nil {
			s.logger.Error().Err(err).Msg("token refresh failed")
		}
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("watch token file: %w", err)
	}
	s.watcher = watcher

	return s, nil
}

// Close stops watching the token file.
func (s *TokenStore) Close() error {
	return s.watcher.Close()
}

// IsValidToken reports whether the provided token is authorized.
func (s *TokenStore) IsValidToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[token]
	return ok
}

// Len returns the number of loaded tokens.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func (s *TokenStore) refresh() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.tokens = make(map[string]struct{})
			s.mu.Unlock()
			s.logger.Warn().Str("file", s.file).Msg("token file missing; no tokens loaded")
			return nil
		}
		return err
	}

	tokens := parseTokens(string(data))

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()

	s.logger.Info().Int("tokens", len(tokens)).Msg("loaded api tokens")
	return nil
}

func parseTokens(content string) map[string]struct{} {
	lines := strings.Split(content, "\n")
	tokens := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		token := strings.TrimSpace(line)
		if token == "" || strings.HasPrefix(token, "#") {
			continue
		}
		tokens[token] = struct{}{}
	}
	return tokens
}
