package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const maxRecentSearches = 10

// Service is a write-through file store: every mutation hits disk before it
// returns. It holds the session state blob, the recent-search list and the
// favorites list as separate files under the data dir.
type Service struct {
	mu  sync.RWMutex
	dir string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return nil, oops.Errorf("failed to create data dir: %w", err)
	}

	return &Service{
		dir: cfg.Data.Dir,
	}, nil
}

func NewAt(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, oops.Errorf("failed to create data dir: %w", err)
	}

	return &Service{dir: dir}, nil
}

func (s *Service) statePath() string     { return filepath.Join(s.dir, "state.json") }
func (s *Service) recentsPath() string   { return filepath.Join(s.dir, "recents.jsonl") }
func (s *Service) favoritesPath() string { return filepath.Join(s.dir, "favorites.jsonl") }

// LoadState returns the persisted state blob, or ok=false if none exists.
func (s *Service) LoadState() ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.statePath())
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Errorf("failed to read state file: %w", err)
	}

	return data, true, nil
}

func (s *Service) SaveState(blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.statePath(), blob, 0644); err != nil {
		return oops.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// AddRecentSearch prepends query to the recent-search list, dropping any
// earlier occurrence and anything beyond the cap. The read-modify-rewrite
// runs under one write lock so concurrent mutations serialize.
func (s *Service) AddRecentSearch(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recents, err := s.loadRecents()
	if err != nil {
		return err
	}

	updated := []string{query}
	for _, q := range recents {
		if strings.EqualFold(q, query) {
			continue
		}

		updated = append(updated, q)
		if len(updated) >= maxRecentSearches {
			break
		}
	}

	lines := make([]any, 0, len(updated))
	for _, q := range updated {
		lines = append(lines, recentLine{Query: q})
	}

	return s.writeLines(s.recentsPath(), lines)
}

func (s *Service) RecentSearches() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadRecents()
}

func (s *Service) loadRecents() ([]string, error) {
	var result []string

	err := s.readLines(s.recentsPath(), func(data []byte) error {
		var line recentLine
		if err := json.Unmarshal(data, &line); err != nil {
			return err
		}

		result = append(result, line.Query)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) AddFavorite(fav Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	favorites, err := s.loadFavorites()
	if err != nil {
		return err
	}

	for _, f := range favorites {
		if f.ID == fav.ID {
			return nil
		}
	}

	favorites = append(favorites, fav)

	lines := make([]any, 0, len(favorites))
	for _, f := range favorites {
		lines = append(lines, f)
	}

	return s.writeLines(s.favoritesPath(), lines)
}

func (s *Service) RemoveFavorite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	favorites, err := s.loadFavorites()
	if err != nil {
		return err
	}

	lines := make([]any, 0, len(favorites))
	for _, f := range favorites {
		if f.ID == id {
			continue
		}

		lines = append(lines, f)
	}

	return s.writeLines(s.favoritesPath(), lines)
}

func (s *Service) Favorites() ([]Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadFavorites()
}

func (s *Service) loadFavorites() ([]Favorite, error) {
	result := make([]Favorite, 0)

	err := s.readLines(s.favoritesPath(), func(data []byte) error {
		var fav Favorite
		if err := json.Unmarshal(data, &fav); err != nil {
			return err
		}

		result = append(result, fav)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// readLines and writeLines assume the caller holds the appropriate lock.
func (s *Service) readLines(path string, fn func(data []byte) error) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return oops.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err = fn([]byte(line)); err != nil {
			return oops.Errorf("failed to parse line in %s: %w", filepath.Base(path), err)
		}
	}

	if err = scanner.Err(); err != nil {
		return oops.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	return nil
}

func (s *Service) writeLines(path string, items []any) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return oops.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return oops.Errorf("failed to marshal item: %w", err)
		}

		if _, err = writer.WriteString(string(data) + "\n"); err != nil {
			return oops.Errorf("failed to write item: %w", err)
		}
	}

	if err = writer.Flush(); err != nil {
		return oops.Errorf("failed to flush writer: %w", err)
	}

	return nil
}
