package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	s, err := NewAt(t.TempDir())
	require.NoError(t, err)

	return s
}

func TestStateRoundTrip(t *testing.T) {
	s := newTestService(t)

	_, ok, err := s.LoadState()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SaveState([]byte(`{"messages":[]}`)))

	blob, ok, err := s.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"messages":[]}`, string(blob))
}

func TestRecentSearchesDedupeAndOrder(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.AddRecentSearch("sushi"))
	require.NoError(t, s.AddRecentSearch("tacos"))
	require.NoError(t, s.AddRecentSearch("Sushi"))

	recents, err := s.RecentSearches()
	require.NoError(t, err)
	require.Equal(t, []string{"Sushi", "tacos"}, recents)
}

func TestRecentSearchesBounded(t *testing.T) {
	s := newTestService(t)

	queries := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for _, q := range queries {
		require.NoError(t, s.AddRecentSearch(q))
	}

	recents, err := s.RecentSearches()
	require.NoError(t, err)
	require.Len(t, recents, maxRecentSearches)
	require.Equal(t, "l", recents[0])
}

func TestRecentSearchIgnoresBlank(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.AddRecentSearch("   "))

	recents, err := s.RecentSearches()
	require.NoError(t, err)
	require.Empty(t, recents)
}

func TestConcurrentRecentSearchesDoNotLoseUpdates(t *testing.T) {
	s := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < maxRecentSearches+2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, s.AddRecentSearch(fmt.Sprintf("query %d", i)))
		}(i)
	}
	wg.Wait()

	recents, err := s.RecentSearches()
	require.NoError(t, err)
	require.Len(t, recents, maxRecentSearches)
}

func TestConcurrentFavoritesDoNotLoseUpdates(t *testing.T) {
	s := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, s.AddFavorite(Favorite{
				ID:   fmt.Sprintf("r%d", i),
				Name: fmt.Sprintf("Place %d", i),
			}))
		}(i)
	}
	wg.Wait()

	favorites, err := s.Favorites()
	require.NoError(t, err)
	require.Len(t, favorites, 8)
}

func TestFavorites(t *testing.T) {
	s := newTestService(t)

	fav := Favorite{ID: "r1", Name: "Italian Kitchen", Cuisine: "Italian"}
	require.NoError(t, s.AddFavorite(fav))
	require.NoError(t, s.AddFavorite(fav))

	favorites, err := s.Favorites()
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	require.Equal(t, fav, favorites[0])

	require.NoError(t, s.RemoveFavorite("r1"))

	favorites, err = s.Favorites()
	require.NoError(t, err)
	require.Empty(t, favorites)
}
