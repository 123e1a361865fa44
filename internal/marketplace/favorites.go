package marketplace

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Favorites keeps the listings each user starred.
type Favorites interface {
	Toggle(ctx context.Context, userID string, listingID int) (bool, error)
	List(ctx context.Context, userID string) ([]int, error)
}

// RedisFavorites stores favourites as one Redis set per user.
type RedisFavorites struct {
	client redis.Cmdable
}

// NewRedisFavorites builds a Redis-backed store.
func NewRedisFavorites(client redis.Cmdable) *RedisFavorites {
	return &RedisFavorites{client: client}
}

func favoritesKey(userID string) string {
	return fmt.Sprintf("favorites:%s", userID)
}

// Toggle stars or unstars a listing and reports whether it is now starred.
func (f *RedisFavorites) Toggle(ctx context.Context, userID string, listingID int) (bool, error) {
	key := favoritesKey(userID)
	member := strconv.Itoa(listingID)

	removed, err := f.client.SRem(ctx, key, member).Result()
	if err != nil {
		return false, err
	}
	if removed > 0 {
		return false, nil
	}
	if err := f.client.SAdd(ctx, key, member).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the starred listing ids in ascending order.
func (f *RedisFavorites) List(ctx context.Context, userID string) ([]int, error) {
	members, err := f.client.SMembers(ctx, favoritesKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// MemoryFavorites is an in-process store.
type MemoryFavorites struct {
	mu     sync.Mutex
	byUser map[string]map[int]struct{}
}

// NewMemoryFavorites builds an empty in-process store.
func NewMemoryFavorites() *MemoryFavorites {
	return &MemoryFavorites{byUser: make(map[string]map[int]struct{})}
}

// Toggle implements Favorites.
func (f *MemoryFavorites) Toggle(_ context.Context, userID string, listingID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.byUser[userID]
	if !ok {
		set = make(map[int]struct{})
		f.byUser[userID] = set
	}
	if _, starred := set[listingID]; starred {
		delete(set, listingID)
		return false, nil
	}
	set[listingID] = struct{}{}
	return true, nil
}

// List implements Favorites.
func (f *MemoryFavorites) List(_ context.Context, userID string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int, 0, len(f.byUser[userID]))
	for id := range f.byUser[userID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
