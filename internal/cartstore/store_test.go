package cartstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh-client/pkg/config"
	"github.com/shopmesh/shopmesh-client/pkg/db"
	"github.com/shopmesh/shopmesh-client/pkg/db/models"
)

func newTestGormStore(t *testing.T) (Store, *Notifier) {
	t.Helper()
	cfg := config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "cartstore.db") + "?cache=shared&_fk=1",
		// Single connection keeps sqlite writers from tripping over each
		// other with SQLITE_BUSY under the concurrency tests.
		MaxOpenConns: 1,
	}
	client, err := db.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&models.CartRecord{}, &models.CounterState{}))

	notifier := NewNotifier()
	return NewGormStore(client, notifier), notifier
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) (Store, *Notifier)) {
	ctx := context.Background()

	t.Run("empty map and unknown counter", func(t *testing.T) {
		store, _ := newStore(t)

		records, err := store.CartMap(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)

		_, known, err := store.ItemCount(ctx)
		require.NoError(t, err)
		assert.False(t, known)

		_, ok, err := store.CartIDForShop(ctx, "shop-a.example")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("one cart id per shop, insertion order kept", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.SetCartIDForShop(ctx, "shop-a.example", "cart-a1"))
		require.NoError(t, store.SetCartIDForShop(ctx, "shop-b.example", "cart-b1"))
		require.NoError(t, store.SetCartIDForShop(ctx, "shop-a.example", "cart-a2"))

		id, ok, err := store.CartIDForShop(ctx, "shop-a.example")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "cart-a2", id)

		records, err := store.CartMap(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "shop-a.example", records[0].ShopDomain)
		assert.Equal(t, "cart-a2", records[0].CartID)
		assert.Equal(t, "shop-b.example", records[1].ShopDomain)
	})

	t.Run("concurrent writers for different shops never clobber", func(t *testing.T) {
		store, _ := newStore(t)

		var wg sync.WaitGroup
		domains := []string{"shop-a.example", "shop-b.example", "shop-c.example", "shop-d.example"}
		for _, domain := range domains {
			wg.Add(1)
			go func(domain string) {
				defer wg.Done()
				assert.NoError(t, store.SetCartIDForShop(ctx, domain, "cart-"+domain))
			}(domain)
		}
		wg.Wait()

		records, err := store.CartMap(ctx)
		require.NoError(t, err)
		assert.Len(t, records, len(domains))
	})

	t.Run("counter writes and clamping", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.IncrementItemCount(ctx, 1))
		require.NoError(t, store.IncrementItemCount(ctx, 2))
		count, known, err := store.ItemCount(ctx)
		require.NoError(t, err)
		require.True(t, known)
		assert.Equal(t, 3, count)

		require.NoError(t, store.SetItemCount(ctx, 7))
		count, _, err = store.ItemCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, count)

		require.NoError(t, store.IncrementItemCount(ctx, -20))
		count, _, err = store.ItemCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("concurrent increments never lose a write", func(t *testing.T) {
		store, _ := newStore(t)

		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.IncrementItemCount(ctx, 1))
			}()
		}
		wg.Wait()

		count, known, err := store.ItemCount(ctx)
		require.NoError(t, err)
		require.True(t, known)
		assert.Equal(t, writers, count)
	})

	t.Run("writes publish change events", func(t *testing.T) {
		store, notifier := newStore(t)

		var mu sync.Mutex
		var kinds []EventKind
		unsubscribe := notifier.Subscribe(func(event Event) {
			mu.Lock()
			kinds = append(kinds, event.Kind)
			mu.Unlock()
		})
		defer unsubscribe()

		require.NoError(t, store.SetCartIDForShop(ctx, "shop-a.example", "cart-a1"))
		require.NoError(t, store.SetItemCount(ctx, 1))
		require.NoError(t, store.IncrementItemCount(ctx, 1))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []EventKind{EventCartMap, EventItemCount, EventItemCount}, kinds)
	})
}

func TestGormStore(t *testing.T) {
	runStoreContract(t, newTestGormStore)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) (Store, *Notifier) {
		notifier := NewNotifier()
		return NewMemoryStore(notifier), notifier
	})
}

func TestEventKeepsZeroItemCountOnTheWire(t *testing.T) {
	// "Cart emptied" is a real count. A bridge peer must receive it, not an
	// absent field.
	payload, err := json.Marshal(Event{Kind: EventItemCount, ItemCount: 0, Origin: "peer-1"})
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"item_count":0`)
}

func TestNotifierUnsubscribeStopsDelivery(t *testing.T) {
	notifier := NewNotifier()

	delivered := 0
	unsubscribe := notifier.Subscribe(func(Event) { delivered++ })

	notifier.Publish(Event{Kind: EventSyncCart})
	unsubscribe()
	notifier.Publish(Event{Kind: EventSyncCart})

	assert.Equal(t, 1, delivered)
}

func TestOpenFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{
		DB: config.DBConfig{
			Driver: config.DriverSQLite,
			DSN:    "file:" + filepath.Join(t.TempDir(), "missing", "nested", "cartstore.db") + "?mode=ro",
		},
		FeatureFlags: config.FeatureFlagsConfig{MemoryFallback: true},
	}

	store, client, err := Open(context.Background(), cfg, NewNotifier(), nil)
	require.NoError(t, err)
	assert.Nil(t, client)

	require.NoError(t, store.SetCartIDForShop(context.Background(), "shop-a.example", "cart-a1"))
	id, ok, err := store.CartIDForShop(context.Background(), "shop-a.example")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cart-a1", id)
}

func TestOpenWithoutFallbackSurfacesError(t *testing.T) {
	cfg := &config.Config{
		DB: config.DBConfig{
			Driver: config.DriverSQLite,
			DSN:    "file:" + filepath.Join(t.TempDir(), "missing", "nested", "cartstore.db") + "?mode=ro",
		},
	}

	_, _, err := Open(context.Background(), cfg, NewNotifier(), nil)
	assert.Error(t, err)
}

func TestLastWriterWinsAcrossViews(t *testing.T) {
	store, notifier := newTestGormStore(t)
	ctx := context.Background()

	// A subscriber re-reads on every notification instead of trusting the
	// event payload; the final read reflects the last write.
	var mu sync.Mutex
	var lastSeen string
	unsubscribe := notifier.Subscribe(func(event Event) {
		if event.Kind != EventCartMap {
			return
		}
		id, _, err := store.CartIDForShop(ctx, event.ShopDomain)
		if err != nil {
			return
		}
		mu.Lock()
		lastSeen = id
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, store.SetCartIDForShop(ctx, "shop-a.example", "cart-a1"))
	require.NoError(t, store.SetCartIDForShop(ctx, "shop-a.example", "cart-a2"))

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "cart-a2", lastSeen)
}
