package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/simdev/internal/monitoring"
	"github.com/ZanzyTHEbar/simdev/internal/resilience"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	data, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), data)
	assert.Equal(t, 1, c.Size())

	c.Delete("k")
	assert.Equal(t, 0, c.Size())
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	time.Sleep(20 * time.Millisecond)

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, c.Size())
}

func TestCache_Stats(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()
	require.NoError(t, c.Set(context.Background(), "a", []byte("1")))

	stats := c.Stats()
	assert.Equal(t, 1, stats["total_items"])
	assert.Equal(t, 1, stats["active_items"])

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("/v1/developers/a/similar?limit=2"), Key("/v1/developers/a/similar?limit=2"))
	assert.NotEqual(t, Key("/v1/developers/a/similar?limit=2"), Key("/v1/developers/a/similar?limit=3"))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := NewCache(time.Minute)
	defer store.Close()
	metrics := monitoring.NewMetrics()

	calls := 0
	router := gin.New()
	router.Use(Middleware(store, "/v1/", metrics))
	router.GET("/v1/developers/:id/similar", func(c *gin.Context) {
		calls++
		if c.Param("id") == "missing" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"limit": c.Query("limit")})
	})
	router.GET("/health", func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	first := get("/v1/developers/a/similar?limit=2")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get("/v1/developers/a/similar?limit=2")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// different query is a different entry
	get("/v1/developers/a/similar?limit=3")
	assert.Equal(t, 2, calls)

	// errors are not cached
	get("/v1/developers/missing/similar")
	get("/v1/developers/missing/similar")
	assert.Equal(t, 4, calls)

	// outside the prefix
	get("/health")
	get("/health")
	assert.Equal(t, 6, calls)

	stats := metrics.GetStats()
	assert.EqualValues(t, 1, stats["cache_hits"])
	assert.EqualValues(t, 4, stats["cache_misses"])
}

func TestRedisStore_BreakerOpensOnUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store := NewRedisStore(client, time.Minute, "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, found, err := store.Get(ctx, "k")
		assert.Error(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, resilience.StateOpen, store.Breaker().State())

	// an open breaker degrades to silent misses
	_, found, err := store.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.Set(ctx, "k", []byte("v")))
	assert.Equal(t, -1, store.Size())
}
