package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsCacheCachesWithinTTL(t *testing.T) {
	loads := 0
	loader := func(key string) (string, error) {
		loads++
		return "value-" + key, nil
	}

	current := time.Unix(1000, 0)
	cache := NewSettingsCache(loader, time.Minute, func() time.Time { return current })

	value, err := cache.Get("limit")
	require.NoError(t, err)
	assert.Equal(t, "value-limit", value)
	assert.Equal(t, 1, loads)

	// Within the TTL the loader is not consulted again
	current = current.Add(30 * time.Second)
	value, err = cache.Get("limit")
	require.NoError(t, err)
	assert.Equal(t, "value-limit", value)
	assert.Equal(t, 1, loads)
}

func TestSettingsCacheExpires(t *testing.T) {
	loads := 0
	loader := func(key string) (string, error) {
		loads++
		return "v", nil
	}

	current := time.Unix(1000, 0)
	cache := NewSettingsCache(loader, time.Minute, func() time.Time { return current })

	_, err := cache.Get("k")
	require.NoError(t, err)

	current = current.Add(time.Minute)
	_, err = cache.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestSettingsCacheInvalidate(t *testing.T) {
	loads := 0
	loader := func(key string) (string, error) {
		loads++
		return "v", nil
	}

	cache := NewSettingsCache(loader, time.Hour, nil)

	_, err := cache.Get("k")
	require.NoError(t, err)
	cache.Invalidate("k")
	_, err = cache.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestSettingsCacheLoaderErrorNotCached(t *testing.T) {
	calls := 0
	loader := func(key string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("store down")
		}
		return "recovered", nil
	}

	cache := NewSettingsCache(loader, time.Hour, nil)

	_, err := cache.Get("k")
	require.Error(t, err)

	value, err := cache.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
}
