package provider

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidscribe/vidscribe/internal/config"
)

type fakeBackend struct {
	name string
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*fakeBackend]()
	reg.Register("local", func(cfg *config.Config) (*fakeBackend, error) {
		return &fakeBackend{name: "local"}, nil
	})

	got, err := reg.Create("local", config.Default())
	require.NoError(t, err)
	assert.Equal(t, "local", got.name)

	// A fresh instance is built per Create call.
	again, err := reg.Create("local", config.Default())
	require.NoError(t, err)
	assert.NotSame(t, got, again)
}

func TestRegistryCreateUnknown(t *testing.T) {
	reg := NewRegistry[*fakeBackend]()
	reg.Register("local", func(cfg *config.Config) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})

	_, err := reg.Create("gcs", config.Default())
	require.Error(t, err)

	var unknown *UnknownProviderError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "gcs", unknown.Name)
	assert.Equal(t, []string{"local"}, unknown.Registered)
}

func TestRegistryReRegisterOverwrites(t *testing.T) {
	reg := NewRegistry[*fakeBackend]()
	reg.Register("s3", func(cfg *config.Config) (*fakeBackend, error) {
		return &fakeBackend{name: "old"}, nil
	})
	reg.Register("s3", func(cfg *config.Config) (*fakeBackend, error) {
		return &fakeBackend{name: "new"}, nil
	})

	got, err := reg.Create("s3", config.Default())
	require.NoError(t, err)
	assert.Equal(t, "new", got.name)
	assert.Len(t, reg.Names(), 1)
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry[*fakeBackend]()
	for _, name := range []string{"whisper", "fastwhisper", "huggingface"} {
		reg.Register(name, func(cfg *config.Config) (*fakeBackend, error) {
			return &fakeBackend{}, nil
		})
	}
	assert.Equal(t, []string{"fastwhisper", "huggingface", "whisper"}, reg.Names())
}

func TestRegistryConcurrentFirstAccess(t *testing.T) {
	reg := NewRegistry[*fakeBackend]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register("local", func(cfg *config.Config) (*fakeBackend, error) {
				return &fakeBackend{name: "local"}, nil
			})
		}()
		go func() {
			defer wg.Done()
			if reg.Has("local") {
				_, _ = reg.Create("local", nil)
			}
		}()
	}
	wg.Wait()

	assert.True(t, reg.Has("local"))
}

func TestRegistryConstructorError(t *testing.T) {
	boom := errors.New("credentials missing")
	reg := NewRegistry[*fakeBackend]()
	reg.Register("s3", func(cfg *config.Config) (*fakeBackend, error) {
		return nil, boom
	})

	_, err := reg.Create("s3", config.Default())
	assert.ErrorIs(t, err, boom)
}
