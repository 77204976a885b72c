package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.EqualValues(t, 32*1024, cfg.ChunkSize)
	assert.EqualValues(t, 16*1024*1024, cfg.EncryptedChunkSize)
	assert.EqualValues(t, 5*1024*1024, cfg.CacheSize)
	assert.Equal(t, "FIF_PSK", cfg.PSKEnvVar)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("FIF_CHUNK_SIZE", "4096")
	cfg, err := Load()
	require.NoError(t, err)
	assert.EqualValues(t, 4096, cfg.ChunkSize)
}
