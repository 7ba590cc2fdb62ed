package config

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMinimal(t *testing.T) {
	id := uuid.New().String()
	t.Setenv(envUserIDs, id)
	t.Setenv(envFallback, "")
	t.Setenv(envSOCKS5, "")
	t.Setenv(envSOCKS5RelayAll, "")
	t.Setenv(envDoHURL, "")
	t.Setenv(envListenAddr, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.AcceptedUsers.Len())
	assert.Equal(t, ":8443", cfg.ListenAddr)
	assert.Nil(t, cfg.SOCKS5)
	assert.False(t, cfg.SOCKS5RelayAll)
}

func TestLoadWithSOCKS5Credentials(t *testing.T) {
	t.Setenv(envUserIDs, uuid.New().String())
	t.Setenv(envSOCKS5, "alice:hunter2@proxy.example:1080")
	t.Setenv(envSOCKS5RelayAll, "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.SOCKS5)
	assert.Equal(t, "proxy.example:1080", cfg.SOCKS5.Address)
	assert.Equal(t, "alice", cfg.SOCKS5.Username)
	assert.Equal(t, "hunter2", cfg.SOCKS5.Password)
	assert.True(t, cfg.SOCKS5RelayAll)
}

func TestLoadMissingUserIDsFails(t *testing.T) {
	t.Setenv(envUserIDs, "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRelayAllWithoutSOCKS5Fails(t *testing.T) {
	t.Setenv(envUserIDs, uuid.New().String())
	t.Setenv(envSOCKS5, "")
	t.Setenv(envSOCKS5RelayAll, "true")
	_, err := Load()
	require.Error(t, err)
}
