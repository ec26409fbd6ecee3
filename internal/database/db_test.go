package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPoolConfigKeepsDefaultsForUnsetKnobs(t *testing.T) {
	cfg := Config{
		Host:     "localhost",
		Port:     5432,
		User:     "flipscan",
		Password: "secret",
		Database: "flipscan",
		MaxConns: 10,
	}

	poolConfig, err := buildPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(10), poolConfig.MaxConns)
	assert.Positive(t, poolConfig.MaxConnLifetime, "unset lifetime must keep the pool default, not zero")
	assert.Positive(t, poolConfig.MaxConnIdleTime, "unset idle time must keep the pool default, not zero")
}

func TestBuildPoolConfigAppliesSetKnobs(t *testing.T) {
	cfg := Config{
		Host:        "localhost",
		Port:        5432,
		User:        "flipscan",
		Password:    "secret",
		Database:    "flipscan",
		MaxConns:    20,
		MinConns:    4,
		MaxConnLife: 2 * time.Hour,
		MaxConnIdle: 15 * time.Minute,
	}

	poolConfig, err := buildPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(20), poolConfig.MaxConns)
	assert.Equal(t, int32(4), poolConfig.MinConns)
	assert.Equal(t, 2*time.Hour, poolConfig.MaxConnLifetime)
	assert.Equal(t, 15*time.Minute, poolConfig.MaxConnIdleTime)
}
