package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ClientConfig)
		wantErr string
	}{
		{
			name:   "default config",
			mutate: func(c *ClientConfig) {},
		},
		{
			name:   "https url",
			mutate: func(c *ClientConfig) { c.RpcUrl = "https://rpc.example.org" },
		},
		{
			name:    "missing url",
			mutate:  func(c *ClientConfig) { c.RpcUrl = "" },
			wantErr: "rpcUrl: Required value",
		},
		{
			name:    "relative url",
			mutate:  func(c *ClientConfig) { c.RpcUrl = "localhost" },
			wantErr: "must be an absolute URL",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *ClientConfig) { c.RpcUrl = "ftp://localhost:8545" },
			wantErr: "rpcUrl.scheme: Unsupported value",
		},
		{
			name:    "negative rate",
			mutate:  func(c *ClientConfig) { c.RequestsPerSecond = -1 },
			wantErr: "requestsPerSecond",
		},
		{
			name:    "zero burst with throttling",
			mutate:  func(c *ClientConfig) { c.Burst = 0 },
			wantErr: "burst",
		},
		{
			name: "zero burst without throttling",
			mutate: func(c *ClientConfig) {
				c.RequestsPerSecond = 0
				c.Burst = 0
			},
		},
		{
			name: "badger with path",
			mutate: func(c *ClientConfig) {
				c.Persistence.Type = PersistenceTypeBadger
				c.Persistence.DataPath = "/var/lib/qv"
			},
		},
		{
			name:    "badger without path",
			mutate:  func(c *ClientConfig) { c.Persistence.Type = PersistenceTypeBadger },
			wantErr: "persistence.dataPath: Required value",
		},
		{
			name: "redis",
			mutate: func(c *ClientConfig) {
				c.Persistence.Type = PersistenceTypeRedis
				c.Persistence.Redis.Address = "localhost:6379"
			},
		},
		{
			name:    "redis without address",
			mutate:  func(c *ClientConfig) { c.Persistence.Type = PersistenceTypeRedis },
			wantErr: "persistence.redis.address: Required value",
		},
		{
			name: "redis db out of range",
			mutate: func(c *ClientConfig) {
				c.Persistence.Type = PersistenceTypeRedis
				c.Persistence.Redis.Address = "localhost:6379"
				c.Persistence.Redis.DB = 16
			},
			wantErr: "persistence.redis.db",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *ClientConfig) { c.Persistence.Type = "postgres" },
			wantErr: "persistence.type: Unsupported value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientConfig_Validate_AggregatesErrors(t *testing.T) {
	cfg := &ClientConfig{
		RequestsPerSecond: -1,
		Persistence:       PersistenceConfig{Type: PersistenceTypeBadger},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpcUrl")
	assert.Contains(t, err.Error(), "requestsPerSecond")
	assert.Contains(t, err.Error(), "persistence.dataPath")
}

func TestClientConfig_SupportsSubscriptions(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"ws://localhost:8545", true},
		{"wss://rpc.example.org", true},
		{"http://localhost:8545", false},
		{"https://rpc.example.org", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := &ClientConfig{RpcUrl: tt.url}
			assert.Equal(t, tt.want, cfg.SupportsSubscriptions())
		})
	}
}

func TestParsePersistenceType(t *testing.T) {
	for _, in := range []string{"memory", "Badger", " REDIS "} {
		_, err := ParsePersistenceType(in)
		assert.NoError(t, err, in)
	}

	p, err := ParsePersistenceType("badger")
	require.NoError(t, err)
	assert.Equal(t, PersistenceTypeBadger, p)

	_, err = ParsePersistenceType("sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory, badger, redis")
}
