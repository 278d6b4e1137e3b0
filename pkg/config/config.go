package config

import (
	"fmt"
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the verifier client configuration
const (
	EnvQVRPCURL            = "QV_RPC_URL"
	EnvQVPersistenceType   = "QV_PERSISTENCE_TYPE"
	EnvQVDataPath          = "QV_DATA_PATH"
	EnvQVRedisAddress      = "QV_REDIS_ADDRESS"
	EnvQVRedisPassword     = "QV_REDIS_PASSWORD"
	EnvQVRedisDB           = "QV_REDIS_DB"
	EnvQVRedisKeyPrefix    = "QV_REDIS_KEY_PREFIX"
	EnvQVRequestsPerSecond = "QV_REQUESTS_PER_SECOND"
	EnvQVBurst             = "QV_BURST"
	EnvQVVerbose           = "QV_VERBOSE"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// GetSupportedPersistenceTypes returns all trust store backends
func GetSupportedPersistenceTypes() []PersistenceType {
	return []PersistenceType{
		PersistenceTypeMemory,
		PersistenceTypeBadger,
		PersistenceTypeRedis,
	}
}

// GetSupportedPersistenceTypesString returns supported backends for CLI help
func GetSupportedPersistenceTypesString() string {
	names := make([]string, 0, 3)
	for _, p := range GetSupportedPersistenceTypes() {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}

var supportedRPCSchemes = []string{"http", "https", "ws", "wss"}

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

type PersistenceConfig struct {
	Type     PersistenceType `json:"type" yaml:"type"`
	DataPath string          `json:"dataPath" yaml:"dataPath"` // badger only
	Redis    RedisConfig     `json:"redis" yaml:"redis"`
}

// ClientConfig is everything needed to build a verifier client
type ClientConfig struct {
	RpcUrl string `json:"rpcUrl" yaml:"rpcUrl"`

	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`

	// Query throttling; zero RequestsPerSecond disables it
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `json:"burst" yaml:"burst"`

	Debug   bool `json:"debug" yaml:"debug"`
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DefaultClientConfig returns a config for a local node with an in-memory
// trust store.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		RpcUrl: "ws://localhost:8545",
		Persistence: PersistenceConfig{
			Type: PersistenceTypeMemory,
		},
		RequestsPerSecond: 20,
		Burst:             5,
	}
}

// SupportsSubscriptions reports whether the RPC URL uses a transport that can
// carry subscriptions.
func (c *ClientConfig) SupportsSubscriptions() bool {
	u, err := url.Parse(c.RpcUrl)
	if err != nil {
		return false
	}
	return u.Scheme == "ws" || u.Scheme == "wss"
}

// Validate validates the client configuration
func (c *ClientConfig) Validate() error {
	var allErrors field.ErrorList

	rpcPath := field.NewPath("rpcUrl")
	if c.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(rpcPath, "rpcUrl is required"))
	} else if u, err := url.Parse(c.RpcUrl); err != nil || u.Host == "" {
		allErrors = append(allErrors, field.Invalid(rpcPath, c.RpcUrl, "must be an absolute URL"))
	} else if !contains(supportedRPCSchemes, u.Scheme) {
		allErrors = append(allErrors, field.NotSupported(rpcPath.Child("scheme"), u.Scheme, supportedRPCSchemes))
	}

	if c.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), c.RequestsPerSecond, "must not be negative"))
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("burst"), c.Burst, "must be at least 1 when throttling is enabled"))
	}

	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (p *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch p.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if p.DataPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataPath"), "dataPath is required for badger"))
		}
	case PersistenceTypeRedis:
		if p.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(path.Child("redis", "address"), "address is required for redis"))
		}
		if p.Redis.DB < 0 || p.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redis", "db"), p.Redis.DB, "must be between 0-15"))
		}
	default:
		supported := make([]string, 0, 3)
		for _, t := range GetSupportedPersistenceTypes() {
			supported = append(supported, t.String())
		}
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), p.Type.String(), supported))
	}
	return allErrors
}

// ParsePersistenceType accepts a backend name in any case.
func ParsePersistenceType(s string) (PersistenceType, error) {
	t := PersistenceType(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range GetSupportedPersistenceTypes() {
		if t == supported {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported persistence type %q, supported: %s", s, GetSupportedPersistenceTypesString())
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
