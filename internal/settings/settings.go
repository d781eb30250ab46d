// Package settings loads and validates node settings.
//
// Settings come from an optional YAML file and LEDGERBRIDGE_* environment
// variables (LEDGERBRIDGE_KEY_DERIVATOR, LEDGERBRIDGE_WORKERS, ...), with
// environment values taking precedence.
package settings

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/keys"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEDGERBRIDGE"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPureGo   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid settings")

type Settings struct {
	ListenAddr        []string `mapstructure:"listen_addr" yaml:"listen_addr"`
	KnownNodes        []string `mapstructure:"known_nodes" yaml:"known_nodes"`
	KeyDerivator      string   `mapstructure:"key_derivator" yaml:"key_derivator"`
	PrivateKey        string   `mapstructure:"private_key" yaml:"private_key"`
	DigestDerivator   string   `mapstructure:"digest_derivator" yaml:"digest_derivator"`
	ReplicationFactor float64  `mapstructure:"replication_factor" yaml:"replication_factor"`
	// TimeoutMS bounds a single request to a known node.
	TimeoutMS int `mapstructure:"timeout" yaml:"timeout"`
	// Driver selects the storage backend; Database is its path or DSN.
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Database string `mapstructure:"database" yaml:"database"`
}

// Default returns settings without a private key.
func Default() Settings {
	return Settings{
		ListenAddr:        []string{"/ip4/0.0.0.0/tcp/40040"},
		KnownNodes:        []string{},
		KeyDerivator:      id.Ed25519.String(),
		DigestDerivator:   id.Blake2b256.String(),
		ReplicationFactor: 0.25,
		TimeoutMS:         3000,
		Driver:            DriverSQLite,
		Database:          "ledgerbridge.db",
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("known_nodes", d.KnownNodes)
	v.SetDefault("key_derivator", d.KeyDerivator)
	v.SetDefault("private_key", "")
	v.SetDefault("digest_derivator", d.DigestDerivator)
	v.SetDefault("replication_factor", d.ReplicationFactor)
	v.SetDefault("timeout", d.TimeoutMS)
	v.SetDefault("driver", d.Driver)
	v.SetDefault("database", d.Database)
}

// Load reads path (if not empty) and the environment, then validates.
func Load(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks every field and reports the first problem.
func (s Settings) Validate() error {
	for _, addr := range s.ListenAddr {
		if err := validateListenAddr(addr); err != nil {
			return invalid("listen_addr %q: %v", addr, err)
		}
	}
	for _, addr := range s.KnownNodes {
		if strings.TrimSpace(addr) == "" {
			return invalid("known_nodes contains an empty address")
		}
	}
	if _, err := id.ParseKeyAlg(s.KeyDerivator); err != nil {
		return invalid("key_derivator: %v", err)
	}
	if _, err := id.ParseDigestAlg(s.DigestDerivator); err != nil {
		return invalid("digest_derivator: %v", err)
	}
	if s.PrivateKey == "" {
		return invalid("private_key is required")
	}
	if _, err := s.KeyPair(); err != nil {
		return invalid("private_key: %v", err)
	}
	if s.ReplicationFactor <= 0 || s.ReplicationFactor > 1 {
		return invalid("replication_factor must be in (0, 1], got %v", s.ReplicationFactor)
	}
	if s.TimeoutMS <= 0 {
		return invalid("timeout must be positive, got %d", s.TimeoutMS)
	}
	switch s.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPureGo, DriverPostgres:
		if s.Database == "" {
			return invalid("database is required for driver %s", s.Driver)
		}
	default:
		return invalid("unknown driver %q", s.Driver)
	}
	return nil
}

// validateListenAddr accepts /ip4|ip6|dns4/<host>/tcp/<port>.
func validateListenAddr(addr string) error {
	parts := strings.Split(addr, "/")
	if len(parts) != 5 || parts[0] != "" || parts[3] != "tcp" {
		return errors.New("want /ip4|ip6|dns4/<host>/tcp/<port>")
	}
	host := parts[2]
	switch parts[1] {
	case "ip4":
		if ip := net.ParseIP(host); ip == nil || ip.To4() == nil {
			return fmt.Errorf("bad ip4 address %q", host)
		}
	case "ip6":
		if ip := net.ParseIP(host); ip == nil || ip.To4() != nil {
			return fmt.Errorf("bad ip6 address %q", host)
		}
	case "dns4":
		if host == "" {
			return errors.New("empty host")
		}
	default:
		return fmt.Errorf("unknown protocol %q", parts[1])
	}
	port, err := strconv.Atoi(parts[4])
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("bad port %q", parts[4])
	}
	return nil
}

// KeyAlg and DigestAlg assume Validate passed.
func (s Settings) KeyAlg() id.KeyAlg {
	alg, _ := id.ParseKeyAlg(s.KeyDerivator)
	return alg
}

func (s Settings) DigestAlg() id.DigestAlg {
	alg, _ := id.ParseDigestAlg(s.DigestDerivator)
	return alg
}

// KeyPair decodes the node key.
func (s Settings) KeyPair() (keys.KeyPair, error) {
	alg, err := id.ParseKeyAlg(s.KeyDerivator)
	if err != nil {
		return nil, err
	}
	return keys.FromSecretHex(alg, s.PrivateKey)
}

func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// GenerateKey returns a fresh hex-encoded secret for derivator.
func GenerateKey(derivator string) (string, error) {
	alg, err := id.ParseKeyAlg(derivator)
	if err != nil {
		return "", err
	}
	kp, err := keys.Generate(alg)
	if err != nil {
		return "", err
	}
	return kp.SecretHex(), nil
}
