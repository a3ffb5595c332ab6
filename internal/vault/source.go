package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/placegw/internal/observability"
)

// DefaultTimeout bounds a single read from Vault.
const DefaultTimeout = 10 * time.Second

// SecretSource resolves the token signing secret.
type SecretSource interface {
	Secret(ctx context.Context) ([]byte, error)
}

// KVConfig locates a secret in a KV v2 engine.
type KVConfig struct {
	Address string
	Token   string
	Mount   string
	Path    string
	Key     string
	Timeout time.Duration
}

// NewSecretSource returns a literal source when literal is set, and a KV
// source otherwise.
func NewSecretSource(literal string, kv KVConfig, logger observability.Logger) (SecretSource, error) {
	if literal != "" {
		return Literal(literal), nil
	}
	return NewKVSource(kv, logger)
}

// Literal is a secret given directly in configuration.
type Literal string

// Secret returns the literal bytes.
func (l Literal) Secret(_ context.Context) ([]byte, error) {
	if l == "" {
		return nil, ErrEmptySecret
	}
	return []byte(l), nil
}

// KVSource reads a secret field from a KV v2 engine.
type KVSource struct {
	client *vaultapi.Client
	config KVConfig
	logger observability.Logger
}

// NewKVSource creates a KV v2 source. It does not contact Vault.
func NewKVSource(cfg KVConfig, logger observability.Logger) (*KVSource, error) {
	if cfg.Path == "" || cfg.Key == "" {
		return nil, NewVaultError("configure", cfg.Path, fmt.Errorf("%w: path and key are required", ErrInvalidConfig))
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, NewVaultError("configure", "", apiConfig.Error)
	}
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	apiConfig.Timeout = cfg.Timeout
	apiConfig.MaxRetries = 0

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, NewVaultError("configure", "", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &KVSource{client: client, config: cfg, logger: logger}, nil
}

// Secret reads the configured key from the latest version of the secret.
func (s *KVSource) Secret(ctx context.Context) ([]byte, error) {
	fullPath := joinPath(s.config.Mount, "data", s.config.Path)
	s.logger.Debug("reading signing secret from vault", observability.String("path", fullPath))

	secret, err := s.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, NewVaultError("read", fullPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, NewVaultError("read", fullPath, ErrSecretNotFound)
	}

	// KV v2 wraps the fields in "data"; a deleted version has data: null.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, NewVaultError("read", fullPath, ErrSecretNotFound)
	}

	raw, ok := data[s.config.Key]
	if !ok {
		return nil, NewVaultError("read", fullPath, fmt.Errorf("%w: key %q", ErrSecretNotFound, s.config.Key))
	}
	value, ok := raw.(string)
	if !ok {
		return nil, NewVaultError("read", fullPath, fmt.Errorf("key %q is not a string", s.config.Key))
	}
	if value == "" {
		return nil, NewVaultError("read", fullPath, ErrEmptySecret)
	}

	s.logger.Info("signing secret loaded from vault", observability.String("path", fullPath))
	return []byte(value), nil
}

func joinPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, strings.Trim(p, "/"))
		}
	}
	return strings.Join(nonEmpty, "/")
}
