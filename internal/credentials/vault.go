package credentials

import (
	"context"
	"errors"
	"fmt"
	"path"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/sapcc/f5agent/internal/config"
	"github.com/sapcc/f5agent/internal/observability"
)

// Default Vault settings.
const (
	// DefaultVaultMount is the default KV v2 mount for device secrets.
	DefaultVaultMount = "secret"
)

// ErrVaultDisabled indicates the Vault source is not enabled.
var ErrVaultDisabled = errors.New("credentials: vault source disabled")

// VaultSource resolves device principals from a Vault KV v2 mount so
// passphrases need not live in the agent configuration. Secrets are
// expected at <pathPrefix>/<device hostname> with "username" and
// "password" fields.
type VaultSource struct {
	api    *vaultapi.Client
	mount  string
	prefix string
	logger observability.Logger
}

// NewVaultSource creates a Vault-backed credential source.
func NewVaultSource(cfg *config.VaultOptions, logger observability.Logger) (*VaultSource, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrVaultDisabled
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, NewAuthError("vault_init", 0, err)
	}
	if cfg.Token != "" {
		api.SetToken(cfg.Token)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = DefaultVaultMount
	}

	return &VaultSource{
		api:    api,
		mount:  mount,
		prefix: cfg.PathPrefix,
		logger: logger.With(observability.String("component", "vault")),
	}, nil
}

// Lookup resolves the principal for a device hostname.
func (s *VaultSource) Lookup(ctx context.Context, host string) (username, password string, err error) {
	secretPath := path.Join(s.prefix, host)

	secret, err := s.api.KVv2(s.mount).Get(ctx, secretPath)
	if err != nil {
		return "", "", NewAuthError("vault_read", 0, fmt.Errorf("reading %s: %w", secretPath, err))
	}
	if secret == nil || secret.Data == nil {
		return "", "", NewAuthError("vault_read", 0, ErrNoCredentials)
	}

	username, _ = secret.Data["username"].(string)
	password, _ = secret.Data["password"].(string)
	if username == "" || password == "" {
		return "", "", NewAuthError("vault_read", 0, ErrNoCredentials)
	}

	s.logger.Debug("resolved device credentials",
		observability.String("path", secretPath),
	)
	return username, password, nil
}
