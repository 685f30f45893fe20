package providers

import (
	"errors"
	"jobstreak/internal/structures"
	"strings"

	"github.com/zalando/go-keyring"
)

// SecretsProviderInterface resolves credentials from the OS keychain, falling back
// to the value found in the config file.
type SecretsProviderInterface interface {
	Lookup(name, fallback string) string
	Store(name, value string) error
}

type KeyringSecrets struct {
	service string
	account string
	logger  Logger
}

func NewSecretsProvider(conf *structures.Config, logger Logger) SecretsProviderInterface {
	if strings.TrimSpace(conf.Remote.KeyringService) == "" {
		return &configSecrets{}
	}
	account := conf.Remote.KeyringAccount
	if account == "" {
		account = strings.ToLower(conf.AppName)
	}
	return &KeyringSecrets{service: conf.Remote.KeyringService, account: account, logger: logger}
}

func (k *KeyringSecrets) key(name string) string {
	return k.account + ":" + name
}

func (k *KeyringSecrets) Lookup(name, fallback string) string {
	v, err := keyring.Get(k.service, k.key(name))
	if err == nil && strings.TrimSpace(v) != "" {
		return v
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		k.logger.Warnf(TypeApp, "keyring lookup for %s failed: %v", name, err)
	}
	return fallback
}

func (k *KeyringSecrets) Store(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(k.service, k.key(name), value)
}

type configSecrets struct{}

func (c *configSecrets) Lookup(_ string, fallback string) string { return fallback }
func (c *configSecrets) Store(_, _ string) error {
	return errors.New("keyring is not configured")
}
