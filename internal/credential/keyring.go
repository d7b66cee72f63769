package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const (
	serviceName = "vacationd"
	tokenKey    = "gmail-oauth-token"
)

// OpenKeyring returns the system keyring, falling back to an encrypted file
// under fileDir when no desktop secret service is available.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("vacationd-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore keeps the token in a keyring item.
type KeyringStore struct {
	Ring keyring.Keyring
	Key  string
}

// NewKeyringStore stores under the default item key.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{Ring: ring, Key: tokenKey}
}

func (k *KeyringStore) Load() (*oauth2.Token, error) {
	item, err := k.Ring.Get(k.Key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", k.Key, err)
	}
	return decode(item.Data)
}

func (k *KeyringStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	err = k.Ring.Set(keyring.Item{
		Key:         k.Key,
		Data:        data,
		Label:       "vacationd Gmail token",
		Description: "OAuth token for the Gmail vacation responder",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", k.Key, err)
	}
	return nil
}
