//go:build darwin

package keystore

import (
	"errors"
	"fmt"

	keychain "github.com/keybase/go-keychain"
)

// Keychain stores items as generic passwords in the macOS Keychain under a
// single service name. Items are device-local and readable only while the
// device is unlocked.
type Keychain struct {
	service string
}

var _ Store = (*Keychain)(nil)

// NewKeychain returns a Keychain store using service as the item service.
func NewKeychain(service string) (*Keychain, error) {
	if service == "" {
		return nil, fmt.Errorf("keychain service is required")
	}
	return &Keychain{service: service}, nil
}

func (k *Keychain) Get(key string) (string, error) {
	data, err := keychain.GetGenericPassword(k.service, key, "", "")
	if errors.Is(err, keychain.ErrorItemNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read keychain item: %w", err)
	}
	if data == nil {
		return "", ErrNotFound
	}
	return string(data), nil
}

func (k *Keychain) Set(key, value string) error {
	item := keychain.NewGenericPassword(k.service, key, k.service, []byte(value), "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlockedThisDeviceOnly)

	err := keychain.AddItem(item)
	if errors.Is(err, keychain.ErrorDuplicateItem) {
		query := keychain.NewGenericPassword(k.service, key, "", nil, "")
		update := keychain.NewItem()
		update.SetData([]byte(value))
		if err := keychain.UpdateItem(query, update); err != nil {
			return fmt.Errorf("update keychain item: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("add keychain item: %w", err)
	}
	return nil
}

func (k *Keychain) Delete(key string) error {
	err := keychain.DeleteGenericPasswordItem(k.service, key)
	if err != nil && !errors.Is(err, keychain.ErrorItemNotFound) {
		return fmt.Errorf("delete keychain item: %w", err)
	}
	return nil
}
