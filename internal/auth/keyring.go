package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gmbtravels/gmbservice/pkg"
)

var ErrUnknownKey = errors.New("unknown signing key")

// Keyring holds the signing secrets by key id. New tokens are signed with the active key,
// older tokens stay valid for as long as their key id is kept in the ring.
type Keyring struct {
	activeKID string
	keys      map[string][]byte
}

func NewKeyring(activeKID, activeSecret string, previous map[string]string) (*Keyring, error) {
	if activeKID == "" {
		return nil, errors.New("active key id not set")
	}
	if activeSecret == "" {
		return nil, errors.New("active secret not set")
	}

	keys := map[string][]byte{activeKID: []byte(activeSecret)}
	for kid, secret := range previous {
		if kid == activeKID {
			return nil, fmt.Errorf("previous key id [%s] collides with the active one", kid)
		}
		if secret == "" {
			return nil, fmt.Errorf("empty secret for key id [%s]", kid)
		}
		keys[kid] = []byte(secret)
	}

	return &Keyring{
		activeKID: activeKID,
		keys:      keys,
	}, nil
}

// ParsePreviousKeys parses "kid1:secret1,kid2:secret2".
func ParsePreviousKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	for _, pair := range pkg.SplitAndTrim(raw) {
		kid, secret, ok := strings.Cut(pair, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid previous key entry [%s], expected kid:secret", pair)
		}
		keys[kid] = secret
	}
	return keys, nil
}

func (k *Keyring) Active() (string, []byte) {
	return k.activeKID, k.keys[k.activeKID]
}

func (k *Keyring) Lookup(kid string) ([]byte, error) {
	key, ok := k.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}
	return key, nil
}
