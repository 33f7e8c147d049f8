package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrNoKeys      = errors.New("no verification keys loaded")
)

// KeyProvider resolves RSA public keys by key id.
type KeyProvider interface {
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
}

// DirKeyProvider holds public keys read from PEM files in a directory. The
// key id is the file name without its extension. Private keys are accepted
// and reduced to their public half.
type DirKeyProvider struct {
	keys map[string]*rsa.PublicKey
}

// NewDirKeyProvider loads every PEM file in keyDir.
func NewDirKeyProvider(keyDir string) (*DirKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
		}

		key, err := ParseRSAPublicKeyPEM(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", path, err)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		keys[kid] = key
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoKeys, keyDir)
	}

	return &DirKeyProvider{keys: keys}, nil
}

// NewStaticKeyProvider wraps an in-memory key set.
func NewStaticKeyProvider(keys map[string]*rsa.PublicKey) *DirKeyProvider {
	copied := make(map[string]*rsa.PublicKey, len(keys))
	for kid, key := range keys {
		copied[kid] = key
	}
	return &DirKeyProvider{keys: copied}
}

// GetVerificationKey returns the key registered under kid. A token without a
// kid is accepted only when exactly one key is loaded.
func (p *DirKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		if len(p.keys) == 1 {
			for _, key := range p.keys {
				return key, nil
			}
		}
		return nil, fmt.Errorf("%w: token has no kid", ErrKeyNotFound)
	}

	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// KeyIDs lists the loaded key ids.
func (p *DirKeyProvider) KeyIDs() []string {
	ids := make([]string, 0, len(p.keys))
	for kid := range p.keys {
		ids = append(ids, kid)
	}
	return ids
}

// ParseRSAPublicKeyPEM decodes a PKCS#1 or PKCS#8 private key, or a PKCS#1
// or PKIX public key, and returns the RSA public key.
func ParseRSAPublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &key.PublicKey, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return &rsaKey.PublicKey, nil
		}
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("unsupported public key type %T", key)
	}

	return nil, errors.New("unrecognised key encoding")
}
