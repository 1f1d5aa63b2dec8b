package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds an SSH key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the private key in PEM-encoded OpenSSH format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// Generate creates a new ed25519 key pair.
func Generate() (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "clusterscaler")
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	return FromPrivateKey(pem.EncodeToMemory(block))
}

// FromPrivateKey derives the public half of a PEM-encoded private key.
func FromPrivateKey(privateKey []byte) (*KeyPair, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &KeyPair{
		PrivateKey: privateKey,
		PublicKey:  ssh.MarshalAuthorizedKey(signer.PublicKey()),
	}, nil
}

// LoadOrGenerate reads the private key at path. If the file does not exist
// a new key pair is generated and written there with mode 0600. The bool
// result reports whether a key was generated.
func LoadOrGenerate(path string) (*KeyPair, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err == nil {
		kp, err := FromPrivateKey(data)
		return kp, false, err
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to read key %s: %w", path, err)
	}

	kp, err := Generate()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, false, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, kp.PrivateKey, 0o600); err != nil {
		return nil, false, fmt.Errorf("failed to write key %s: %w", path, err)
	}
	return kp, true, nil
}
