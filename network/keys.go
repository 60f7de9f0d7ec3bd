package network

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// EnsureKeyPair generates an ed25519 key pair at privPath and
// privPath+".pub" unless both files already exist. It reports whether
// a new pair was written.
func EnsureKeyPair(privPath, comment string) (bool, error) {
	_, privErr := os.Stat(privPath)
	_, pubErr := os.Stat(privPath + ".pub")
	if privErr == nil && pubErr == nil {
		return false, nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return false, fmt.Errorf("generate key pair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return false, fmt.Errorf("encode private key: %w", err)
	}
	if err := os.WriteFile(privPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return false, fmt.Errorf("write private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return false, fmt.Errorf("encode public key: %w", err)
	}
	line := strings.TrimRight(string(ssh.MarshalAuthorizedKey(sshPub)), "\n")
	if comment != "" {
		line += " " + comment
	}
	if err := os.WriteFile(privPath+".pub", []byte(line+"\n"), 0o644); err != nil {
		return false, fmt.Errorf("write public key: %w", err)
	}

	return true, nil
}

// AuthorizedKey returns the public key line for privPath, suitable for
// a cloud-init authorized_keys entry.
func AuthorizedKey(privPath string) (string, error) {
	data, err := os.ReadFile(privPath + ".pub")
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
