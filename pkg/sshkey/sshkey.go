package sshkey

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// PublicKey is a single OpenSSH authorized_keys entry. The comment does not
// take part in equality; two keys are the same when their wire forms match.
type PublicKey struct {
	key     ssh.PublicKey
	Comment string
}

// Parse reads one line of an authorized_keys list.
func Parse(line string) (*PublicKey, error) {
	key, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(line)))
	if err != nil {
		return nil, fmt.Errorf("invalid public key line: %w", err)
	}
	return &PublicKey{key: key, Comment: comment}, nil
}

// Type returns the key algorithm name, e.g. "ssh-ed25519".
func (k *PublicKey) Type() string {
	return k.key.Type()
}

// Fingerprint returns the hex MD5 fingerprint with colon separators, the
// format the Geofront server uses to identify keys.
func (k *PublicKey) Fingerprint() string {
	return ssh.FingerprintLegacyMD5(k.key)
}

// String renders the key back into authorized_keys format.
func (k *PublicKey) String() string {
	line := strings.TrimRight(string(ssh.MarshalAuthorizedKey(k.key)), "\n")
	if k.Comment != "" {
		line += " " + k.Comment
	}
	return line
}

// Equal reports whether both keys have the same algorithm and material.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if other == nil {
		return false
	}
	return k.key.Type() == other.key.Type() &&
		string(k.key.Marshal()) == string(other.key.Marshal())
}
