package sshkey

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ed25519Key = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIGJqQvQCpGYMmgCeaFWbiMWmlJAHy+qXhhmZ2exm78Ti alice@example"

func TestParse(t *testing.T) {
	key, err := Parse(ed25519Key)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", key.Type())
	assert.Equal(t, "alice@example", key.Comment)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("not a key")
	assert.Error(t, err)
}

func TestFingerprint_Format(t *testing.T) {
	key, err := Parse(ed25519Key)
	require.NoError(t, err)

	// sixteen colon-separated hex octets
	assert.Regexp(t, regexp.MustCompile(`^([0-9a-f]{2}:){15}[0-9a-f]{2}$`), key.Fingerprint())
}

func TestString_RoundTrip(t *testing.T) {
	key, err := Parse(ed25519Key)
	require.NoError(t, err)
	assert.Equal(t, ed25519Key, key.String())

	again, err := Parse(key.String())
	require.NoError(t, err)
	assert.True(t, key.Equal(again))
}

func TestEqual_IgnoresComment(t *testing.T) {
	a, err := Parse(ed25519Key)
	require.NoError(t, err)
	b, err := Parse(ed25519Key)
	require.NoError(t, err)
	b.Comment = "other@example"
	assert.True(t, a.Equal(b))
}
