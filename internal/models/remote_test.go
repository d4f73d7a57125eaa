package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteKey_IgnoresUser(t *testing.T) {
	a := Remote{User: "alice", Host: "web-1.internal", Port: 22}
	b := Remote{User: "bob", Host: "web-1.internal", Port: 22}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "web-1.internal:22", a.Key())
}

func TestParseTarget(t *testing.T) {
	cases := []struct {
		in   string
		want Target
	}{
		{"web-1", Target{Alias: "web-1"}},
		{"alice@web-1", Target{User: "alice", Alias: "web-1"}},
		{"web-1:2222", Target{Alias: "web-1", Port: 2222}},
		{"alice@web-1:2222", Target{User: "alice", Alias: "web-1", Port: 2222}},
	}
	for _, c := range cases {
		got, err := ParseTarget(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	for _, in := range []string{"", "alice@", "web-1:notaport"} {
		_, err := ParseTarget(in)
		assert.Error(t, err, in)
	}
}
