package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// Remote identifies the SSH endpoint behind an authorized alias.
type Remote struct {
	User string `json:"user"` // login name on the remote
	Host string `json:"host"` // hostname or IP address
	Port int    `json:"port"` // SSH port on the remote
}

// Key returns the identity used for local port mapping. The login user does
// not affect which local port is reused.
func (r Remote) Key() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// String renders the remote as user@host:port.
func (r Remote) String() string {
	return fmt.Sprintf("%s@%s:%d", r.User, r.Host, r.Port)
}

// targetPattern matches remote references of the form [user@]alias[:port].
var targetPattern = regexp.MustCompile(`^(?:(?P<user>[^@]+)@)?(?P<host>[^:]+)(?::(?P<port>\d+))?$`)

// Target is a user-supplied remote reference. Alias names the remote on the
// server; User, when set, overrides the login name the server reports.
type Target struct {
	User  string
	Alias string
	Port  int
}

// ParseTarget parses a [user@]alias[:port] reference.
func ParseTarget(s string) (Target, error) {
	m := targetPattern.FindStringSubmatch(s)
	if m == nil {
		return Target{}, fmt.Errorf("invalid remote format: %q", s)
	}
	target := Target{
		User:  m[targetPattern.SubexpIndex("user")],
		Alias: m[targetPattern.SubexpIndex("host")],
	}
	if p := m[targetPattern.SubexpIndex("port")]; p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Target{}, fmt.Errorf("invalid remote format: %q", s)
		}
		target.Port = port
	}
	return target, nil
}
