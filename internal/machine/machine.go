// Package machine loads and expands the machines.yml fleet configuration.
package machine

import (
	"github.com/choudarykvsp/ferry/internal/transport"
)

// Config represents the top-level machines.yml structure.
type Config struct {
	Machines []Entry     `yaml:"machines"`
	SSH      SSHSettings `yaml:"ssh"`
}

// Entry is a single entry in machines.yml (either name or pattern).
type Entry struct {
	Name    string `yaml:"name,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
	User    string `yaml:"user,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// SSHSettings holds fleet-wide SSH connection parameters.
type SSHSettings struct {
	ProxyJump       string `yaml:"proxy_jump,omitempty"`
	ConnectTimeout  int    `yaml:"connect_timeout,omitempty"` // seconds, default 10
	KnownHosts      string `yaml:"known_hosts,omitempty"`
	InsecureHostKey bool   `yaml:"insecure_host_key,omitempty"`
}

// Machine is an expanded, resolved machine ready to connect to.
type Machine struct {
	Name string `json:"name"`
	User string `json:"user,omitempty"`
	Port int    `json:"port,omitempty"`
}

// SSHOptions combines a machine with the fleet SSH settings into
// transport options.
func (m Machine) SSHOptions(s SSHSettings) transport.SSHOptions {
	return transport.SSHOptions{
		Host:            m.Name,
		Port:            m.Port,
		User:            m.User,
		ProxyJump:       s.ProxyJump,
		ConnectTimeout:  s.ConnectTimeout,
		KnownHosts:      s.KnownHosts,
		InsecureHostKey: s.InsecureHostKey,
	}
}
