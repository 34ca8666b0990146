package policy

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Git auth types.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// GitAuth configures repository authentication.
type GitAuth struct {
	// Type is none, token or ssh. Empty means none.
	Type string `yaml:"type"`

	// Token is a personal access token used as the HTTPS basic auth
	// password.
	Token string `yaml:"token"`

	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// Method returns the go-git auth method for a. A nil method means anonymous
// access.
func (a GitAuth) Method() (transport.AuthMethod, error) {
	switch a.Type {
	case AuthNone, "":
		return nil, nil

	case AuthToken:
		if a.Token == "" {
			return nil, fmt.Errorf("token auth requires a non-empty token")
		}
		return &http.BasicAuth{Username: "git", Password: a.Token}, nil

	case AuthSSH:
		if a.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(a.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
		}
		auth, err := ssh.NewPublicKeysFromFile("git", a.SSHKeyPath, a.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil
	}
	return nil, fmt.Errorf("unknown auth type: %s", a.Type)
}
