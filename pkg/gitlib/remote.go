package gitlib

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNoRemoteConfigured is returned when a repository has no remotes to
// fetch from.
var ErrNoRemoteConfigured = errors.New("no remote configured")

// defaultRemoteName is the conventional name git assigns to a clone's
// upstream; used as the first guess before falling back to whatever remote
// happens to be configured.
const defaultRemoteName = "origin"

// FetchDefaultRemote fetches every branch and tag from the repository's
// "origin" remote (or, if absent, the first configured remote), for
// recovering an object referenced locally but not yet present in the
// object database. Returns an error if no remote is configured or the
// transfer itself fails; the caller decides whether that's fatal.
func (r *Repository) FetchDefaultRemote() error {
	name, err := r.defaultRemoteName()
	if err != nil {
		return err
	}

	remote, err := r.repo.Remotes.Lookup(name)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", name, err)
	}
	defer remote.Free()

	opts := &git2go.FetchOptions{
		RemoteCallbacks: git2go.RemoteCallbacks{
			CredentialsCallback:      fetchCredentials,
			CertificateCheckCallback: requireValidCertificate,
		},
	}

	if err := remote.Fetch(nil, opts, "fetch missing object"); err != nil {
		return fmt.Errorf("fetch from %s: %w", name, err)
	}

	return nil
}

func (r *Repository) defaultRemoteName() (string, error) {
	names, err := r.repo.Remotes.List()
	if err != nil {
		return "", fmt.Errorf("list remotes: %w", err)
	}

	if len(names) == 0 {
		return "", ErrNoRemoteConfigured
	}

	for _, name := range names {
		if name == defaultRemoteName {
			return name, nil
		}
	}

	return names[0], nil
}

// fetchCredentials prefers an ssh-agent identity, falling back to whatever
// credential helper / netrc entry the git configuration already resolves.
func fetchCredentials(_, username string, allowedTypes git2go.CredentialType) (*git2go.Credential, error) {
	if allowedTypes&git2go.CredentialTypeSSHKey != 0 {
		if cred, err := git2go.NewCredentialSSHKeyFromAgent(username); err == nil {
			return cred, nil
		}
	}

	return git2go.NewCredentialDefault()
}

// requireValidCertificate defers to libgit2's own TLS/SSH host verification,
// rejecting the fetch outright when it reports the certificate as invalid
// rather than silently downgrading to an unverified transfer.
func requireValidCertificate(_ *git2go.Certificate, valid bool, hostname string) error {
	if valid {
		return nil
	}

	return fmt.Errorf("certificate validation failed for %s", hostname)
}
