// Package sftpops implements upload/download/list/delete operations over
// an already-authenticated SSH connection, each opening and releasing a
// scoped SFTP session and validating paths before touching the remote
// filesystem.
package sftpops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/opsguard/shellgate/internal/gwerrors"
	"github.com/opsguard/shellgate/internal/pathsec"
)

// protectedRemoteRoots can never be deleted, whole or as an ancestor of
// the deletion target.
var protectedRemoteRoots = map[string]bool{
	"/": true, "/home": true, "/root": true, "/etc": true,
	"/usr": true, "/var": true, "/bin": true, "/sbin": true,
}

var (
	wslMountRe = regexp.MustCompile(`^/mnt/([a-zA-Z])(/.*)?$`)
	wslUNCRe   = regexp.MustCompile(`^\\\\wsl(\.localhost)?\\[^\\]+\\(.*)$`)
)

// ValidateRemotePath requires an absolute Unix-style path.
func ValidateRemotePath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return gwerrors.NewPolicyError(gwerrors.SECPathNotAllowed,
			"remote path must be absolute", p, "Prefix the path with /.",
			"check_security_config", map[string]any{"remotePath": p})
	}
	return nil
}

// NormalizeLocalPath accepts a Windows drive-letter path, a UNC path, a
// WSL mount path, a WSL UNC path, or a Unix path, and normalizes it to a
// platform-native absolute form before allowlist containment is checked.
func NormalizeLocalPath(p string) (string, error) {
	if m := wslMountRe.FindStringSubmatch(p); m != nil {
		drive := strings.ToUpper(m[1])
		rest := m[2]
		return filepath.Clean(drive + ":" + strings.ReplaceAll(rest, "/", `\`)), nil
	}
	if m := wslUNCRe.FindStringSubmatch(p); m != nil {
		return filepath.Clean("/" + strings.ReplaceAll(m[2], `\`, "/")), nil
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	return "", fmt.Errorf("local path must be absolute: %q", p)
}

// Client wraps a scoped SFTP session lifecycle over an existing
// *ssh.Client. Each operation opens a fresh sftp.Client and always
// releases it, even on failure.
type Client struct {
	sshClient    *ssh.Client
	allowedPaths []string
	restrict     bool
}

// New builds an sftpops.Client over an authenticated ssh.Client.
func New(sshClient *ssh.Client, allowedPaths []string, restrict bool) *Client {
	return &Client{sshClient: sshClient, allowedPaths: allowedPaths, restrict: restrict}
}

func (c *Client) withSession(fn func(*sftp.Client) error) error {
	session, err := sftp.NewClient(c.sshClient)
	if err != nil {
		return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to open SFTP session", err.Error(), "")
	}
	defer session.Close()
	return fn(session)
}

func (c *Client) checkLocalAllowed(localPath string) (string, error) {
	normalized, err := NormalizeLocalPath(localPath)
	if err != nil {
		return "", gwerrors.NewPolicyError(gwerrors.SECPathNotAllowed, err.Error(), "", "",
			"check_security_config", map[string]any{"localPath": localPath})
	}
	if c.restrict {
		ok, err := pathsec.IsContained(normalized, c.allowedPaths)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", gwerrors.NewPolicyError(gwerrors.SECPathNotAllowed,
				"local path is not within an allowed directory", normalized, "",
				"check_security_config", map[string]any{"localPath": normalized})
		}
	}
	return normalized, nil
}

// Upload copies localPath to remotePath.
func (c *Client) Upload(localPath, remotePath string) error {
	if err := ValidateRemotePath(remotePath); err != nil {
		return err
	}
	local, err := c.checkLocalAllowed(localPath)
	if err != nil {
		return err
	}

	return c.withSession(func(session *sftp.Client) error {
		src, err := os.Open(local)
		if err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to open local file", err.Error(), "")
		}
		defer src.Close()

		dst, err := session.Create(remotePath)
		if err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to create remote file", err.Error(), "")
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "upload failed", err.Error(), "")
		}
		return nil
	})
}

// Download copies remotePath to localPath.
func (c *Client) Download(remotePath, localPath string) error {
	if err := ValidateRemotePath(remotePath); err != nil {
		return err
	}
	local, err := c.checkLocalAllowed(localPath)
	if err != nil {
		return err
	}

	return c.withSession(func(session *sftp.Client) error {
		src, err := session.Open(remotePath)
		if err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to open remote file", err.Error(), "")
		}
		defer src.Close()

		dst, err := os.Create(local)
		if err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to create local file", err.Error(), "")
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "download failed", err.Error(), "")
		}
		return nil
	})
}

// Entry is a single remote directory listing row.
type Entry struct {
	Name  string
	Size  int64
	IsDir bool
}

// List returns the entries of remoteDir.
func (c *Client) List(remoteDir string) ([]Entry, error) {
	if err := ValidateRemotePath(remoteDir); err != nil {
		return nil, err
	}

	var entries []Entry
	err := c.withSession(func(session *sftp.Client) error {
		infos, err := session.ReadDir(remoteDir)
		if err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to list remote directory", err.Error(), "")
		}
		for _, info := range infos {
			entries = append(entries, Entry{Name: info.Name(), Size: info.Size(), IsDir: info.IsDir()})
		}
		return nil
	})
	return entries, err
}

// Delete removes remotePath. isDirectory must match the server-reported
// entry type, and deleting a protected system root (or ancestor path) is
// always forbidden.
func (c *Client) Delete(remotePath string, isDirectory bool) error {
	if err := ValidateRemotePath(remotePath); err != nil {
		return err
	}
	clean := strings.TrimRight(remotePath, "/")
	if clean == "" {
		clean = "/"
	}
	if protectedRemoteRoots[clean] {
		return gwerrors.NewPolicyError(gwerrors.SECPathNotAllowed,
			"deletion of a protected system path is not permitted", clean, "",
			"check_security_config", map[string]any{"remotePath": clean})
	}

	return c.withSession(func(session *sftp.Client) error {
		info, err := session.Stat(remotePath)
		if err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to stat remote path", err.Error(), "")
		}
		if info.IsDir() != isDirectory {
			return gwerrors.NewPolicyError(gwerrors.SECPathNotAllowed,
				"isDirectory flag does not match the remote entry type", remotePath, "",
				"check_security_config", map[string]any{"remotePath": remotePath})
		}

		if isDirectory {
			if err := session.RemoveDirectory(remotePath); err != nil {
				return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to remove remote directory", err.Error(), "")
			}
			return nil
		}
		if err := session.Remove(remotePath); err != nil {
			return gwerrors.NewExecError(gwerrors.EXECSFTPOperation, "failed to remove remote file", err.Error(), "")
		}
		return nil
	})
}
