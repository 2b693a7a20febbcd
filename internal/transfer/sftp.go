package transfer

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig holds the connection and directory settings for the provider's
// SFTP endpoint.
type SFTPConfig struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// UploadDir is the provider's inbound directory (batch archives go in);
	// DownloadDir is the provider's outbound directory (response files come
	// out).
	UploadDir   string
	DownloadDir string
}

// SFTPChannel implements Channel over an SFTP session.
type SFTPChannel struct {
	client      *sftp.Client
	conn        *ssh.Client
	uploadDir   string
	downloadDir string
}

var _ Channel = (*SFTPChannel)(nil)

func NewSFTPChannel(cfg SFTPConfig) (*SFTPChannel, error) {
	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sftp private key: %w", err)
	}

	sshConfig := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// The provider endpoint is reached over a private link; host key
		// pinning is handled at the network layer.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial sftp host %q: %w", addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start sftp session: %w", err)
	}

	return &SFTPChannel{
		client:      client,
		conn:        conn,
		uploadDir:   cfg.UploadDir,
		downloadDir: cfg.DownloadDir,
	}, nil
}

func (c *SFTPChannel) Send(ctx context.Context, filename string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stream into a temp name and rename once fully written, so the provider
	// can never pick up a half-uploaded archive under its final name.
	remote := path.Join(c.uploadDir, filename)
	partial := path.Join(c.uploadDir, PartialUploadName(filename))

	f, err := c.client.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create remote file %q: %w", partial, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = c.client.Remove(partial)
		return fmt.Errorf("failed to stream to remote file %q: %w", partial, err)
	}

	if err := f.Close(); err != nil {
		_ = c.client.Remove(partial)
		return fmt.Errorf("failed to close remote file %q: %w", partial, err)
	}

	if err := c.client.PosixRename(partial, remote); err != nil {
		_ = c.client.Remove(partial)
		return fmt.Errorf("failed to move remote file into place %q: %w", remote, err)
	}
	return nil
}

func (c *SFTPChannel) ListResponseFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := c.client.ReadDir(c.downloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list response directory %q: %w", c.downloadDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || IsClaimed(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

func (c *SFTPChannel) Claim(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	claimed := filename + ProcessingSuffix
	oldPath := path.Join(c.downloadDir, filename)
	newPath := path.Join(c.downloadDir, claimed)

	if err := c.client.Rename(oldPath, newPath); err != nil {
		return "", fmt.Errorf("failed to claim response file %q: %w", filename, err)
	}
	return claimed, nil
}

func (c *SFTPChannel) Fetch(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remote := path.Join(c.downloadDir, filename)
	f, err := c.client.Open(remote)
	if err != nil {
		return nil, fmt.Errorf("failed to open response file %q: %w", remote, err)
	}
	return f, nil
}

func (c *SFTPChannel) Remove(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	remote := path.Join(c.downloadDir, filename)
	if err := c.client.Remove(remote); err != nil {
		return fmt.Errorf("failed to remove response file %q: %w", remote, err)
	}
	return nil
}

func (c *SFTPChannel) Close() error {
	clientErr := c.client.Close()
	connErr := c.conn.Close()
	if clientErr != nil {
		return clientErr
	}
	return connErr
}
