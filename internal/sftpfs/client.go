// Package sftpfs is the remote side of the dual-pane browser: a
// storage.Remote backed by github.com/pkg/sftp over an SSH session.
package sftpfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/logging"
	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/storage"
)

// Options configures a remote filesystem.
type Options struct {
	// Root is the remote root marker: the path the cursor starts at and
	// cannot ascend past when it is relative. Defaults to ".".
	Root string

	// KnownHostsFile verifies server host keys. Required unless
	// InsecureIgnoreHostKey is set.
	KnownHostsFile string

	// InsecureIgnoreHostKey accepts any host key.
	InsecureIgnoreHostKey bool

	// Timeout bounds TCP connect plus SSH handshake.
	Timeout time.Duration

	// ChunkSize is the streaming step for GetFile/PutFile.
	ChunkSize int

	Logger *logging.Logger
}

// Client implements storage.Remote. A Client owns at most one SSH session;
// Connect replaces any previous session.
type Client struct {
	opts   Options
	paths  Paths
	logger *logging.Logger

	mu   sync.RWMutex
	host string
	ssh  *ssh.Client
	sftp *sftp.Client
}

var (
	_ storage.Remote   = (*Client)(nil)
	_ storage.Resolver = (*Client)(nil)
)

// New returns a disconnected remote filesystem.
func New(opts Options) *Client {
	if opts.Root == "" {
		opts.Root = constants.RemoteRoot
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DialTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = constants.ChunkSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		opts:   opts,
		paths:  Paths{Root: path.Clean(opts.Root)},
		logger: logger.Component("sftp"),
	}
}

// NewFromClient wraps an already established SFTP session, for example one
// speaking over a pipe. Close closes the wrapped client.
func NewFromClient(c *sftp.Client, opts Options) *Client {
	r := New(opts)
	r.sftp = c
	r.host = "pipe"
	return r
}

// Side implements storage.Filesystem.
func (c *Client) Side() models.Side { return models.SideRemote }

// Paths implements storage.Filesystem.
func (c *Client) Paths() storage.PathRules { return c.paths }

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sftp != nil
}

// Host returns the host of the current session.
func (c *Client) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// Connect dials ep, authenticates with the password (also answering
// keyboard-interactive prompts with it) and opens the SFTP subsystem.
func (c *Client) Connect(ctx context.Context, ep storage.Endpoint) error {
	if ep.Host == "" {
		return &storage.ConnectionError{Err: errors.New("host is required")}
	}
	port := ep.Port
	if port == 0 {
		port = constants.DefaultSSHPort
	}
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(port))

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return &storage.ConnectionError{Host: addr, Err: err}
	}

	secret := ep.Secret
	config := &ssh.ClientConfig{
		User: ep.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(secret),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = secret
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.opts.Timeout,
	}

	c.logger.Debug().Str("addr", addr).Str("user", ep.User).Msg("Connecting")

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return &storage.ConnectionError{Host: addr, Err: err}
	}

	// The handshake itself is bounded by a deadline on the raw connection.
	_ = conn.SetDeadline(time.Now().Add(c.opts.Timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		if isAuthFailure(err) {
			return &storage.ConnectionError{Host: addr, Err: fmt.Errorf("%w: %v", storage.ErrAuth, err)}
		}
		return &storage.ConnectionError{Host: addr, Err: err}
	}
	_ = conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return &storage.ConnectionError{Host: addr, Err: fmt.Errorf("failed to start sftp subsystem: %w", err)}
	}

	c.mu.Lock()
	old, oldSSH := c.sftp, c.ssh
	c.sftp, c.ssh, c.host = sftpClient, sshClient, addr
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if oldSSH != nil {
		oldSSH.Close()
	}

	c.logger.Info().Str("addr", addr).Msg("Connected")
	return nil
}

func (c *Client) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.opts.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if c.opts.KnownHostsFile == "" {
		return nil, errors.New("no known_hosts file configured (use --insecure to skip host key checking)")
	}
	cb, err := knownhosts.New(c.opts.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return cb, nil
}

func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Close ends the session. Closing a disconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	s, sc := c.sftp, c.ssh
	c.sftp, c.ssh = nil, nil
	c.mu.Unlock()

	var err error
	if s != nil {
		err = s.Close()
	}
	if sc != nil {
		if cerr := sc.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Getwd returns the server-side login directory.
func (c *Client) Getwd() (string, error) {
	s, err := c.client()
	if err != nil {
		return "", err
	}
	wd, err := s.Getwd()
	return wd, c.mapErr("getwd", ".", err)
}

func (c *Client) client() (*sftp.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sftp == nil {
		return nil, &storage.ConnectionError{Err: storage.ErrNotConnected}
	}
	return c.sftp, nil
}

// mapErr classifies an sftp error. Server status codes (not found,
// permission denied, failure) are access errors; anything that looks like
// the transport going away is a connection error.
func (c *Client) mapErr(op, p string, err error) error {
	if err == nil {
		return nil
	}
	var status *sftp.StatusError
	var access *storage.AccessError
	switch {
	case errors.As(err, &access):
		// Already attributed, e.g. a local read failure during a put.
		return err
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission), errors.Is(err, os.ErrExist),
		errors.As(err, &status):
		return storage.NewAccessError(op, p, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), storage.IsNetworkError(err):
		c.logger.Warn().Err(err).Str("op", op).Str("path", p).Msg("Session error")
		return &storage.ConnectionError{Host: c.Host(), Err: err}
	}
	return storage.NewAccessError(op, p, err)
}
