// Package sftptest runs an in-memory SFTP server for tests that need a
// remote side without a network.
package sftptest

import (
	"io"
	"testing"

	"github.com/pkg/sftp"

	"github.com/rescale/twinpane/internal/sftpfs"
)

// NewPipeClient starts an in-memory SFTP server and returns a raw client
// talking to it over a pair of pipes. Both ends are closed on test cleanup,
// and closing the client also stops the server.
func NewPipeClient(t testing.TB) *sftp.Client {
	t.Helper()

	cr, sw := io.Pipe()
	sr, cw := io.Pipe()

	server := sftp.NewRequestServer(struct {
		io.Reader
		io.WriteCloser
	}{sr, sw}, sftp.InMemHandler())
	go func() {
		// The client's receive loop only ends once the server's side of the
		// pipe closes.
		_ = server.Serve()
		sw.Close()
	}()

	client, err := sftp.NewClientPipe(cr, cw)
	if err != nil {
		server.Close()
		t.Fatalf("failed to start in-memory sftp client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		server.Close()
		sw.Close()
	})
	return client
}

// NewRemote returns a connected sftpfs.Client backed by an in-memory server.
// Paths on the in-memory server must be absolute.
func NewRemote(t testing.TB, opts sftpfs.Options) *sftpfs.Client {
	t.Helper()
	if opts.Root == "" {
		opts.Root = "/"
	}
	return sftpfs.NewFromClient(NewPipeClient(t), opts)
}
