// Package constants holds shared tuning values for twinpane.
package constants

import "time"

// Application identity
const (
	// AppName is used for the config directory, log file and binary name.
	AppName = "twinpane"

	// ConfigFileName is the application config file inside the config directory.
	ConfigFileName = "twinpane.conf"

	// ProfilesFileName is the default connection profile store.
	ProfilesFileName = "profiles.ini"

	// LogFileName is the default rotating log file name.
	LogFileName = "twinpane.log"
)

// Transfer tuning
const (
	// ChunkSize - default size of one read/write step while streaming a file (32 KiB).
	// Matches the SFTP maximum packet payload, so one progress callback per
	// transport packet on the remote side.
	ChunkSize = 32 * 1024

	// MinChunkSize - smallest accepted chunk size (4 KiB).
	MinChunkSize = 4 * 1024

	// MaxChunkSize - largest accepted chunk size (4 MiB).
	MaxChunkSize = 4 * 1024 * 1024
)

// Browser defaults
const (
	// HiddenPrefix marks hidden entries (Unix dotfiles).
	HiddenPrefix = "."

	// RemoteRoot is the remote starting directory right after connect:
	// the login directory of the SFTP server.
	RemoteRoot = "."

	// ParentEntryName is the synthetic entry prepended to listings that have a parent.
	ParentEntryName = ".."
)

// SSH defaults
const (
	// DefaultSSHPort is used when neither profile nor flags name a port.
	DefaultSSHPort = 22

	// DialTimeout bounds TCP connect plus SSH handshake.
	DialTimeout = 30 * time.Second
)

// Event bus sizing
const (
	// EventBusDefaultBuffer - default per-subscriber channel size.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - upper bound for per-subscriber channel size.
	EventBusMaxBuffer = 10000
)

// Transfer coordinator
const (
	// TransferHistorySize - number of finished transfers kept for `history`.
	TransferHistorySize = 50
)
