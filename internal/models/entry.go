// Package models defines the data shapes shared by the browser and transfer code.
package models

import (
	"io/fs"
	"strings"
	"time"
)

// Side identifies one of the two filesystems a pane can show.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLocal {
		return SideRemote
	}
	return SideLocal
}

// Direction says which way a transfer moves bytes.
type Direction string

const (
	DirectionUpload   Direction = "upload"   // local -> remote
	DirectionDownload Direction = "download" // remote -> local

	// Same-side copies happen when an entry is dropped back onto its own pane.
	DirectionLocalCopy  Direction = "local-copy"
	DirectionRemoteCopy Direction = "remote-copy"
)

// Source returns the side the bytes are read from.
func (d Direction) Source() Side {
	switch d {
	case DirectionDownload, DirectionRemoteCopy:
		return SideRemote
	default:
		return SideLocal
	}
}

// Dest returns the side the bytes are written to.
func (d Direction) Dest() Side {
	switch d {
	case DirectionUpload, DirectionRemoteCopy:
		return SideRemote
	default:
		return SideLocal
	}
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUpload, DirectionDownload, DirectionLocalCopy, DirectionRemoteCopy:
		return true
	}
	return false
}

// Entry is a snapshot of one filesystem object inside a directory listing.
// Identity is (containing path, Name); an Entry goes stale as soon as the
// directory changes.
type Entry struct {
	Name    string      // Base name, never contains a separator
	IsDir   bool        // True for directories (symlinks are resolved where the side allows)
	Size    int64       // Bytes, only meaningful for files
	ModTime time.Time   // Last modification time
	Mode    fs.FileMode // Permission bits as reported by the side
	Link    bool        // Reached through a symbolic link; the other fields describe the target
}

// EntryFromFileInfo converts an fs.FileInfo (os.Stat, sftp.Stat) into an Entry.
func EntryFromFileInfo(info fs.FileInfo) Entry {
	e := Entry{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Mode:    info.Mode(),
	}
	if !e.IsDir {
		e.Size = info.Size()
	}
	return e
}

// IsParent reports whether e is the synthetic ".." entry.
func (e Entry) IsParent() bool {
	return e.Name == ".."
}

// IsHiddenName reports whether name starts with the hidden marker.
// "." and ".." are never hidden.
func IsHiddenName(name, marker string) bool {
	if marker == "" || name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, marker)
}
