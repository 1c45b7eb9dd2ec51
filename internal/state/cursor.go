// Package state holds the per-pane browsing state: where a pane is, what it
// last listed, and whether hidden entries are shown. One Cursor type serves
// both panes; the side is whatever storage.Filesystem it was built with.
package state

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/events"
	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/storage"
)

// Options configures a Cursor.
type Options struct {
	// Bus receives cursor_* events. Optional.
	Bus *events.EventBus

	// HiddenPrefix marks hidden entries. Defaults to ".".
	HiddenPrefix string

	// ShowHidden includes hidden entries in listings.
	ShowHidden bool
}

// Cursor tracks the current directory of one pane.
// Safe for concurrent use, though listings are expected to run on the
// caller's goroutine.
type Cursor struct {
	fs    storage.Filesystem
	paths storage.PathRules
	bus   *events.EventBus

	hiddenPrefix string

	mu         sync.RWMutex
	path       string
	showHidden bool
	entries    []models.Entry
}

// NewCursor returns a cursor positioned at start. No I/O happens until List.
func NewCursor(fs storage.Filesystem, start string, opts Options) *Cursor {
	prefix := opts.HiddenPrefix
	if prefix == "" {
		prefix = constants.HiddenPrefix
	}
	return &Cursor{
		fs:           fs,
		paths:        fs.Paths(),
		bus:          opts.Bus,
		hiddenPrefix: prefix,
		path:         start,
		showHidden:   opts.ShowHidden,
	}
}

// Side returns the side this cursor browses.
func (c *Cursor) Side() models.Side {
	return c.fs.Side()
}

// Path returns the current directory.
func (c *Cursor) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Entries returns a copy of the last successful listing.
func (c *Cursor) Entries() []models.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]models.Entry, len(c.entries))
	copy(result, c.entries)
	return result
}

// ShowHidden reports whether hidden entries are listed.
func (c *Cursor) ShowHidden() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showHidden
}

// SetShowHidden changes the hidden filter. It takes effect on the next List.
func (c *Cursor) SetShowHidden(show bool) {
	c.mu.Lock()
	c.showHidden = show
	c.mu.Unlock()
}

// List reads the current directory through the port, drops hidden entries
// unless enabled, sorts directories first then by case-insensitive name,
// and prepends ".." unless the directory is a root.
//
// On failure the previous path and entries are kept and the error
// (a *storage.AccessError or *storage.ConnectionError) is returned.
func (c *Cursor) List(ctx context.Context) ([]models.Entry, error) {
	c.mu.RLock()
	p, showHidden := c.path, c.showHidden
	c.mu.RUnlock()

	raw, err := c.fs.List(ctx, p)
	if err != nil {
		c.bus.PublishCursor(events.EventCursorListError, string(c.Side()), p, "", 0, err)
		return nil, err
	}

	entries := make([]models.Entry, 0, len(raw)+1)
	for _, e := range raw {
		if !showHidden && models.IsHiddenName(e.Name, c.hiddenPrefix) {
			continue
		}
		entries = append(entries, e)
	}
	SortEntries(entries)

	if !c.paths.IsRoot(p) {
		entries = append([]models.Entry{{Name: constants.ParentEntryName, IsDir: true}}, entries...)
	}

	c.mu.Lock()
	// A concurrent navigation wins; its listing is the one that matters.
	if c.path == p {
		c.entries = entries
	}
	c.mu.Unlock()

	c.bus.PublishCursor(events.EventCursorListed, string(c.Side()), p, "", len(entries), nil)

	result := make([]models.Entry, len(entries))
	copy(result, entries)
	return result, nil
}

// Descend moves into the child directory name. It only moves when name is a
// directory entry of the last listing and still stats as a directory;
// otherwise nothing changes and false is returned. ".." ascends.
func (c *Cursor) Descend(ctx context.Context, name string) bool {
	if name == constants.ParentEntryName {
		return c.Ascend()
	}

	c.mu.RLock()
	p := c.path
	known := false
	for _, e := range c.entries {
		if e.Name == name && e.IsDir {
			known = true
			break
		}
	}
	c.mu.RUnlock()

	if !known {
		return false
	}

	target := c.paths.Join(p, name)
	if !c.IsDirectoryAt(ctx, target) {
		return false
	}
	return c.setPath(p, target)
}

// Ascend moves to the parent directory. At a root it does nothing.
func (c *Cursor) Ascend() bool {
	p := c.Path()
	if c.paths.IsRoot(p) {
		return false
	}
	return c.setPath(p, c.paths.Dir(p))
}

// Chdir jumps to an arbitrary directory, resolved against the current one.
func (c *Cursor) Chdir(ctx context.Context, target string) error {
	p := c.Path()
	target = c.Resolve(target)
	entry, err := c.fs.Stat(ctx, target)
	if err != nil {
		return err
	}
	if !entry.IsDir {
		return storage.NewAccessError("chdir", target, storage.ErrNotDirectory)
	}
	c.setPath(p, target)
	return nil
}

// IsDirectoryAt reports whether path stats as a directory. Any stat error
// counts as "no".
func (c *Cursor) IsDirectoryAt(ctx context.Context, path string) bool {
	entry, err := c.fs.Stat(ctx, path)
	return err == nil && entry.IsDir
}

// Resolve turns a name or relative path into a path on this side,
// relative to the current directory. Absolute paths are returned as is.
func (c *Cursor) Resolve(name string) string {
	p := c.Path()
	switch {
	case name == "" || name == ".":
		return p
	case name == constants.ParentEntryName:
		if c.paths.IsRoot(p) {
			return p
		}
		return c.paths.Dir(p)
	case c.paths.IsAbs(name):
		return name
	}
	return c.paths.Join(p, name)
}

// setPath moves from old to target unless another navigation got there first.
func (c *Cursor) setPath(old, target string) bool {
	c.mu.Lock()
	if c.path != old {
		c.mu.Unlock()
		return false
	}
	c.path = target
	c.entries = nil
	c.mu.Unlock()

	c.bus.PublishCursor(events.EventCursorPathChanged, string(c.Side()), target, old, 0, nil)
	return true
}

// SortEntries orders entries with directories first, then by
// case-insensitive name. Names that differ only by case keep a stable order.
func SortEntries(entries []models.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
}
