package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common storage errors
var (
	// ErrNotConnected indicates a remote operation was attempted without a session
	ErrNotConnected = errors.New("not connected")
	// ErrAuth indicates the server rejected the supplied credentials
	ErrAuth = errors.New("authentication failed")
	// ErrNotDirectory indicates a directory operation hit a non-directory
	ErrNotDirectory = errors.New("not a directory")
	// ErrIsDirectory indicates a file operation hit a directory
	ErrIsDirectory = errors.New("is a directory")
	// ErrSymlinkLoop indicates a symbolic link leads back to a directory being copied
	ErrSymlinkLoop = errors.New("symbolic link loops back to a parent directory")
)

// AccessError records a failed operation on one path of one side.
// Not-found, permission denied and I/O errors from either port end up here.
type AccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// NewAccessError wraps err unless it is already classified.
func NewAccessError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AccessError
	var ce *ConnectionError
	if errors.As(err, &ae) || errors.As(err, &ce) {
		return err
	}
	return &AccessError{Op: op, Path: path, Err: err}
}

// ConnectionError indicates the remote side is unreachable, the session
// dropped, or authentication failed.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("connection error: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsAccessError reports whether err is (or wraps) an *AccessError.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

// IsConnectionError reports whether err is a *ConnectionError, ErrNotConnected,
// or a transport failure recognised by IsNetworkError.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnectionError
	if errors.As(err, &ce) || errors.Is(err, ErrNotConnected) {
		return true
	}
	if IsAccessError(err) {
		return false
	}
	return IsNetworkError(err)
}

// IsAuthError reports whether err is an authentication rejection.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsNotExist reports whether err means the path does not exist on its side.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// IsNetworkError checks if an error is transport-related.
// SSH and SFTP errors arrive as plain strings, so this is a substring match.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	networkIndicators := []string{
		"connection",       // connection refused, connection reset, etc.
		"timeout",          // i/o timeout, dial timeout, etc.
		"network",          // network unreachable
		"eof",              // unexpected EOF from a dropped session
		"broken pipe",      // broken pipe
		"no route to host", // routing
		"handshake failed", // ssh handshake
	}

	for _, indicator := range networkIndicators {
		if containsWord(errStr, indicator) {
			return true
		}
	}

	return false
}

// containsWord reports whether word occurs in s without a letter or digit
// directly before or after it, so "eof" matches "unexpected eof" but not
// a path like "/home/geoffrey".
func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z'
}

// IsDiskFullError checks if an error is likely caused by running out of space
// on the destination side (local disk or remote quota).
func IsDiskFullError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	diskFullIndicators := []string{
		"no space left on device", // Linux/Unix
		"disk full",               // Generic
		"out of disk space",       // Windows
		"not enough space",        // Generic
		"disk quota exceeded",     // Quota systems
	}

	for _, indicator := range diskFullIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}
