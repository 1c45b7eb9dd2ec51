//go:build !windows

package progress

import "os"

// enableWindowsANSI is a no-op on non-Windows platforms
func enableWindowsANSI(*os.File) {}
