// Package appinfo provides application identity constants.
// These are used across packages for consistent naming.
package appinfo

// Version is set at build time with -ldflags "-X".
var Version = "dev"

const (
	// AppName is the display name of the application.
	AppName = "Vintage Presence"

	// DirName is the directory name used for storing application data.
	// Location: %LOCALAPPDATA%/vintagepresence/ (Windows) or ~/.config/vintagepresence/ (other)
	DirName = "vintagepresence"

	// MutexName is the Windows mutex name for single instance control.
	// "Local\" scopes the mutex to the current user session.
	MutexName = "Local\\vintagepresence"

	// LockFileName is the lock file name for single instance control.
	LockFileName = "vintagepresence.lock"

	// ConfigFileName is the configuration file name.
	ConfigFileName = "config.json"

	// DatabaseFileName is the SQLite database file name.
	DatabaseFileName = "vintagepresence.sqlite"

	// DefaultApplicationID is the Discord application that owns the
	// presence art assets.
	DefaultApplicationID = "1445733433153425468"
)
