// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"context"
	"io"
	"io/fs"
	"log/slog"

	"github.com/spf13/afero"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config holds all options of an installation. It is created with [NewConfig]
// and adjusted with option pattern functions.
//
// The defaults refuse to touch a non-empty destination, skip entries that
// cannot be written and limit the resources an installation may consume.
type Config struct {
	// abortOnCleanError stops a forced installation if the destination cannot be cleaned
	abortOnCleanError bool

	// atomic replays all entries into a side directory and moves them into place afterwards
	atomic bool

	// cacheInMemory stages the archive in memory instead of a temporary file
	cacheInMemory bool

	// continueOnError decides if the installation continues after an entry failed
	continueOnError bool

	// customCreateDirMode is the file mode for created directories (respecting umask)
	customCreateDirMode fs.FileMode

	// customFileMode is the file mode for extracted files (respecting umask)
	customFileMode fs.FileMode

	// force allows to overwrite a non-empty destination
	force bool

	// logger stream for the installation
	logger logger

	// maxExtractionSize is the maximum size of all extracted files.
	// Set value to -1 to disable the check.
	maxExtractionSize int64

	// maxFiles is the maximum of entries (files and directories) in the archive.
	// Set value to -1 to disable the check.
	maxFiles int64

	// maxInputSize is the maximum size of the bundled archive.
	// Set value to -1 to disable the check.
	maxInputSize int64

	// stagingDir is the directory for the temporary archive file, empty for the os default
	stagingDir string

	// stagingFs is the filesystem that holds the temporary archive file
	stagingFs afero.Fs

	// telemetryHook is called once after the installation finished
	telemetryHook TelemetryHook
}

// AbortOnCleanError returns true if a forced installation should stop when the
// existing content of the destination cannot be removed.
func (c *Config) AbortOnCleanError() bool {
	return c.abortOnCleanError
}

// Atomic returns true if entries are replayed into a side directory first.
func (c *Config) Atomic() bool {
	return c.atomic
}

// CacheInMemory returns true if the archive is staged in memory.
func (c *Config) CacheInMemory() bool {
	return c.cacheInMemory
}

// CheckMaxFiles checks if counter exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxFilesExceeded] error is returned.
func (c *Config) CheckMaxFiles(counter int64) error {

	// check if disabled
	if c.MaxFiles() == -1 {
		return nil
	}

	// check value
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExtractionSize checks if fileSize exceeds configured maximum. If the maximum is exceeded,
// a [ErrMaxExtractionSizeExceeded] error is returned.
func (c *Config) CheckExtractionSize(fileSize int64) error {

	// check if disabled
	if c.MaxExtractionSize() == -1 {
		return nil
	}

	// check value
	if fileSize > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// ContinueOnError returns true if the installation continues after an entry failed.
func (c *Config) ContinueOnError() bool {
	return c.continueOnError
}

// CustomCreateDirMode returns the file mode for created directories.
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomFileMode returns the file mode for extracted files.
func (c *Config) CustomFileMode() fs.FileMode {
	return c.customFileMode
}

// Force returns true if a non-empty destination may be overwritten.
func (c *Config) Force() bool {
	return c.force
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExtractionSize returns the maximum size over all extracted files.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxFiles returns the maximum of entries in the archive.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// MaxInputSize returns the maximum size of the bundled archive.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// StagingDir returns the directory for the temporary archive file.
func (c *Config) StagingDir() string {
	return c.stagingDir
}

// StagingFs returns the filesystem for the temporary archive file.
func (c *Config) StagingFs() afero.Fs {
	return c.stagingFs
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

const (
	defaultAbortOnCleanError   = false         // log and continue, matches the installer behavior
	defaultAtomic              = false         // replay entries directly into the destination
	defaultCacheInMemory       = false         // stage on disk
	defaultContinueOnError     = true          // skip entries that cannot be written
	defaultCustomCreateDirMode = 0755          // default directory permissions rwxr-xr-x
	defaultCustomFileMode      = 0644          // default file permissions rw-r--r--
	defaultForce               = false         // never touch a non-empty destination
	defaultMaxFiles            = 100000        // 100k entries
	defaultMaxExtractionSize   = 1 << (10 * 3) // 1 Gb
	defaultMaxInputSize        = 1 << (10 * 3) // 1 Gb
	defaultStagingDir          = ""            // os.TempDir()
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		abortOnCleanError:   defaultAbortOnCleanError,
		atomic:              defaultAtomic,
		cacheInMemory:       defaultCacheInMemory,
		continueOnError:     defaultContinueOnError,
		customCreateDirMode: defaultCustomCreateDirMode,
		customFileMode:      defaultCustomFileMode,
		force:               defaultForce,
		logger:              defaultLogger,
		maxExtractionSize:   defaultMaxExtractionSize,
		maxFiles:            defaultMaxFiles,
		maxInputSize:        defaultMaxInputSize,
		stagingDir:          defaultStagingDir,
		stagingFs:           afero.NewOsFs(),
		telemetryHook:       defaultTelemetryHook,
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithAbortOnCleanError options pattern function to stop a forced installation
// if the existing content of the destination cannot be removed. By default the
// failure is logged and the installation continues.
func WithAbortOnCleanError(abort bool) ConfigOption {
	return func(c *Config) {
		c.abortOnCleanError = abort
	}
}

// WithAtomic options pattern function to replay all entries into a side directory
// first. The destination is only changed after every entry was written.
func WithAtomic(atomic bool) ConfigOption {
	return func(c *Config) {
		c.atomic = atomic
	}
}

// WithCacheInMemory options pattern function to stage the archive in memory
// instead of a temporary file.
func WithCacheInMemory(cache bool) ConfigOption {
	return func(c *Config) {
		c.cacheInMemory = cache
	}
}

// WithContinueOnError options pattern function to continue after an entry
// could not be written. If set to true, the error is logged and the entry
// skipped. If set to false, the installation stops and returns the error.
func WithContinueOnError(yes bool) ConfigOption {
	return func(c *Config) {
		c.continueOnError = yes
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode
// for created directories. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomFileMode options pattern function to set the file mode
// for extracted files. (respecting umask)
func WithCustomFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customFileMode = mode
	}
}

// WithForce options pattern function to overwrite a non-empty destination.
// All existing content of the destination is removed before the installation.
func WithForce(force bool) ConfigOption {
	return func(c *Config) {
		c.force = force
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExtractionSize options pattern function to set maximum size over all
// extracted files. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxFiles options pattern function to set maximum number of entries
// in the archive. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithMaxInputSize options pattern function to set the maximum size of the
// bundled archive. (-1 to disable check)
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		c.maxInputSize = maxInputSize
	}
}

// WithStagingDir options pattern function to set the directory that holds the
// temporary archive file.
func WithStagingDir(dir string) ConfigOption {
	return func(c *Config) {
		c.stagingDir = dir
	}
}

// WithStagingFs options pattern function to set the filesystem that holds the
// temporary archive file.
func WithStagingFs(fs afero.Fs) ConfigOption {
	return func(c *Config) {
		if fs != nil {
			c.stagingFs = fs
		}
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is
// called after the installation.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
