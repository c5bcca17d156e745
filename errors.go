// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import "errors"

var (
	// ErrDestinationNotDirectory is returned if the destination exists but is not a directory.
	ErrDestinationNotDirectory = errors.New("destination is not a directory")

	// ErrDestinationCreate is returned if a missing destination cannot be created.
	// Only the last path element is created, a missing parent leads to this error.
	ErrDestinationCreate = errors.New("cannot create destination")

	// ErrDestinationNotEmpty is returned if the destination contains files and
	// the installation is not forced.
	ErrDestinationNotEmpty = errors.New("destination is not empty")

	// ErrDestinationClean is returned if a forced installation cannot remove the
	// existing content and [WithAbortOnCleanError] is enabled.
	ErrDestinationClean = errors.New("cannot clean destination")

	// ErrStaging is returned if the bundled archive cannot be copied into the staging file.
	ErrStaging = errors.New("cannot stage archive")

	// ErrArchiveOpen is returned if the staged archive cannot be opened.
	ErrArchiveOpen = errors.New("cannot open archive")

	// ErrUnsupportedArchive is returned if the staged archive has an unknown format.
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	// ErrMaxFilesExceeded is returned if the archive holds more entries than allowed.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded is returned if the extracted content exceeds the allowed size.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")

	// ErrMaxInputSizeExceeded is returned if the bundled archive is bigger than allowed.
	ErrMaxInputSizeExceeded = errors.New("maximum input size exceeded")

	// ErrUnsafeEntry is returned for entries whose name leaves the destination.
	ErrUnsafeEntry = errors.New("entry path is not local")

	// ErrUnsupportedEntry is logged for skipped entries that are neither a file nor a directory.
	ErrUnsupportedEntry = errors.New("unsupported entry type")
)
