// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"context"
	"encoding/json"
	"time"
)

// TelemetryData holds all telemetry data of an installation.
type TelemetryData struct {
	// CleanedEntries is the number of entries removed from a forced destination
	CleanedEntries int64 `json:"cleaned_entries"`

	// CleanErrors is the number of entries that could not be removed
	CleanErrors int64 `json:"clean_errors"`

	// ExtractedDirs is the number of extracted directories
	ExtractedDirs int64 `json:"extracted_dirs"`

	// ExtractedFiles is the number of extracted files
	ExtractedFiles int64 `json:"extracted_files"`

	// ExtractedType is the detected type of the bundled archive
	ExtractedType string `json:"extracted_type"`

	// ExtractionDuration is the time the installation took
	ExtractionDuration time.Duration `json:"extraction_duration"`

	// ExtractionErrors is the number of entries that failed
	ExtractionErrors int64 `json:"extraction_errors"`

	// ExtractionSize is the size of the extracted files
	ExtractionSize int64 `json:"extraction_size"`

	// InputSize is the size of the staged archive
	InputSize int64 `json:"input_size"`

	// LastExtractionError is the last error during the installation
	LastExtractionError error `json:"last_extraction_error"`

	// SkippedEntries is the number of entries with unsupported type
	SkippedEntries int64 `json:"skipped_entries"`
}

// String returns a string representation of [TelemetryData].
func (td TelemetryData) String() string {
	b, _ := json.Marshal(td)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (td TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if td.LastExtractionError != nil {
		lastError = td.LastExtractionError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastExtractionError string `json:"last_extraction_error"`
		*Alias
	}{
		LastExtractionError: lastError,
		Alias:               (*Alias)(&td),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after an installation has finished.
type TelemetryHook func(context.Context, *TelemetryData)

// now is a function point that returns time.Now to the caller.
var now = time.Now

// captureExtractionDuration captures the duration of the installation
func captureExtractionDuration(td *TelemetryData, start time.Time) {
	td.ExtractionDuration = now().Sub(start)
}
