// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/go-unbundle"
)

func TestTelemetryDataMarshalJSON(t *testing.T) {
	td := unbundle.TelemetryData{
		ExtractedDirs:       1,
		ExtractedFiles:      2,
		ExtractedType:       "zip",
		ExtractionDuration:  time.Second,
		ExtractionErrors:    1,
		ExtractionSize:      23,
		InputSize:           42,
		LastExtractionError: errors.New("skip unsafe entry"),
		CleanedEntries:      3,
	}

	b, err := json.Marshal(td)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "skip unsafe entry", m["last_extraction_error"])
	assert.Equal(t, "zip", m["extracted_type"])
	assert.Equal(t, float64(2), m["extracted_files"])
	assert.Equal(t, float64(3), m["cleaned_entries"])
	assert.Equal(t, float64(time.Second), m["extraction_duration"])
	assert.Equal(t, string(b), td.String())
}

func TestTelemetryDataWithoutError(t *testing.T) {
	b, err := json.Marshal(unbundle.TelemetryData{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"last_extraction_error":""`)
}
