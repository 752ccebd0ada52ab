// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListsAllFields(t *testing.T) {
	want := fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
	assert.Equal(t, want, String())
}

func TestJSONRoundtripsStampedValues(t *testing.T) {
	data, err := JSON()
	require.NoError(t, err)

	var got struct {
		Version string `json:"version"`
		Commit  string `json:"commit"`
		Date    string `json:"date"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, Version, got.Version)
	assert.Equal(t, Commit, got.Commit)
	assert.Equal(t, Date, got.Date)
}

func TestUserAgentIdentifiesBuild(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("miau-index/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH), UserAgent)
}
