// Copyright 2026 The Driftdb Authors
// This file is part of Driftdb.
//
// Driftdb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Driftdb is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Driftdb. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsToZeroValue(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Config{}, cfg)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv(envSubqueryDepthLimit, "16")
	t.Setenv(envTempDir, "/tmp/driftdb-sort")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 16, cfg.SubqueryDepthLimit)
	require.Equal(t, "/tmp/driftdb-sort", cfg.TempDir)
}

func TestLoadFileOverlayWinsOverEnvironment(t *testing.T) {
	t.Setenv(envSubqueryDepthLimit, "16")

	dir := t.TempDir()
	path := filepath.Join(dir, "driftdb.toml")
	require.NoError(t, os.WriteFile(path, []byte("subquery_depth_limit = 4\ntemp_dir = \"/var/driftdb/spill\"\n"), 0o600))
	t.Setenv(envConfigFile, path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.SubqueryDepthLimit)
	require.Equal(t, "/var/driftdb/spill", cfg.TempDir)
}

func TestLoadRejectsUnparsableEnvInt(t *testing.T) {
	t.Setenv(envSubqueryDepthLimit, "not-a-number")
	_, err := Load()
	require.Error(t, err)
}
