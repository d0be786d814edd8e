package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServersInline(t *testing.T) {
	servers, err := loadServers(`{
		"sample": {
			"Url": "http://remote:8042/dicom-web/",
			"Username": "alice",
			"Password": "secret",
			"HttpHeaders": {"X-Token": "abc"}
		}
	}`)
	require.NoError(t, err)

	require.Contains(t, servers, "sample")
	assert.Equal(t, "http://remote:8042/dicom-web/", servers["sample"].URL)
	assert.Equal(t, "alice", servers["sample"].Username)
	assert.Equal(t, "abc", servers["sample"].HTTPHeaders["X-Token"])
}

func TestLoadServersFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"remote": {"Url": "http://x/"}}`), 0o600))

	servers, err := loadServers("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "http://x/", servers["remote"].URL)
}

func TestLoadServersRejectsMissingURL(t *testing.T) {
	_, err := loadServers(`{"broken": {"Username": "alice"}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadServersRejectsBadJSON(t *testing.T) {
	_, err := loadServers("not json")
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("gateway")
	require.NoError(t, err)

	assert.Equal(t, 8042, cfg.Service.Port)
	assert.Equal(t, "/dicom-web", cfg.DicomWeb.Root)
	assert.Equal(t, "/wado", cfg.DicomWeb.WadoRoot)
	assert.Equal(t, 10, cfg.DicomWeb.StowMaxInstances)
	assert.Equal(t, 10*1024*1024, cfg.StowMaxSizeBytes())
	assert.Empty(t, cfg.DicomWeb.Servers)
}

func TestValidateRejectsNegativeBatchLimits(t *testing.T) {
	cfg, err := Load("gateway")
	require.NoError(t, err)

	cfg.DicomWeb.StowMaxInstances = -1
	require.Error(t, cfg.Validate())
}
