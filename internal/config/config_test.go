package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expectedKeys = []string{
	"DATABASES.default.ENGINE",
	"DATABASES.default.NAME",
	"GSN.CLIENT_ID",
	"GSN.CLIENT_SECRET",
	"GSN.MAX_QUERY_SIZE",
	"GSN.SERVICE_URL_LOCAL",
	"GSN.SERVICE_URL_PUBLIC",
	"GSN.WEBUI_URL",
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, EngineSQLite3, cfg.Default().Engine)
	assert.Equal(t, "db.sqlite3", cfg.Default().Name)
	assert.Equal(t, "gsn-webui-backend", cfg.GSN.ClientID)
	assert.Equal(t, "gsn-webui-backend", cfg.GSN.ClientSecret)
	assert.Equal(t, "http://walker.uibk.ac.at:9000/ws/", cfg.GSN.ServiceURLPublic)
	assert.Equal(t, "http://walker.uibk.ac.at:9000/ws/", cfg.GSN.ServiceURLLocal)
	assert.Equal(t, "http://walker.uibk.ac.at:4200/", cfg.GSN.WebUIURL)
	assert.Equal(t, 5000, cfg.GSN.MaxQuerySize)

	require.NoError(t, cfg.Validate())
}

func TestDefaultConfig_KeysAreExactAndUnique(t *testing.T) {
	keys := DefaultConfig().Keys()
	assert.Equal(t, expectedKeys, keys)

	seen := make(map[string]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestDefaultConfig_Invariants(t *testing.T) {
	cfg := DefaultConfig()

	assert.Greater(t, cfg.GSN.MaxQuerySize, 0)
	assert.NotEmpty(t, cfg.GSN.ClientID)
	assert.NotEmpty(t, cfg.GSN.ClientSecret)

	for _, raw := range []string{cfg.GSN.ServiceURLPublic, cfg.GSN.ServiceURLLocal, cfg.GSN.WebUIURL} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.True(t, u.IsAbs(), "%s should be absolute", raw)
		assert.NotEmpty(t, u.Host)
	}
}

func TestDefaultConfig_Idempotent(t *testing.T) {
	first := DefaultConfig()
	second := DefaultConfig()
	assert.Equal(t, first, second)

	// independent instances
	first.GSN.ClientID = "changed"
	assert.Equal(t, "gsn-webui-backend", DefaultConfig().GSN.ClientID)
	assert.Equal(t, "gsn-webui-backend", second.GSN.ClientID)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
gsn:
  client_id: my-client
  max_query_size: 200
databases:
  default:
    name: /var/lib/gsnweb/db.sqlite3
`))
	require.NoError(t, err)

	assert.Equal(t, "my-client", cfg.GSN.ClientID)
	assert.Equal(t, 200, cfg.GSN.MaxQuerySize)
	assert.Equal(t, "gsn-webui-backend", cfg.GSN.ClientSecret)
	assert.Equal(t, EngineSQLite3, cfg.Default().Engine)
	assert.Equal(t, "/var/lib/gsnweb/db.sqlite3", cfg.Default().Name)
}

func TestParse_ExplicitZeroValuesAreKept(t *testing.T) {
	cfg, err := Parse([]byte(`
gsn:
  client_id: ""
  client_secret: ""
  max_query_size: 0
databases:
  default:
    name: ""
`))
	require.NoError(t, err)

	assert.Empty(t, cfg.GSN.ClientID)
	assert.Empty(t, cfg.GSN.ClientSecret)
	assert.Zero(t, cfg.GSN.MaxQuerySize)
	assert.Equal(t, EngineSQLite3, cfg.Default().Engine)
	assert.Empty(t, cfg.Default().Name)

	err = cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)

	keys := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		keys = append(keys, fe.Key)
	}
	assert.Contains(t, keys, KeyClientID)
	assert.Contains(t, keys, KeyClientSecret)
	assert.Contains(t, keys, KeyMaxQuerySize)
	assert.Contains(t, keys, "DATABASES.default.NAME")
}

func TestParse_EmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParse_UnknownKeyFails(t *testing.T) {
	_, err := Parse([]byte("gsn:\n  client_idd: typo\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField), "got %v", err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.GSN.WebUIURL = "https://ui.example.org/"
	cfg.Databases[DefaultDatabase] = DatabaseConfig{
		Engine:  EngineMongoDB,
		Name:    "gsnweb",
		Options: map[string]string{"uri": "mongodb://db:27017"},
	}
	require.NoError(t, cfg.Save(path))
	assert.True(t, Exists(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvClientID:       "env-client",
		EnvClientSecret:   "env-secret",
		EnvWebUIURL:       "https://ui.example.org/",
		EnvMaxQuerySize:   "42",
		EnvDatabaseEngine: "django.db.backends.sqlite3",
		EnvDatabaseName:   "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "env-client", cfg.GSN.ClientID)
	assert.Equal(t, "env-secret", cfg.GSN.ClientSecret)
	assert.Equal(t, "https://ui.example.org/", cfg.GSN.WebUIURL)
	assert.Equal(t, 42, cfg.GSN.MaxQuerySize)
	assert.Equal(t, "django.db.backends.sqlite3", cfg.Default().Engine)
	assert.Equal(t, "db.sqlite3", cfg.Default().Name, "blank values are ignored")
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_InvalidMaxQuerySize(t *testing.T) {
	t.Setenv(EnvMaxQuerySize, "lots")

	cfg := DefaultConfig()
	err := cfg.ApplyEnv(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvMaxQuerySize)
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Databases[DefaultDatabase] = DatabaseConfig{Engine: "postgres", Name: ""}
	cfg.GSN.ClientID = ""
	cfg.GSN.ClientSecret = " "
	cfg.GSN.ServiceURLPublic = "/ws/"
	cfg.GSN.ServiceURLLocal = "ftp://walker/ws/"
	cfg.GSN.WebUIURL = "http://%zz"
	cfg.GSN.MaxQuerySize = 0

	err := cfg.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	keys := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		keys = append(keys, fe.Key)
	}
	assert.ElementsMatch(t, []string{
		"DATABASES.default.ENGINE",
		"DATABASES.default.NAME",
		KeyClientID,
		KeyClientSecret,
		KeyServiceURLPublic,
		KeyServiceURLLocal,
		KeyWebUIURL,
		KeyMaxQuerySize,
	}, keys)
}

func TestValidate_MissingDefaultDatabase(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Databases, DefaultDatabase)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASES.default")
}

func TestNormalizeEngine(t *testing.T) {
	tests := map[string]string{
		"sqlite3":                    EngineSQLite3,
		"sqlite":                     EngineSQLite3,
		"django.db.backends.sqlite3": EngineSQLite3,
		" MongoDB ":                  EngineMongoDB,
		"postgres":                   "postgres",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeEngine(in), in)
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "gsn-...kend", MaskSecret("gsn-webui-backend"))
}

func TestLookup(t *testing.T) {
	cfg := DefaultConfig()

	v, ok := cfg.Lookup("GSN.MAX_QUERY_SIZE")
	require.True(t, ok)
	assert.Equal(t, 5000, v)

	v, ok = cfg.Lookup("databases.default.name")
	require.True(t, ok)
	assert.Equal(t, "db.sqlite3", v)

	_, ok = cfg.Lookup("GSN.UNKNOWN")
	assert.False(t, ok)
}

func TestClone_IsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Databases[DefaultDatabase] = DatabaseConfig{
		Engine:  EngineMongoDB,
		Name:    "gsnweb",
		Options: map[string]string{"uri": "mongodb://a"},
	}

	clone := cfg.Clone()
	clone.Databases[DefaultDatabase].Options["uri"] = "mongodb://b"
	clone.Databases["replica"] = DatabaseConfig{}

	assert.Equal(t, "mongodb://a", cfg.Default().Options["uri"])
	assert.Len(t, cfg.Databases, 1)
}

func TestSetup_FirstCallWins(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first := DefaultConfig()
	first.GSN.ClientID = "first"
	second := DefaultConfig()
	second.GSN.ClientID = "second"

	assert.Equal(t, "first", Setup(first).GSN.ClientID)
	assert.Equal(t, "first", Setup(second).GSN.ClientID)

	// callers only ever get copies
	s := Settings()
	s.GSN.ClientID = "mutated"
	first.GSN.ClientID = "mutated"
	assert.Equal(t, "first", Settings().GSN.ClientID)
}

func TestReset(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first := DefaultConfig()
	first.GSN.ClientID = "first"
	Setup(first)

	Reset()
	assert.Equal(t, DefaultConfig().GSN.ClientID, Settings().GSN.ClientID)

	second := DefaultConfig()
	second.GSN.ClientID = "second"
	assert.Equal(t, "second", Setup(second).GSN.ClientID)
}
