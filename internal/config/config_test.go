package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	admin        = "0x00000000000000000000000000000000000000aa"
	orchestrator = "0x00000000000000000000000000000000000000bb"
	customer     = "0x00000000000000000000000000000000000000cc"
	adminToken   = "operator-secret-0001"
)

func validConfig() *Config {
	c := DefaultConfig()
	c.Admin = admin
	c.Orchestrator = orchestrator
	c.AdminToken = adminToken
	return c
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "privatepay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
admin: "`+admin+`"
orchestrator: "`+orchestrator+`"
admin_token: "`+adminToken+`"
account_keys:
  "`+customer+`": "customer-key-00001"
listen_addr: ":7000"
verdict_cache_size: 16
`), 0o600))

	t.Run("file", func(t *testing.T) {
		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.ListenAddr)
		assert.Equal(t, 16, cfg.VerdictCacheSize)
		assert.Equal(t, VerifierChecksum, cfg.Verifier)
		assert.Equal(t, "customer-key-00001", cfg.AccountKeys[customer])
		assert.Equal(t, 5*time.Second, cfg.GateWait())
		require.NoError(t, cfg.Validate())
	})

	t.Run("admin token from the environment", func(t *testing.T) {
		t.Setenv("PRIVATEPAY_ADMIN_TOKEN", "rotated-secret-0002")
		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "rotated-secret-0002", cfg.AdminToken)
	})

	t.Run("environment beats file", func(t *testing.T) {
		t.Setenv("PRIVATEPAY_LISTEN_ADDR", ":7001")
		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, ":7001", cfg.ListenAddr)
	})

	t.Run("flags beat environment", func(t *testing.T) {
		t.Setenv("PRIVATEPAY_LISTEN_ADDR", ":7001")
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		RegisterFlags(fs)
		require.NoError(t, fs.Parse([]string{"--listen", ":7002", "--min-privacy-score", "60"}))

		cfg, err := Load(path, fs)
		require.NoError(t, err)
		assert.Equal(t, ":7002", cfg.ListenAddr)
		assert.Equal(t, uint64(60), cfg.MinPrivacyScore)
		assert.Equal(t, admin, cfg.Admin)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.yaml"), nil)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("groth16 needs a key", func(t *testing.T) {
		c := validConfig()
		c.Verifier = VerifierGroth16
		c.VerifyingKeyPath = ""
		assert.Error(t, c.Validate())
	})

	t.Run("reports every problem", func(t *testing.T) {
		c := DefaultConfig()
		c.Verifier = "magic"
		c.VerdictCacheSize = 0
		c.MinPrivacyScore = 101
		c.RateLimit = 0

		err := c.Validate()
		require.Error(t, err)
		var merr *multierror.Error
		require.ErrorAs(t, err, &merr)
		// admin, orchestrator, admin token, verifier, cache size, score, rate limit
		assert.Len(t, merr.Errors, 7)
	})

	t.Run("credentials", func(t *testing.T) {
		c := validConfig()
		c.AdminToken = "short"
		assert.Error(t, c.Validate())

		c = validConfig()
		c.AccountKeys = map[string]string{customer: "customer-key-00001"}
		require.NoError(t, c.Validate())

		c.AccountKeys = map[string]string{"0x12": "customer-key-00001", customer: "short"}
		var merr *multierror.Error
		require.ErrorAs(t, c.Validate(), &merr)
		assert.Len(t, merr.Errors, 2)
	})

	t.Run("roles", func(t *testing.T) {
		c := validConfig()
		c.Orchestrator = admin
		assert.Error(t, c.Validate())

		c = validConfig()
		c.Admin = "0x0000000000000000000000000000000000000000"
		assert.Error(t, c.Validate())

		a, err := validConfig().AdminAddress()
		require.NoError(t, err)
		assert.Equal(t, byte(0xaa), a[19])
	})
}
