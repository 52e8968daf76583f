package config

import (
	"crypto/x509"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require.Equal(t, ".", Dir())
	require.Equal(t, 4096, KeySize())
	require.Equal(t, "ca", RootName())
	require.Equal(t, 3650, ExpireRootDays())
	require.Equal(t, 365, ExpireServerDays())
	require.Equal(t, 365, ExpireClientDays())
	require.Equal(t, 30, ExpireCRLDays())
	require.Equal(t, uint(0), UnlockAttempts())
	require.Equal(t, x509.SHA256WithRSA, SignatureAlgorithm())
	require.Empty(t, Organization())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FSCA_EXPIRE_CRL", "7")
	t.Setenv("FSCA_DIGEST", "sha512")
	t.Setenv("FSCA_UNLOCK_ATTEMPTS", "3")

	require.Equal(t, 7, ExpireCRLDays())
	require.Equal(t, x509.SHA512WithRSA, SignatureAlgorithm())
	require.Equal(t, uint(3), UnlockAttempts())
}

func TestSignatureAlgorithmFallback(t *testing.T) {
	viper.Set(KeyDigest, "md5")
	defer viper.Set(KeyDigest, "sha256")

	require.Equal(t, x509.SHA256WithRSA, SignatureAlgorithm())
}

func TestCAPasswordEnv(t *testing.T) {
	require.Equal(t, "", CAPassword())

	t.Setenv("FSCA_ROOT_PASSWORD", "from root")
	require.Equal(t, "from root", CAPassword())

	t.Setenv("FSCA_CA_PASSWORD", "from ca")
	require.Equal(t, "from ca", CAPassword())
	require.Equal(t, "ca.password", KeyCAPassword)
}
