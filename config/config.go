package config

import (
	"crypto/x509"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyDir          = "dir"
	KeyKeySize      = "key.size"
	KeyKeyCipher    = "key.cipher"
	KeyKDFIteration = "key.kdf_iterations"
	KeyDigest       = "digest"
	KeyRootName     = "root.name"
	KeyRootCN       = "root.cn"
	KeyCAPassword   = "ca.password"
	KeyExpireRoot   = "expire.root"
	KeyExpireServer = "expire.server"
	KeyExpireClient = "expire.client"
	KeyExpireCRL    = "expire.crl"
	KeyCountry      = "subject.country"
	KeyProvince     = "subject.province"
	KeyLocality     = "subject.locality"
	KeyOrganization = "subject.organization"
	KeyOrgUnit      = "subject.organizational_unit"
	KeySerialFile   = "files.serial"
	KeyCRLFile      = "files.crl"
	KeyIndexDSN     = "index.dsn"
	KeyUnlockTries  = "unlock.attempts"
)

func init() {
	viper.SetEnvPrefix("fsca")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("fsca")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault(KeyDir, ".")
	viper.SetDefault(KeyKeySize, 4096)
	viper.SetDefault(KeyKeyCipher, "aes-256-cbc")
	viper.SetDefault(KeyKDFIteration, 100000)
	viper.SetDefault(KeyDigest, "sha256")
	viper.SetDefault(KeyRootName, "ca")
	viper.SetDefault(KeyRootCN, "Root CA")
	viper.SetDefault(KeyCAPassword, "")
	viper.SetDefault(KeyExpireRoot, 3650)
	viper.SetDefault(KeyExpireServer, 365)
	viper.SetDefault(KeyExpireClient, 365)
	viper.SetDefault(KeyExpireCRL, 30)
	viper.SetDefault(KeyCountry, []string{})
	viper.SetDefault(KeyProvince, []string{})
	viper.SetDefault(KeyLocality, []string{})
	viper.SetDefault(KeyOrganization, []string{})
	viper.SetDefault(KeyOrgUnit, []string{})
	viper.SetDefault(KeySerialFile, "serial")
	viper.SetDefault(KeyCRLFile, "crl.pem")
	viper.SetDefault(KeyIndexDSN, "")
	viper.SetDefault(KeyUnlockTries, 0)

	// FSCA_CA_PASSWORD comes from AutomaticEnv; FSCA_ROOT_PASSWORD is the fallback
	if err := viper.BindEnv(KeyCAPassword, "FSCA_CA_PASSWORD", "FSCA_ROOT_PASSWORD"); err != nil {
		panic(err)
	}
}

func Dir() string        { return viper.GetString(KeyDir) }
func KeySize() int       { return viper.GetInt(KeyKeySize) }
func KeyCipher() string  { return viper.GetString(KeyKeyCipher) }
func KDFIterations() int { return viper.GetInt(KeyKDFIteration) }
func RootName() string   { return viper.GetString(KeyRootName) }
func RootCN() string     { return viper.GetString(KeyRootCN) }
func CAPassword() string { return viper.GetString(KeyCAPassword) }
func SerialFile() string { return viper.GetString(KeySerialFile) }
func CRLFile() string    { return viper.GetString(KeyCRLFile) }
func IndexDSN() string   { return viper.GetString(KeyIndexDSN) }

// UnlockAttempts maximum CA key unlock attempts, 0 means unlimited
func UnlockAttempts() uint {
	n := viper.GetInt(KeyUnlockTries)
	if n < 0 {
		return 0
	}
	return uint(n)
}

func ExpireRootDays() int   { return viper.GetInt(KeyExpireRoot) }
func ExpireServerDays() int { return viper.GetInt(KeyExpireServer) }
func ExpireClientDays() int { return viper.GetInt(KeyExpireClient) }
func ExpireCRLDays() int    { return viper.GetInt(KeyExpireCRL) }

func Country() []string            { return viper.GetStringSlice(KeyCountry) }
func Province() []string           { return viper.GetStringSlice(KeyProvince) }
func Locality() []string           { return viper.GetStringSlice(KeyLocality) }
func Organization() []string       { return viper.GetStringSlice(KeyOrganization) }
func OrganizationalUnit() []string { return viper.GetStringSlice(KeyOrgUnit) }

var digestToAlgorithm = map[string]x509.SignatureAlgorithm{
	"sha256": x509.SHA256WithRSA,
	"sha384": x509.SHA384WithRSA,
	"sha512": x509.SHA512WithRSA,
}

// SignatureAlgorithm returns signature algorithm for configured digest; unknown digest falls back to SHA256WithRSA
func SignatureAlgorithm() x509.SignatureAlgorithm {
	if algo, ok := digestToAlgorithm[strings.ToLower(viper.GetString(KeyDigest))]; ok {
		return algo
	}
	return x509.SHA256WithRSA
}
