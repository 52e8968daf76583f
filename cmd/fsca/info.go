package main

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/whitekid/goxp/fx"

	"fsca/pkg/helper"
	"fsca/pkg/helper/x509x"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "show certificate or CRL file",
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

type nameInfo struct {
	CommonName         string `json:"cn,omitempty" yaml:"cn,omitempty"`
	Country            string `json:"country,omitempty" yaml:"country,omitempty"`
	Province           string `json:"province,omitempty" yaml:"province,omitempty"`
	Locality           string `json:"locality,omitempty" yaml:"locality,omitempty"`
	Organization       string `json:"organization,omitempty" yaml:"organization,omitempty"`
	OrganizationalUnit string `json:"organizational_unit,omitempty" yaml:"organizational_unit,omitempty"`
}

func newNameInfo(name pkix.Name) nameInfo {
	return nameInfo{
		CommonName:         name.CommonName,
		Country:            strings.Join(name.Country, ", "),
		Province:           strings.Join(name.Province, ", "),
		Locality:           strings.Join(name.Locality, ", "),
		Organization:       strings.Join(name.Organization, ", "),
		OrganizationalUnit: strings.Join(name.OrganizationalUnit, ", "),
	}
}

type certInfo struct {
	Subject            nameInfo  `json:"subject" yaml:"subject"`
	Issuer             nameInfo  `json:"issuer" yaml:"issuer"`
	SerialNumber       string    `json:"serial" yaml:"serial"`
	PublicKeyAlgorithm string    `json:"public_key_algorithm" yaml:"public_key_algorithm"`
	SignatureAlgorithm string    `json:"signature_algorithm" yaml:"signature_algorithm"`
	IsCA               bool      `json:"is_ca" yaml:"is_ca"`
	KeyUsage           []string  `json:"key_usage,omitempty" yaml:"key_usage,omitempty"`
	ExtKeyUsage        []string  `json:"ext_key_usage,omitempty" yaml:"ext_key_usage,omitempty"`
	DNSNames           []string  `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	IPAddresses        []string  `json:"ip_addresses,omitempty" yaml:"ip_addresses,omitempty"`
	SubjectKeyID       string    `json:"subject_key_id,omitempty" yaml:"subject_key_id,omitempty"`
	AuthorityKeyID     string    `json:"authority_key_id,omitempty" yaml:"authority_key_id,omitempty"`
	NotBefore          time.Time `json:"not_before" yaml:"not_before"`
	NotAfter           time.Time `json:"not_after" yaml:"not_after"`
}

func newCertInfo(cert *x509.Certificate) *certInfo {
	return &certInfo{
		Subject:            newNameInfo(cert.Subject),
		Issuer:             newNameInfo(cert.Issuer),
		SerialNumber:       cert.SerialNumber.String(),
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm.String(),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		IsCA:               cert.IsCA,
		KeyUsage:           x509x.KeyUsageToStr(cert.KeyUsage),
		ExtKeyUsage:        x509x.ExtKeyUsageToStr(cert.ExtKeyUsage),
		DNSNames:           cert.DNSNames,
		IPAddresses:        fx.Map(cert.IPAddresses, func(ip net.IP) string { return ip.String() }),
		SubjectKeyID:       hex.EncodeToString(cert.SubjectKeyId),
		AuthorityKeyID:     hex.EncodeToString(cert.AuthorityKeyId),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
	}
}

func init() {
	cmd := &cobra.Command{
		Use:   "cert <file|url>",
		Short: "show x509 certificate; openssl x509 -text -noout -in <file>",
		Args:  cobra.ExactArgs(1),
	}
	addOutputFlag(cmd, formatYAML)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		data, err := helper.ReadFileOrURL(args[0])
		if err != nil {
			return err
		}

		certs, err := x509x.ParseCertificateChain(data)
		if err != nil {
			return err
		}
		if len(certs) == 0 {
			// DER encoded
			cert, err := x509x.ParseCertificate(data)
			if err != nil {
				return errors.Wrap(err, "fail to parse certificate")
			}
			certs = append(certs, cert)
		}

		infos := fx.Map(certs, newCertInfo)
		return writeOutput(cmd, infos, func(w io.Writer) {
			fmt.Fprintln(w, "SERIAL\tSUBJECT\tISSUER\tCA\tNOT AFTER")
			fx.ForEach(infos, func(_ int, c *certInfo) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", c.SerialNumber, c.Subject.CommonName, c.Issuer.CommonName, c.IsCA, formatTime(c.NotAfter))
			})
		})
	}

	infoCmd.AddCommand(cmd)
}

type revokedInfo struct {
	SerialNumber   string    `json:"serial" yaml:"serial"`
	RevocationTime time.Time `json:"revocation_time" yaml:"revocation_time"`
}

type crlInfo struct {
	Issuer             nameInfo      `json:"issuer" yaml:"issuer"`
	Number             string        `json:"number" yaml:"number"`
	SignatureAlgorithm string        `json:"signature_algorithm" yaml:"signature_algorithm"`
	ThisUpdate         time.Time     `json:"this_update" yaml:"this_update"`
	NextUpdate         time.Time     `json:"next_update" yaml:"next_update"`
	Revoked            []revokedInfo `json:"revoked,omitempty" yaml:"revoked,omitempty"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "crl <file|url>",
		Short: "show certificate revocation list; openssl crl -text -noout -in <file>",
		Args:  cobra.ExactArgs(1),
	}
	addOutputFlag(cmd, formatYAML)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		data, err := helper.ReadFileOrURL(args[0])
		if err != nil {
			return err
		}

		crl, err := x509x.ParseRevocationList(data)
		if err != nil {
			return errors.Wrap(err, "fail to parse CRL")
		}

		info := &crlInfo{
			Issuer:             newNameInfo(crl.Issuer),
			Number:             fmt.Sprint(crl.Number),
			SignatureAlgorithm: crl.SignatureAlgorithm.String(),
			ThisUpdate:         crl.ThisUpdate,
			NextUpdate:         crl.NextUpdate,
			Revoked: fx.Map(crl.RevokedCertificateEntries, func(e x509.RevocationListEntry) revokedInfo {
				return revokedInfo{SerialNumber: e.SerialNumber.String(), RevocationTime: e.RevocationTime}
			}),
		}

		return writeOutput(cmd, info, func(w io.Writer) {
			fmt.Fprintf(w, "ISSUER\t%s\n", info.Issuer.CommonName)
			fmt.Fprintf(w, "NUMBER\t%s\n", info.Number)
			fmt.Fprintf(w, "THIS UPDATE\t%s\n", formatTime(info.ThisUpdate))
			fmt.Fprintf(w, "NEXT UPDATE\t%s\n", formatTime(info.NextUpdate))
			fx.ForEach(info.Revoked, func(_ int, r revokedInfo) {
				fmt.Fprintf(w, "REVOKED\t%s\t%s\n", r.SerialNumber, formatTime(r.RevocationTime))
			})
		})
	}

	infoCmd.AddCommand(cmd)
}
