package testutils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

// MutualTLS options for TestMutualTLS
type MutualTLS struct {
	Server     tls.Certificate
	Client     tls.Certificate
	Root       *x509.Certificate
	ServerName string // server name verified by the client

	// VerifyClient check client certificate after chain verification, i.e. CRL check
	VerifyClient func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

// TestMutualTLS run https server requiring client certificate and request it once
func TestMutualTLS(ctx context.Context, opts MutualTLS) error {
	roots := x509.NewCertPool()
	roots.AddCert(opts.Root)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	tlsLn := tls.NewListener(ln, &tls.Config{
		Certificates:          []tls.Certificate{opts.Server},
		ClientAuth:            tls.RequireAndVerifyClientCert,
		ClientCAs:             roots,
		VerifyPeerCertificate: opts.VerifyClient,
	})
	go func() {
		handler := http.NewServeMux()
		handler.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "hello %s", r.TLS.PeerCertificates[0].Subject.CommonName)
		})
		http.Serve(tlsLn, handler)
	}()

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs:      roots,
			Certificates: []tls.Certificate{opts.Client},
			ServerName:   opts.ServerName,
		},
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{Transport: transport}
	resp, err := client.Get(fmt.Sprintf("https://%s/", ln.Addr().String()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	leaf, err := x509.ParseCertificate(opts.Client.Certificate[0])
	if err != nil {
		return err
	}

	want := "hello " + leaf.Subject.CommonName
	if resp.StatusCode != http.StatusOK || string(body) != want {
		return errors.Errorf("want %q but get status %d, %q", want, resp.StatusCode, body)
	}

	return nil
}
