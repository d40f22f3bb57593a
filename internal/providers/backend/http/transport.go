package http

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"strings"

	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
)

// newTransport clones the default transport and applies the backend TLS
// settings. A nil settings value keeps the system trust store.
func newTransport(settings *config.TLS) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if settings == nil {
		return transport, nil
	}

	clientTLS := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: settings.InsecureSkipVerify,
	}

	roots, err := loadRootCAs(settings.CACertFile)
	if err != nil {
		return nil, err
	}
	clientTLS.RootCAs = roots

	certificate, err := loadClientCertificate(settings.ClientCertFile, settings.ClientKeyFile)
	if err != nil {
		return nil, err
	}
	if certificate != nil {
		clientTLS.Certificates = []tls.Certificate{*certificate}
	}

	transport.TLSClientConfig = clientTLS
	return transport, nil
}

func loadRootCAs(path string) (*x509.CertPool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "backend.http.tls.ca-cert-file: cannot read "+path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, faults.NewTypedError(faults.ValidationError, "backend.http.tls.ca-cert-file: no PEM certificates in "+path, nil)
	}
	return pool, nil
}

func loadClientCertificate(certFile string, keyFile string) (*tls.Certificate, error) {
	certFile = strings.TrimSpace(certFile)
	keyFile = strings.TrimSpace(keyFile)

	switch {
	case certFile == "" && keyFile == "":
		return nil, nil
	case certFile == "" || keyFile == "":
		return nil, faults.NewTypedError(
			faults.ValidationError,
			"backend.http.tls: client-cert-file and client-key-file must be set together",
			nil,
		)
	}

	certificate, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "backend.http.tls: invalid client certificate", err)
	}
	return &certificate, nil
}
