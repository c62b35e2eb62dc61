package tlsroots

import (
	"crypto/tls"
	"errors"
)

// ErrNoCertificate is returned when a listener config has no certificate source.
var ErrNoCertificate = errors.New("tlsroots: server certificate required")

// ServerTLS returns the master listener config. Certificates are served
// by certs; when clientCAs is not nil nodes must present a certificate it
// trusts.
func ServerTLS(certs *Watcher, clientCAs *Pool) (*tls.Config, error) {
	if certs == nil {
		return nil, ErrNoCertificate
	}

	cfg := &tls.Config{
		GetCertificate: certs.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs.Pool()
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// ClientTLS returns a node dialer config trusting roots (system roots when
// nil). certs, when not nil, supplies the node's client certificate.
func ClientTLS(roots *Pool, certs *Watcher, serverName string) *tls.Config {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
	if roots != nil {
		cfg.RootCAs = roots.Pool()
	}
	if certs != nil {
		cfg.GetClientCertificate = certs.GetClientCertificate
	}
	return cfg
}
