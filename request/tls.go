// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"reflect"

	"golang.org/x/crypto/pkcs12"
)

// Empty reports whether h holds no TLS settings at all.
func (h *HTTPS) Empty() bool {
	return len(h.CertificateAuthority) == 0 && h.Key == nil && h.Certificate == nil &&
		h.Passphrase == nil && h.PFX == nil && h.CheckServerIdentity == nil &&
		h.RejectUnauthorized == nil
}

// TLSConfig builds the client TLS configuration described by h. It
// returns nil, nil if h is empty.
func (h *HTTPS) TLSConfig() (*tls.Config, error) {
	if h.Empty() {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if len(h.CertificateAuthority) > 0 {
		pool := x509.NewCertPool()
		for i, pem := range h.CertificateAuthority {
			if !pool.AppendCertsFromPEM(pem) {
				return nil, invalid("The `https.certificateAuthority[%d]` option holds no PEM certificate", i)
			}
		}
		cfg.RootCAs = pool
	}

	switch {
	case h.PFX != nil:
		pass := ""
		if h.Passphrase != nil {
			pass = *h.Passphrase
		}
		key, cert, err := pkcs12.Decode(h.PFX, pass)
		if err != nil {
			return nil, fmt.Errorf("gotx/request: decoding `https.pfx`: %w", err)
		}
		cfg.Certificates = []tls.Certificate{{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  key,
			Leaf:        cert,
		}}
	case h.Certificate != nil || h.Key != nil:
		if h.Certificate == nil || h.Key == nil {
			return nil, invalid("The `https.certificate` and `https.key` options must be set together")
		}
		pair, err := tls.X509KeyPair(h.Certificate, h.Key)
		if err != nil {
			return nil, fmt.Errorf("gotx/request: loading `https.certificate`: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	reject := deref(h.RejectUnauthorized, true)
	if !reject {
		cfg.InsecureSkipVerify = true
	}

	if check := h.CheckServerIdentity; check != nil {
		roots := cfg.RootCAs
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("gotx/request: server presented no certificate")
			}
			leaf := cs.PeerCertificates[0]
			if reject {
				inter := x509.NewCertPool()
				for _, c := range cs.PeerCertificates[1:] {
					inter.AddCert(c)
				}
				_, err := leaf.Verify(x509.VerifyOptions{
					Roots:         roots,
					Intermediates: inter,
				})
				if err != nil {
					return err
				}
			}
			return check(cs.ServerName, leaf)
		}
	}

	return cfg, nil
}

// Fingerprint returns a key identifying the TLS configuration built
// from h. Equal settings produce equal fingerprints, so transports can
// be shared between requests with the same settings.
func (h *HTTPS) Fingerprint() string {
	if h.Empty() {
		return ""
	}
	s := sha256.New()
	for _, ca := range h.CertificateAuthority {
		s.Write(ca)
		s.Write([]byte{0})
	}
	s.Write(h.Key)
	s.Write([]byte{0})
	s.Write(h.Certificate)
	s.Write([]byte{0})
	if h.Passphrase != nil {
		s.Write([]byte(*h.Passphrase))
	}
	s.Write([]byte{0})
	s.Write(h.PFX)
	fmt.Fprintf(s, "|%t|", deref(h.RejectUnauthorized, true))
	if h.CheckServerIdentity != nil {
		fmt.Fprintf(s, "%x", reflect.ValueOf(h.CheckServerIdentity).Pointer())
	}
	return hex.EncodeToString(s.Sum(nil))
}
