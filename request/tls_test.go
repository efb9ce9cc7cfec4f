// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPS_TLSConfig(t *testing.T) {
	certPEM, keyPEM := selfSigned(t)

	t.Run("empty", func(t *testing.T) {
		cfg, err := (&HTTPS{}).TLSConfig()
		assert.NoError(t, err)
		assert.Nil(t, cfg)
	})
	t.Run("CA", func(t *testing.T) {
		cfg, err := (&HTTPS{CertificateAuthority: [][]byte{certPEM}}).TLSConfig()
		require.NoError(t, err)
		assert.NotNil(t, cfg.RootCAs)
		assert.False(t, cfg.InsecureSkipVerify)
	})
	t.Run("bad CA", func(t *testing.T) {
		_, err := (&HTTPS{CertificateAuthority: [][]byte{[]byte("junk")}}).TLSConfig()
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
	t.Run("key pair", func(t *testing.T) {
		cfg, err := (&HTTPS{Certificate: certPEM, Key: keyPEM}).TLSConfig()
		require.NoError(t, err)
		assert.Len(t, cfg.Certificates, 1)
	})
	t.Run("half key pair", func(t *testing.T) {
		_, err := (&HTTPS{Certificate: certPEM}).TLSConfig()
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
	t.Run("bad PFX", func(t *testing.T) {
		_, err := (&HTTPS{PFX: []byte("junk"), Passphrase: String("pw")}).TLSConfig()
		assert.Error(t, err)
	})
	t.Run("reject unauthorized", func(t *testing.T) {
		cfg, err := (&HTTPS{RejectUnauthorized: Bool(false)}).TLSConfig()
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
	})
	t.Run("check server identity", func(t *testing.T) {
		var host string
		cfg, err := (&HTTPS{
			RejectUnauthorized: Bool(false),
			CheckServerIdentity: func(h string, _ *x509.Certificate) error {
				host = h
				return errors.New("mismatch")
			},
		}).TLSConfig()
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
		require.NotNil(t, cfg.VerifyConnection)

		block, _ := pem.Decode(certPEM)
		leaf, err := x509.ParseCertificate(block.Bytes)
		require.NoError(t, err)
		err = cfg.VerifyConnection(tls.ConnectionState{
			ServerName:       "example.test",
			PeerCertificates: []*x509.Certificate{leaf},
		})
		assert.EqualError(t, err, "mismatch")
		assert.Equal(t, "example.test", host)
	})
	t.Run("check server identity with verification", func(t *testing.T) {
		called := false
		cfg, err := (&HTTPS{
			CheckServerIdentity: func(string, *x509.Certificate) error {
				called = true
				return nil
			},
		}).TLSConfig()
		require.NoError(t, err)

		block, _ := pem.Decode(certPEM)
		leaf, err := x509.ParseCertificate(block.Bytes)
		require.NoError(t, err)
		err = cfg.VerifyConnection(tls.ConnectionState{
			ServerName:       "example.test",
			PeerCertificates: []*x509.Certificate{leaf},
		})
		assert.Error(t, err, "self-signed certificate is not in the root pool")
		assert.False(t, called)

		cfg, err = (&HTTPS{
			CertificateAuthority: [][]byte{certPEM},
			CheckServerIdentity: func(string, *x509.Certificate) error {
				called = true
				return nil
			},
		}).TLSConfig()
		require.NoError(t, err)
		err = cfg.VerifyConnection(tls.ConnectionState{
			ServerName:       "example.test",
			PeerCertificates: []*x509.Certificate{leaf},
		})
		assert.NoError(t, err)
		assert.True(t, called)
	})
}

func TestHTTPS_Fingerprint(t *testing.T) {
	assert.Equal(t, "", (&HTTPS{}).Fingerprint())
	a := &HTTPS{Key: []byte("k"), Certificate: []byte("c")}
	b := &HTTPS{Key: []byte("k"), Certificate: []byte("c")}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.RejectUnauthorized = Bool(false)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	c := &HTTPS{Key: []byte("kc")}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func selfSigned(t *testing.T) (certPEM, keyPEM []byte) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.test"},
		DNSNames:     []string{"example.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IsCA:         true,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},

		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return
}
