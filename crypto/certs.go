package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

type CertBundle struct {
	Cert       string
	PrivateKey string
}

// GenerateCACert makes a new CA certificate. Clients will only trust
// certificates signed by this CA so it must be unique per deployment.
func GenerateCACert(rsa_bits int) (*CertBundle, error) {
	serial_number, err := makeSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial_number,
		Subject: pkix.Name{
			CommonName: "Velociraptor CA",
		},
		NotBefore: now.Add(-10 * time.Minute),

		// CA certs are always long lived.
		NotAfter: now.Add(10 * 365 * 24 * time.Hour),

		KeyUsage: x509.KeyUsageCertSign |
			x509.KeyUsageCRLSign |
			x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	key, err := rsa.GenerateKey(rand.Reader, rsa_bits)
	if err != nil {
		return nil, err
	}

	der, err := x509.CreateCertificate(
		rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	return &CertBundle{
		Cert: string(pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: der,
		})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})),
	}, nil
}

// GenerateServerCert makes a server certificate signed by the CA in
// the bundle.
func GenerateServerCert(
	ca *CertBundle,
	common_name, organization string,
	duration time.Duration) (*CertBundle, error) {

	ca_cert, err := ParseX509CertFromPemStr([]byte(ca.Cert))
	if err != nil {
		return nil, fmt.Errorf("Unable to parse CA cert: %w", err)
	}

	ca_key, err := ParseRsaPrivateKeyFromPemStr([]byte(ca.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("Unable to parse CA private key: %w", err)
	}

	serial_number, err := makeSerial()
	if err != nil {
		return nil, err
	}

	subject := pkix.Name{CommonName: common_name}
	if organization != "" {
		subject.Organization = []string{organization}
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial_number,
		Subject:      subject,
		NotBefore:    now.Add(-10 * time.Minute),
		NotAfter:     now.Add(duration),
		KeyUsage: x509.KeyUsageDigitalSignature |
			x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		DNSNames: []string{common_name},
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	der, err := x509.CreateCertificate(
		rand.Reader, &template, ca_cert, &key.PublicKey, ca_key)
	if err != nil {
		return nil, err
	}

	return &CertBundle{
		Cert: string(pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: der,
		})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})),
	}, nil
}

func makeSerial() (*big.Int, error) {
	serial_number_limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, serial_number_limit)
}
