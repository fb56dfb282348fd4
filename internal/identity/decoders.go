package identity

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// errDecodeMismatch means a decoder does not recognize the input format at
// all; the next decoder in priority order should be tried. Any other error
// is terminal for the whole resolution.
var errDecodeMismatch = errors.New("decoder format mismatch")

// material accumulates certificates and keys across sources until pairing.
type material struct {
	certs []*x509.Certificate
	keys  []crypto.PrivateKey
}

func (m *material) merge(other material) {
	m.certs = append(m.certs, other.certs...)
	m.keys = append(m.keys, other.keys...)
}

type decoder struct {
	name     string
	encoding Encoding
	decode   func(data []byte, passphrase string) (material, error)
}

// Decoder priority order is fixed: PEM before PKCS#12.
var decoders = []decoder{
	{name: "pem", encoding: EncodingPEM, decode: decodePEM},
	{name: "pkcs12", encoding: EncodingPKCS12, decode: decodePKCS12},
}

func decodeSource(src CredentialSource) (material, error) {
	for _, d := range decoders {
		if src.Encoding != EncodingAuto && src.Encoding != "" && src.Encoding != d.encoding {
			continue
		}
		m, err := d.decode(src.Data, src.Passphrase)
		if errors.Is(err, errDecodeMismatch) {
			continue
		}
		if err != nil {
			return material{}, fmt.Errorf("%s: %w", d.name, err)
		}
		return m, nil
	}
	return material{}, ErrUnsupportedCredentialFormat
}

// decodePEM accepts any mix of CERTIFICATE and private key blocks within
// one bundle. A source holding only a certificate or only a key is valid;
// pairing happens after all sources are decoded.
func decodePEM(data []byte, _ string) (material, error) {
	var m material
	rest := data
	seen := false
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		seen = true
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return material{}, fmt.Errorf("parse certificate: %w", err)
			}
			m.certs = append(m.certs, cert)
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			key, err := parsePrivateKey(block)
			if err != nil {
				return material{}, err
			}
			m.keys = append(m.keys, key)
		default:
			// Unrecognized block types (params, CRLs) are skipped, not fatal.
		}
	}
	if !seen {
		return material{}, errDecodeMismatch
	}
	if len(m.certs) == 0 && len(m.keys) == 0 {
		return material{}, errDecodeMismatch
	}
	return m, nil
}

func parsePrivateKey(block *pem.Block) (crypto.PrivateKey, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	}
}

// decodePKCS12 unwraps a password-protected container. A rejected MAC or
// decryption failure is a passphrase problem, never a silent fallback; a
// structurally invalid container is a format mismatch.
func decodePKCS12(data []byte, passphrase string) (material, error) {
	key, cert, err := pkcs12.Decode(data, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
			return material{}, ErrInvalidPassphrase
		}
		return material{}, errDecodeMismatch
	}
	return material{
		certs: []*x509.Certificate{cert},
		keys:  []crypto.PrivateKey{key},
	}, nil
}

// pair matches the accumulated private key to its leaf certificate and
// produces the canonical identity with re-encoded PEM forms.
func (m *material) pair() (*Identity, error) {
	for _, key := range m.keys {
		for _, cert := range m.certs {
			if !keyMatchesCert(key, cert) {
				continue
			}
			return buildIdentity(key, cert, m.certs)
		}
	}
	return nil, errNoClientPair
}

func buildIdentity(key crypto.PrivateKey, leaf *x509.Certificate, certs []*x509.Certificate) (*Identity, error) {
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("encode private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	// Leaf first, then any remaining certificates as the chain.
	chain := [][]byte{leaf.Raw}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leaf.Raw})
	for _, c := range certs {
		if c == leaf {
			continue
		}
		chain = append(chain, c.Raw)
		certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})...)
	}

	return &Identity{
		certificate: tls.Certificate{Certificate: chain, PrivateKey: key, Leaf: leaf},
		leaf:        leaf,
		certPEM:     certPEM,
		keyPEM:      keyPEM,
	}, nil
}

func keyMatchesCert(key crypto.PrivateKey, cert *x509.Certificate) bool {
	type publicKeyer interface {
		Public() crypto.PublicKey
	}
	pk, ok := key.(publicKeyer)
	if !ok {
		return false
	}
	switch pub := pk.Public().(type) {
	case *rsa.PublicKey:
		certPub, ok := cert.PublicKey.(*rsa.PublicKey)
		return ok && pub.Equal(certPub)
	case *ecdsa.PublicKey:
		certPub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		return ok && pub.Equal(certPub)
	case ed25519.PublicKey:
		certPub, ok := cert.PublicKey.(ed25519.PublicKey)
		return ok && pub.Equal(certPub)
	}
	return false
}
