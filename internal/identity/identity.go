// Package identity resolves heterogeneous client credential material (PEM
// bundles, PKCS#12 containers, bare keys) into a single TLS client identity
// plus a server trust policy, once per cluster context.
package identity

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCredentialFormat means no decoder recognized a source.
	ErrUnsupportedCredentialFormat = errors.New("unsupported credential format")
	// ErrInvalidPassphrase means a PKCS#12 container rejected its passphrase.
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	// ErrNoTrustPolicy means resolution was attempted without an explicit
	// trust directive. Insecure mode is opt-in, never a fallback.
	ErrNoTrustPolicy = errors.New("no trust policy configured")

	errNoClientPair = errors.New("credential sources contain no matching certificate/key pair")
)

// Encoding is a declared credential encoding. EncodingAuto sniffs.
type Encoding string

const (
	EncodingAuto   Encoding = "auto"
	EncodingPEM    Encoding = "pem"
	EncodingPKCS12 Encoding = "pkcs12"
)

// CredentialSource is one opaque credential blob with its declared encoding.
type CredentialSource struct {
	Encoding   Encoding
	Data       []byte
	Passphrase string
}

// TrustPolicy governs server certificate acceptance. The zero value is
// invalid: callers must choose StrictCA or InsecureSkipVerify explicitly.
type TrustPolicy struct {
	mode   trustMode
	caPEM  []byte
	caPool *x509.CertPool
}

type trustMode int

const (
	trustUnset trustMode = iota
	trustStrictCA
	trustInsecure
)

// StrictCA verifies server certificates against the given PEM CA bundle.
func StrictCA(caBundle []byte) (TrustPolicy, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBundle) {
		return TrustPolicy{}, fmt.Errorf("trust policy: no CA certificates in bundle")
	}
	return TrustPolicy{mode: trustStrictCA, caPEM: caBundle, caPool: pool}, nil
}

// InsecureSkipVerify accepts any server certificate. Loudly named so it
// cannot be reached by accident.
func InsecureSkipVerify() TrustPolicy {
	return TrustPolicy{mode: trustInsecure}
}

// Insecure reports whether the policy skips server verification.
func (p TrustPolicy) Insecure() bool { return p.mode == trustInsecure }

// CABundle returns the PEM CA bundle for a StrictCA policy, nil otherwise.
func (p TrustPolicy) CABundle() []byte { return bytes.Clone(p.caPEM) }

// Identity is a resolved TLS client identity. Immutable; reusable across
// every connection for its context.
type Identity struct {
	certificate tls.Certificate
	leaf        *x509.Certificate
	certPEM     []byte
	keyPEM      []byte
	policy      TrustPolicy
}

// Resolve decodes the given sources, pairs the client certificate with its
// private key, and binds the trust policy. Decoders run in fixed priority
// order (PEM before PKCS#12); the first matching decoder wins per source.
func Resolve(sources []CredentialSource, policy TrustPolicy) (*Identity, error) {
	if policy.mode == trustUnset {
		return nil, ErrNoTrustPolicy
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("resolve identity: %w", errNoClientPair)
	}

	var mat material
	for i, src := range sources {
		m, err := decodeSource(src)
		if err != nil {
			return nil, fmt.Errorf("credential source %d: %w", i, err)
		}
		mat.merge(m)
	}

	id, err := mat.pair()
	if err != nil {
		return nil, err
	}
	id.policy = policy
	return id, nil
}

// Leaf returns the client leaf certificate.
func (id *Identity) Leaf() *x509.Certificate { return id.leaf }

// TrustPolicy returns the policy bound at resolution time.
func (id *Identity) TrustPolicy() TrustPolicy { return id.policy }

// CertificatePEM returns the PEM-encoded client certificate chain.
func (id *Identity) CertificatePEM() []byte { return bytes.Clone(id.certPEM) }

// KeyPEM returns the PEM-encoded private key (PKCS#8).
func (id *Identity) KeyPEM() []byte { return bytes.Clone(id.keyPEM) }

// TLSConfig builds a tls.Config carrying the client identity and the trust
// policy.
func (id *Identity) TLSConfig() *tls.Config {
	cfg := &tls.Config{
		Certificates: []tls.Certificate{id.certificate},
	}
	switch id.policy.mode {
	case trustStrictCA:
		cfg.RootCAs = id.policy.caPool
	case trustInsecure:
		cfg.InsecureSkipVerify = true
	}
	return cfg
}
