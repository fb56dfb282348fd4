package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func strictCA(t *testing.T) TrustPolicy {
	t.Helper()
	policy, err := StrictCA(fixture(t, "ca.pem"))
	require.NoError(t, err)
	return policy
}

func TestResolvePEMBundle(t *testing.T) {
	id, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: fixture(t, "client-bundle.pem")},
	}, strictCA(t))
	require.NoError(t, err)

	assert.Equal(t, "click-test-client", id.Leaf().Subject.CommonName)
	assert.NotEmpty(t, id.CertificatePEM())
	assert.NotEmpty(t, id.KeyPEM())
	assert.False(t, id.TrustPolicy().Insecure())
}

func TestResolvePEMSplitSources(t *testing.T) {
	// Certificate and key delivered as separate sources must still pair.
	id, err := Resolve([]CredentialSource{
		{Encoding: EncodingPEM, Data: fixture(t, "client-cert.pem")},
		{Encoding: EncodingPEM, Data: fixture(t, "client-key.pem")},
	}, strictCA(t))
	require.NoError(t, err)
	assert.Equal(t, "click-test-client", id.Leaf().Subject.CommonName)
}

func TestResolvePKCS12(t *testing.T) {
	id, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: fixture(t, "client.p12"), Passphrase: "changeit"},
	}, strictCA(t))
	require.NoError(t, err)
	assert.Equal(t, "click-test-client", id.Leaf().Subject.CommonName)
}

func TestResolveEncodingEquivalence(t *testing.T) {
	// The same logical identity must come out regardless of the encoding it
	// went in as.
	pemID, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: fixture(t, "client-bundle.pem")},
	}, strictCA(t))
	require.NoError(t, err)

	p12ID, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: fixture(t, "client.p12"), Passphrase: "changeit"},
	}, strictCA(t))
	require.NoError(t, err)

	assert.Equal(t, pemID.Leaf().Raw, p12ID.Leaf().Raw)
	assert.Equal(t, pemID.KeyPEM(), p12ID.KeyPEM())
}

func TestResolvePKCS12WrongPassphrase(t *testing.T) {
	_, err := Resolve([]CredentialSource{
		{Encoding: EncodingPKCS12, Data: fixture(t, "client.p12"), Passphrase: "nope"},
	}, strictCA(t))
	assert.ErrorIs(t, err, ErrInvalidPassphrase)
}

func TestResolvePKCS12MissingPassphrase(t *testing.T) {
	_, err := Resolve([]CredentialSource{
		{Encoding: EncodingPKCS12, Data: fixture(t, "client.p12")},
	}, strictCA(t))
	assert.ErrorIs(t, err, ErrInvalidPassphrase)
}

func TestResolveUnsupportedFormat(t *testing.T) {
	_, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: []byte("certainly not a credential")},
	}, strictCA(t))
	assert.ErrorIs(t, err, ErrUnsupportedCredentialFormat)
}

func TestResolveRequiresExplicitTrustPolicy(t *testing.T) {
	// An absent directive fails activation; it never defaults to insecure.
	_, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: fixture(t, "client-bundle.pem")},
	}, TrustPolicy{})
	assert.ErrorIs(t, err, ErrNoTrustPolicy)
}

func TestResolveMismatchedPair(t *testing.T) {
	// A certificate with no corresponding key cannot resolve.
	_, err := Resolve([]CredentialSource{
		{Encoding: EncodingPEM, Data: fixture(t, "client-cert.pem")},
	}, strictCA(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedCredentialFormat)
}

func TestTLSConfig(t *testing.T) {
	id, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: fixture(t, "client-bundle.pem")},
	}, strictCA(t))
	require.NoError(t, err)

	cfg := id.TLSConfig()
	require.Len(t, cfg.Certificates, 1)
	assert.NotNil(t, cfg.RootCAs)
	assert.False(t, cfg.InsecureSkipVerify)

	insecureID, err := Resolve([]CredentialSource{
		{Encoding: EncodingAuto, Data: fixture(t, "client-bundle.pem")},
	}, InsecureSkipVerify())
	require.NoError(t, err)
	cfg = insecureID.TLSConfig()
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)
}

func TestStrictCARejectsGarbage(t *testing.T) {
	_, err := StrictCA([]byte("not a bundle"))
	assert.Error(t, err)
}
