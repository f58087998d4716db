package interfaces

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewStorageBackendLocation(t *testing.T) {
	loc, err := NewStorageBackendLocation("s3://bucket/proofs?region=eu-west-1")
	require.NoError(t, err)
	require.Equal(t, "s3", loc.Scheme)
	require.Equal(t, "bucket", loc.Host)
	require.Equal(t, "eu-west-1", loc.GetParam("region"))

	_, err = NewStorageBackendLocation("github://owner/repo")
	require.ErrorIs(t, err, ErrInvalidLocationURI)
}

func TestContentIDHexRoundTrip(t *testing.T) {
	id := ComputeID([]byte("proof"))
	parsed, err := NewContentIDFromHex("0x" + id.String())
	require.NoError(t, err)
	require.True(t, id.Equal(parsed))

	_, err = NewContentIDFromHex("abcd")
	require.Error(t, err)
}

func TestNotaryConfigValidate(t *testing.T) {
	valid := NotaryConfig{
		Host:           "127.0.0.1",
		Port:           7047,
		MaxSentData:    100000,
		MaxRecvData:    100000,
		Timeout:        30 * time.Second,
		PrivateKeyPath: "k.pem",
		PublicKeyPath:  "p.pem",
	}
	require.NoError(t, valid.Validate())
	require.False(t, valid.TLSEnabled())

	tests := []struct {
		name   string
		modify func(*NotaryConfig)
	}{
		{"missing host", func(c *NotaryConfig) { c.Host = "" }},
		{"bad port", func(c *NotaryConfig) { c.Port = 70000 }},
		{"zero limits", func(c *NotaryConfig) { c.MaxRecvData = 0 }},
		{"zero timeout", func(c *NotaryConfig) { c.Timeout = 0 }},
		{"half tls", func(c *NotaryConfig) { c.TLSCertPath = "cert.pem" }},
		{"missing key path", func(c *NotaryConfig) { c.PublicKeyPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidNotaryConfig)
		})
	}
}

func TestDataLayout(t *testing.T) {
	l := DataLayout{Dir: "demo_data"}
	require.Equal(t, filepath.Join("demo_data", "notary_key.pem"), l.PrivateKeyPath())
	require.Equal(t, filepath.Join("demo_data", "notary_pub_key.pem"), l.PublicKeyPath())
	require.Equal(t, filepath.Join("demo_data", "api_response.proof"), l.ProofPath())
}
