package interfaces

import "path/filepath"

// Files kept under the demo data directory.
const (
	NotaryKeyFile    = "notary_key.pem"
	NotaryPubKeyFile = "notary_pub_key.pem"
	ProofFile        = "api_response.proof"
	NotaryConfigFile = "notary_config.yaml"
	NotaryTLSCert    = "notary_tls_cert.pem"
	NotaryTLSKey     = "notary_tls_key.pem"

	DefaultDataDir = "demo_data"
)

// DataLayout resolves artifact paths relative to a data directory.
type DataLayout struct {
	Dir string
}

func (l DataLayout) PrivateKeyPath() string   { return filepath.Join(l.Dir, NotaryKeyFile) }
func (l DataLayout) PublicKeyPath() string    { return filepath.Join(l.Dir, NotaryPubKeyFile) }
func (l DataLayout) ProofPath() string        { return filepath.Join(l.Dir, ProofFile) }
func (l DataLayout) NotaryConfigPath() string { return filepath.Join(l.Dir, NotaryConfigFile) }

// TLSCertPath and TLSKeyPath hold self-signed TLS material for the notary listener.
func (l DataLayout) TLSCertPath() string { return filepath.Join(l.Dir, NotaryTLSCert) }
func (l DataLayout) TLSKeyPath() string  { return filepath.Join(l.Dir, NotaryTLSKey) }
