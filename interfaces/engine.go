package interfaces

import (
	"context"
	"errors"
	"time"
)

// NotaryService is the lifecycle surface of a notary provided by the external
// notarization engine.
type NotaryService interface {
	// Start begins accepting notarization requests. It may return before the
	// service is listening; callers gate on readiness separately.
	Start(ctx context.Context) error

	// Stop tears the service down. Calling Stop on a stopped service is a no-op.
	Stop(ctx context.Context) error
}

// Prover drives one TLS session against a target server with the help of a
// notary. Calls must be issued in order: Reset, Connect, StartNotarize,
// FinalizeNotarize.
type Prover interface {
	// Reset (re)establishes the prover's setup with the notary.
	Reset(ctx context.Context) error

	// Connect runs the TLS session against host:port.
	Connect(ctx context.Context, host string, port int) error

	// StartNotarize moves a closed TLS session into notarization.
	StartNotarize(ctx context.Context) error

	// FinalizeNotarize completes notarization and returns the opaque proof.
	FinalizeNotarize(ctx context.Context) ([]byte, error)
}

// ProverFactory constructs a prover bound to a notary and a target server name.
type ProverFactory func(notaryHost string, notaryPort int, serverName string) (Prover, error)

// ProofArtifact is the opaque output of a notarization. Its structure is owned
// by the engine.
type ProofArtifact []byte

// NotaryConfig carries everything the engine needs to construct a notary.
type NotaryConfig struct {
	Host string
	Port int

	// MaxSentData and MaxRecvData bound the transcript sizes, in bytes.
	MaxSentData int
	MaxRecvData int

	// Timeout bounds the notarization handshake.
	Timeout time.Duration

	// TLS material is optional; TLS is enabled only when both paths are set.
	TLSCertPath string
	TLSKeyPath  string

	PrivateKeyPath string
	PublicKeyPath  string
}

// TLSEnabled reports whether the notary should serve over TLS.
func (c NotaryConfig) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

var ErrInvalidNotaryConfig = errors.New("invalid notary config")

// Validate checks the config for values the engine would reject.
func (c NotaryConfig) Validate() error {
	switch {
	case c.Host == "":
		return errors.Join(ErrInvalidNotaryConfig, errors.New("host is required"))
	case c.Port <= 0 || c.Port > 65535:
		return errors.Join(ErrInvalidNotaryConfig, errors.New("port out of range"))
	case c.MaxSentData <= 0 || c.MaxRecvData <= 0:
		return errors.Join(ErrInvalidNotaryConfig, errors.New("data limits must be positive"))
	case c.Timeout <= 0:
		return errors.Join(ErrInvalidNotaryConfig, errors.New("timeout must be positive"))
	case (c.TLSCertPath == "") != (c.TLSKeyPath == ""):
		return errors.Join(ErrInvalidNotaryConfig, errors.New("tls cert and key must be set together"))
	case c.PrivateKeyPath == "" || c.PublicKeyPath == "":
		return errors.Join(ErrInvalidNotaryConfig, errors.New("identity key paths are required"))
	}
	return nil
}
