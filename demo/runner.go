// Package demo wires key provisioning, the notary lifecycle and one proving
// session into a single run.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ruteri/tlsn-notary-demo/cryptoutils"
	"github.com/ruteri/tlsn-notary-demo/engine/notary"
	"github.com/ruteri/tlsn-notary-demo/interfaces"
	"github.com/ruteri/tlsn-notary-demo/provisioner"
	"github.com/ruteri/tlsn-notary-demo/session"
	"github.com/ruteri/tlsn-notary-demo/storage"
)

// Config is the full configuration of a demo run.
type Config struct {
	DataDir      string
	TargetURL    string
	KeyAlgorithm cryptoutils.KeyAlgorithm

	NotaryHost    string
	NotaryPort    int
	NotaryBinary  string
	NotaryTimeout time.Duration
	MaxSentData   int
	MaxRecvData   int
	TLSCertPath   string
	TLSKeyPath    string
	// TLSSelfSigned serves the notary over TLS with a certificate kept in
	// the data directory, generated on first use.
	TLSSelfSigned bool

	Retry             session.RetryPolicy
	ReadinessTimeout  time.Duration
	ReadinessInterval time.Duration

	ArchiveURIs []string
	Debug       bool
}

// DefaultConfig matches the behaviour of the demo without any flags.
func DefaultConfig() Config {
	return Config{
		DataDir:           interfaces.DefaultDataDir,
		TargetURL:         "https://httpbin.org/get",
		KeyAlgorithm:      cryptoutils.Secp256k1,
		NotaryHost:        "127.0.0.1",
		NotaryPort:        7047,
		NotaryTimeout:     30 * time.Second,
		MaxSentData:       100000,
		MaxRecvData:       100000,
		Retry:             session.DefaultRetryPolicy(),
		ReadinessTimeout:  session.DefaultReadinessTimeout,
		ReadinessInterval: session.DefaultReadinessInterval,
	}
}

func (c Config) Layout() interfaces.DataLayout {
	return interfaces.DataLayout{Dir: c.DataDir}
}

func (c Config) NotaryConfig() interfaces.NotaryConfig {
	layout := c.Layout()
	certPath, keyPath := c.TLSCertPath, c.TLSKeyPath
	if c.TLSSelfSigned {
		certPath, keyPath = layout.TLSCertPath(), layout.TLSKeyPath()
	}
	return interfaces.NotaryConfig{
		Host:           c.NotaryHost,
		Port:           c.NotaryPort,
		MaxSentData:    c.MaxSentData,
		MaxRecvData:    c.MaxRecvData,
		Timeout:        c.NotaryTimeout,
		TLSCertPath:    certPath,
		TLSKeyPath:     keyPath,
		PrivateKeyPath: layout.PrivateKeyPath(),
		PublicKeyPath:  layout.PublicKeyPath(),
	}
}

func (c Config) Descriptor() session.Descriptor {
	return session.Descriptor{
		TargetURL:         c.TargetURL,
		NotaryHost:        c.NotaryHost,
		NotaryPort:        c.NotaryPort,
		DataDir:           c.DataDir,
		Retry:             c.Retry,
		ReadinessTimeout:  c.ReadinessTimeout,
		ReadinessInterval: c.ReadinessInterval,
	}
}

func (c Config) Validate() error {
	var errs []error
	if _, err := cryptoutils.ParseKeyAlgorithm(string(c.KeyAlgorithm)); err != nil {
		errs = append(errs, err)
	}
	if c.TLSSelfSigned && (c.TLSCertPath != "" || c.TLSKeyPath != "") {
		errs = append(errs, errors.New("self-signed TLS excludes an explicit certificate and key"))
	}
	if err := c.NotaryConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Descriptor().Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, uri := range c.ArchiveURIs {
		if _, err := interfaces.NewStorageBackendLocation(uri); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Runner executes the demo: provision the notary identity, run the notary
// for the duration of one session, persist the proof.
type Runner struct {
	cfg          Config
	log          *slog.Logger
	provisioner  *provisioner.Provisioner
	notary       interfaces.NotaryService
	archive      interfaces.StorageBackend
	orchestrator *session.Orchestrator
}

func NewRunner(cfg Config, newProver interfaces.ProverFactory, log *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid demo config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	prov, err := provisioner.NewProvisioner(cfg.KeyAlgorithm, log)
	if err != nil {
		return nil, err
	}

	var svc interfaces.NotaryService
	if cfg.NotaryBinary != "" {
		process, err := notary.NewProcessService(cfg.NotaryBinary, cfg.NotaryConfig(), cfg.Layout().NotaryConfigPath(), log)
		if err != nil {
			return nil, err
		}
		svc = process.WithDebug(cfg.Debug)
	} else {
		svc = notary.NewExternalService(cfg.NotaryHost, cfg.NotaryPort, log)
	}

	var archive interfaces.StorageBackend
	orchestrator := session.NewOrchestrator(newProver, log)
	if len(cfg.ArchiveURIs) > 0 {
		archive, err = storage.NewStorageBackendFactory(log).CreateMultiBackend(cfg.ArchiveURIs)
		if err != nil {
			return nil, fmt.Errorf("failed to configure proof archive: %w", err)
		}
		orchestrator = orchestrator.WithArchive(archive)
	}

	return &Runner{
		cfg:          cfg,
		log:          log,
		provisioner:  prov,
		notary:       svc,
		archive:      archive,
		orchestrator: orchestrator,
	}, nil
}

// WithNotaryService returns a runner using svc instead of the notary
// lifecycle chosen from the config.
func (r *Runner) WithNotaryService(svc interfaces.NotaryService) *Runner {
	nr := *r
	nr.notary = svc
	return &nr
}

// Run returns the path of the written proof.
func (r *Runner) Run(ctx context.Context) (string, error) {
	layout := r.cfg.Layout()
	if err := os.MkdirAll(layout.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := r.provisioner.EnsureIdentity(layout.PrivateKeyPath(), layout.PublicKeyPath()); err != nil {
		return "", err
	}

	if err := r.archivePubkey(ctx); err != nil {
		return "", err
	}

	if err := r.prepareTLS(); err != nil {
		return "", err
	}

	var proofPath string
	err := notary.WithService(ctx, r.notary, r.log, func(ctx context.Context) error {
		path, err := r.orchestrator.Run(ctx, r.cfg.Descriptor())
		proofPath = path
		return err
	})
	if err != nil {
		return "", err
	}
	return proofPath, nil
}

// archivePubkey publishes the notary public key next to the archived proofs
// so they can be verified without access to the data directory.
func (r *Runner) archivePubkey(ctx context.Context) error {
	if r.archive == nil {
		return nil
	}

	data, err := os.ReadFile(r.cfg.Layout().PublicKeyPath())
	if err != nil {
		return fmt.Errorf("failed to read notary public key: %w", err)
	}
	pub, err := cryptoutils.NewNotaryPubkey(data)
	if err != nil {
		return err
	}

	id, err := r.archive.Store(ctx, pub, interfaces.PubkeyType)
	if err != nil {
		return fmt.Errorf("failed to archive notary public key: %w", err)
	}
	r.log.Info("Notary public key archived", "content_id", id.String(), "backend", r.archive.Name())
	return nil
}

const selfSignedValidity = 365 * 24 * time.Hour

// prepareTLS makes sure the notary's TLS material exists, belongs together
// and is valid for the notary host before the notary is started with it.
func (r *Runner) prepareTLS() error {
	nc := r.cfg.NotaryConfig()
	if !nc.TLSEnabled() {
		return nil
	}

	if r.cfg.TLSSelfSigned {
		return r.ensureSelfSignedCert(nc.TLSCertPath, nc.TLSKeyPath)
	}

	keyPEM, certPEM, err := readTLSPair(nc.TLSKeyPath, nc.TLSCertPath)
	if err != nil {
		return err
	}
	if err := cryptoutils.VerifyCertificate(keyPEM, certPEM, certHost(r.cfg.NotaryHost)); err != nil {
		return fmt.Errorf("invalid notary TLS material: %w", err)
	}
	return nil
}

// ensureSelfSignedCert keeps the certificate from earlier runs while it is
// valid for the notary host and replaces it otherwise.
func (r *Runner) ensureSelfSignedCert(certPath, keyPath string) error {
	present, err := provisioner.CheckPair(keyPath, certPath)
	if err != nil {
		return err
	}
	if present == provisioner.PairPresent {
		keyPEM, certPEM, err := readTLSPair(keyPath, certPath)
		if err != nil {
			return err
		}
		err = cryptoutils.VerifyCertificate(keyPEM, certPEM, certHost(r.cfg.NotaryHost))
		if err == nil {
			return nil
		}
		r.log.Warn("Replacing self-signed notary TLS certificate", "path", certPath, "err", err)
	}

	r.log.Info("Generating self-signed notary TLS certificate", "host", r.cfg.NotaryHost, "path", certPath)
	certPEM, keyPEM, err := cryptoutils.SelfSignedCert(r.cfg.NotaryHost, selfSignedValidity)
	if err != nil {
		return fmt.Errorf("failed to generate notary TLS certificate: %w", err)
	}
	if err := storage.WriteFileAtomic(keyPath, keyPEM, 0600); err != nil {
		return err
	}
	return storage.WriteFileAtomic(certPath, certPEM, 0644)
}

func readTLSPair(keyPath, certPath string) (keyPEM, certPEM []byte, err error) {
	certPEM, err = os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read notary TLS certificate: %w", err)
	}
	keyPEM, err = os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read notary TLS key: %w", err)
	}
	return keyPEM, certPEM, nil
}

// certHost returns the name the notary certificate must carry. A wildcard
// bind address is not a name clients dial, so only the validity window and
// key match are checked for it.
func certHost(notaryHost string) string {
	if ip := net.ParseIP(notaryHost); ip != nil && ip.IsUnspecified() {
		return ""
	}
	return notaryHost
}
