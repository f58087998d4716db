// Package provisioner makes sure the notary has a durable signing identity
// before any session starts.
package provisioner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/tlsn-notary-demo/cryptoutils"
	"github.com/ruteri/tlsn-notary-demo/storage"
)

const (
	privateKeyMode os.FileMode = 0600
	publicKeyMode  os.FileMode = 0644
)

// KeyGenerator returns a PEM encoded key pair for the algorithm.
type KeyGenerator func(alg cryptoutils.KeyAlgorithm) (cryptoutils.NotaryPubkey, cryptoutils.NotaryPrivkey, error)

// FileWriter persists data at path with the given mode.
type FileWriter func(path string, data []byte, mode os.FileMode) error

// Provisioner generates, persists and validates the notary key pair.
type Provisioner struct {
	algorithm cryptoutils.KeyAlgorithm
	log       *slog.Logger

	generate  KeyGenerator
	writeFile FileWriter
}

// NewProvisioner creates a provisioner for the given key algorithm.
func NewProvisioner(alg cryptoutils.KeyAlgorithm, log *slog.Logger) (*Provisioner, error) {
	alg, err := cryptoutils.ParseKeyAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Provisioner{
		algorithm: alg,
		log:       log,
		generate:  cryptoutils.GenerateKeypair,
		writeFile: storage.WriteFileAtomic,
	}, nil
}

// WithKeyGenerator returns a copy of the provisioner using gen for new pairs.
func (p *Provisioner) WithKeyGenerator(gen KeyGenerator) *Provisioner {
	np := *p
	np.generate = gen
	return &np
}

// WithFileWriter returns a copy of the provisioner persisting keys through w.
func (p *Provisioner) WithFileWriter(w FileWriter) *Provisioner {
	np := *p
	np.writeFile = w
	return &np
}

// Algorithm returns the configured key algorithm.
func (p *Provisioner) Algorithm() cryptoutils.KeyAlgorithm {
	return p.algorithm
}

// EnsureIdentity guarantees that privPath and pubPath hold a matching key
// pair of the configured algorithm.
//
// A complete existing pair is validated and reused; a complete but invalid
// pair is an error. If either file is missing both are regenerated, written
// atomically and read back. On any failure after generation starts, both
// paths are removed so that the next run starts from an absent pair.
//
// All failures are returned as *ProvisioningError.
func (p *Provisioner) EnsureIdentity(privPath, pubPath string) error {
	presence, err := CheckPair(privPath, pubPath)
	if err != nil {
		return &ProvisioningError{Step: StepCheck, Err: err}
	}

	if presence == PairPresent {
		if err := p.validate(privPath, pubPath); err != nil {
			return &ProvisioningError{Step: StepValidate, Path: privPath, Err: err}
		}
		p.log.Info("Reusing existing notary key pair",
			"algorithm", p.algorithm,
			"private_key", privPath,
			"public_key", pubPath)
		return nil
	}

	if err := p.provision(privPath, pubPath); err != nil {
		p.rollback(privPath, pubPath)
		return err
	}

	p.log.Info("Generated notary key pair",
		"algorithm", p.algorithm,
		"private_key", privPath,
		"public_key", pubPath)
	return nil
}

func (p *Provisioner) provision(privPath, pubPath string) error {
	for _, path := range []string{privPath, pubPath} {
		if ok, _ := exists(path); ok {
			p.log.Warn("Discarding incomplete key pair", "path", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return &ProvisioningError{Step: StepPrepare, Path: path, Err: err}
		}
	}
	p.removeLeftovers(privPath, pubPath)

	pub, priv, err := p.generate(p.algorithm)
	if err != nil {
		return &ProvisioningError{Step: StepGenerate, Err: err}
	}

	if err := p.writeFile(privPath, priv, privateKeyMode); err != nil {
		return &ProvisioningError{Step: StepWritePrivate, Path: privPath, Err: err}
	}
	if err := p.writeFile(pubPath, pub, publicKeyMode); err != nil {
		return &ProvisioningError{Step: StepWritePublic, Path: pubPath, Err: err}
	}

	if err := p.validate(privPath, pubPath); err != nil {
		return &ProvisioningError{Step: StepVerify, Path: privPath, Err: err}
	}
	return nil
}

// validate reloads both files and checks algorithm, curve and pairing.
func (p *Provisioner) validate(privPath, pubPath string) error {
	privData, err := os.ReadFile(privPath)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	pubData, err := os.ReadFile(pubPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	return cryptoutils.VerifyKeypair(p.algorithm, cryptoutils.NotaryPrivkey(privData), cryptoutils.NotaryPubkey(pubData))
}

// rollback removes both key files and any temp files. Failures are logged
// and never replace the error that triggered the rollback.
func (p *Provisioner) rollback(privPath, pubPath string) {
	for _, path := range []string{privPath, pubPath} {
		if err := storage.RemoveIfExists(path); err != nil {
			p.log.Warn("Failed to remove key file during rollback", "path", path, "err", err)
		}
	}
	p.removeLeftovers(privPath, pubPath)
}

func (p *Provisioner) removeLeftovers(paths ...string) {
	for _, path := range paths {
		leftovers, err := storage.LeftoverTempFiles(path)
		if err != nil {
			p.log.Warn("Failed to list temp files", "path", path, "err", err)
			continue
		}
		for _, tmp := range leftovers {
			if err := storage.RemoveIfExists(tmp); err != nil {
				p.log.Warn("Failed to remove temp file", "path", tmp, "err", err)
			}
		}
	}
}
