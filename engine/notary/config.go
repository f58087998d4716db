package notary

import (
	"fmt"
	"path/filepath"

	"github.com/ruteri/tlsn-notary-demo/interfaces"
	"github.com/ruteri/tlsn-notary-demo/storage"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the configuration file layout of the notary server binary.
type ServerConfig struct {
	Server        ServerSection        `yaml:"server"`
	Notarization  NotarizationSection  `yaml:"notarization"`
	TLS           TLSSection           `yaml:"tls"`
	NotaryKey     NotaryKeySection     `yaml:"notary_key"`
	Logging       LoggingSection       `yaml:"logging"`
	Authorization AuthorizationSection `yaml:"authorization"`
}

type ServerSection struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type NotarizationSection struct {
	MaxSentData int `yaml:"max_sent_data"`
	MaxRecvData int `yaml:"max_recv_data"`
	// Timeout is in seconds.
	Timeout int `yaml:"timeout"`
}

type TLSSection struct {
	Enabled            bool   `yaml:"enabled"`
	PrivateKeyPEMPath  string `yaml:"private_key_pem_path,omitempty"`
	CertificatePEMPath string `yaml:"certificate_pem_path,omitempty"`
}

type NotaryKeySection struct {
	PrivateKeyPEMPath string `yaml:"private_key_pem_path"`
	PublicKeyPEMPath  string `yaml:"public_key_pem_path"`
}

type LoggingSection struct {
	Level string `yaml:"level"`
}

type AuthorizationSection struct {
	Enabled bool `yaml:"enabled"`
}

const serverName = "tlsn-notary-demo"

// NewServerConfig maps a NotaryConfig onto the server's file format. File
// paths are made absolute since the server may run in another directory.
func NewServerConfig(cfg interfaces.NotaryConfig, debug bool) (ServerConfig, error) {
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}

	for _, p := range []*string{&cfg.PrivateKeyPath, &cfg.PublicKeyPath, &cfg.TLSCertPath, &cfg.TLSKeyPath} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("failed to resolve %s: %w", *p, err)
		}
		*p = abs
	}

	timeout := int(cfg.Timeout.Seconds())
	if timeout < 1 {
		timeout = 1
	}

	level := "INFO"
	if debug {
		level = "DEBUG"
	}

	return ServerConfig{
		Server: ServerSection{
			Name: serverName,
			Host: cfg.Host,
			Port: cfg.Port,
		},
		Notarization: NotarizationSection{
			MaxSentData: cfg.MaxSentData,
			MaxRecvData: cfg.MaxRecvData,
			Timeout:     timeout,
		},
		TLS: TLSSection{
			Enabled:            cfg.TLSEnabled(),
			PrivateKeyPEMPath:  cfg.TLSKeyPath,
			CertificatePEMPath: cfg.TLSCertPath,
		},
		NotaryKey: NotaryKeySection{
			PrivateKeyPEMPath: cfg.PrivateKeyPath,
			PublicKeyPEMPath:  cfg.PublicKeyPath,
		},
		Logging:       LoggingSection{Level: level},
		Authorization: AuthorizationSection{Enabled: false},
	}, nil
}

// WriteServerConfig renders cfg as YAML and writes it atomically to path.
func WriteServerConfig(path string, cfg ServerConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal notary config: %w", err)
	}
	if err := storage.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write notary config: %w", err)
	}
	return nil
}
