package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/tlsn-notary-demo/interfaces"
)

// StorageBackendFactory creates archive backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a backend from a location URI.
//
// Supported schemes:
//   - file:///var/lib/tlsn/archive or file://./relative/dir
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=eu-west-1&endpoint=http://minio:9000&path_style=true&public=true
//   - ipfs://127.0.0.1:5001/tlsn-notary-demo?timeout=30s
//   - vault://vault.example.com:8200/secret/tlsn?token=...&tls=false
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating storage backend", slog.String("scheme", location.Scheme), slog.String("host", location.Host))

	switch location.Scheme {
	case "file":
		return sf.createFileBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	case "ipfs":
		return sf.createIPFSBackend(location)
	case "vault":
		return sf.createVaultBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiBackend parses and creates every URI. Unlike a best-effort
// replica list, a URI that cannot be turned into a backend is an error, so
// that a typo in the archive configuration is reported before a session runs.
func (sf *StorageBackendFactory) CreateMultiBackend(locationURIs []string) (*MultiStorageBackend, error) {
	if len(locationURIs) == 0 {
		return nil, fmt.Errorf("%w: no archive locations configured", interfaces.ErrInvalidLocationURI)
	}

	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))
	for _, uri := range locationURIs {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage backend for %s: %w", redactURI(uri), err)
		}
		backends = append(backends, backend)
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}
	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	cfg := S3Config{
		Bucket:     location.Host,
		Prefix:     location.Path,
		Region:     location.GetParam("region"),
		Endpoint:   location.GetParam("endpoint"),
		PathStyle:  location.GetParamBool("path_style"),
		PublicRead: location.GetParamBool("public"),
	}
	if location.Auth != "" {
		user, err := url.Parse("s3://" + location.Auth + "@" + location.Host)
		if err == nil && user.User != nil {
			cfg.AccessKey = user.User.Username()
			cfg.SecretKey, _ = user.User.Password()
		}
	}
	return NewS3Backend(cfg, sf.log)
}

func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	u, err := url.Parse(location.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid IPFS timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
	}

	return NewIPFSBackend(u.Hostname(), u.Port(), location.Path, timeout, sf.log)
}

func (sf *StorageBackendFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing Vault address", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if raw := location.GetParam("tls"); raw != "" && !location.GetParamBool("tls") {
		scheme = "http"
	}

	mount, dataPath, _ := strings.Cut(strings.Trim(location.Path, "/"), "/")
	return NewVaultBackend(scheme+"://"+location.Host, mount, dataPath, location.GetParam("token"), sf.log)
}

// redactURI strips credentials and query parameters before a URI is logged.
func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<invalid uri>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
