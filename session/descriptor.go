package session

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPSPort = 443

// Descriptor holds everything one proving session needs. It is created per
// run and discarded once the proof artifact is written.
type Descriptor struct {
	TargetURL  string
	NotaryHost string
	NotaryPort int
	DataDir    string

	Retry             RetryPolicy
	ReadinessTimeout  time.Duration
	ReadinessInterval time.Duration
}

// Target is the HTTPS endpoint the prover connects to.
type Target struct {
	ServerName string
	Port       int
}

func (t Target) String() string {
	return net.JoinHostPort(t.ServerName, strconv.Itoa(t.Port))
}

// ParseTarget extracts the server name and port from an https URL. A URL
// without an explicit port uses 443.
func ParseTarget(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target URL: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return Target{}, fmt.Errorf("target URL must use https, got %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("target URL %q has no host", rawURL)
	}

	port := defaultHTTPSPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Target{}, fmt.Errorf("invalid target port %q", p)
		}
	}
	return Target{ServerName: host, Port: port}, nil
}

// NotaryAddr is the host:port the readiness probe dials.
func (d Descriptor) NotaryAddr() string {
	return net.JoinHostPort(d.NotaryHost, strconv.Itoa(d.NotaryPort))
}

func (d Descriptor) Validate() error {
	var errs []error
	if _, err := ParseTarget(d.TargetURL); err != nil {
		errs = append(errs, err)
	}
	if d.NotaryHost == "" {
		errs = append(errs, errors.New("notary host is required"))
	}
	if d.NotaryPort < 1 || d.NotaryPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid notary port %d", d.NotaryPort))
	}
	if d.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if err := d.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if d.ReadinessTimeout <= 0 {
		errs = append(errs, fmt.Errorf("readiness timeout must be positive, got %s", d.ReadinessTimeout))
	}
	if d.ReadinessInterval <= 0 {
		errs = append(errs, fmt.Errorf("readiness interval must be positive, got %s", d.ReadinessInterval))
	}
	return errors.Join(errs...)
}
