package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/tlsn-notary-demo/cmd/flags"
	"github.com/ruteri/tlsn-notary-demo/common"
	"github.com/ruteri/tlsn-notary-demo/cryptoutils"
	"github.com/ruteri/tlsn-notary-demo/demo"
	"github.com/ruteri/tlsn-notary-demo/engine/prover"
	"github.com/ruteri/tlsn-notary-demo/session"
	"github.com/ruteri/tlsn-notary-demo/telemetry"
	"github.com/urfave/cli/v2"
)

var defaults = demo.DefaultConfig()

var flagTargetURL = &cli.StringFlag{
	Name:    "target-url",
	Value:   defaults.TargetURL,
	EnvVars: []string{"TLSN_DEMO_TARGET_URL"},
	Usage:   "https URL the prover fetches under notarization",
}
var flagNotaryHost = &cli.StringFlag{
	Name:    "notary-host",
	Value:   defaults.NotaryHost,
	EnvVars: []string{"TLSN_DEMO_NOTARY_HOST"},
	Usage:   "host the notary binds to and the prover dials",
}
var flagNotaryPort = &cli.IntFlag{
	Name:    "notary-port",
	Value:   defaults.NotaryPort,
	EnvVars: []string{"TLSN_DEMO_NOTARY_PORT"},
	Usage:   "notary port",
}
var flagNotaryBinary = &cli.StringFlag{
	Name:    "notary-binary",
	EnvVars: []string{"TLSN_DEMO_NOTARY_BINARY"},
	Usage:   "notary-server binary to launch; empty means a notary is already running",
}
var flagProverURL = &cli.StringFlag{
	Name:    "prover-url",
	Value:   "http://127.0.0.1:7048",
	EnvVars: []string{"TLSN_DEMO_PROVER_URL"},
	Usage:   "base URL of the prover sidecar",
}
var flagKeyAlgorithm = &cli.StringFlag{
	Name:    "key-algorithm",
	Value:   string(defaults.KeyAlgorithm),
	EnvVars: []string{"TLSN_DEMO_KEY_ALGORITHM"},
	Usage:   "notary identity key algorithm: secp256k1, p256, rsa2048 or rsa2048-pkcs1",
}
var flagMaxSentData = &cli.IntFlag{
	Name:    "max-sent-data",
	Value:   defaults.MaxSentData,
	EnvVars: []string{"TLSN_DEMO_MAX_SENT_DATA"},
	Usage:   "maximum bytes the prover may send to the target",
}
var flagMaxRecvData = &cli.IntFlag{
	Name:    "max-recv-data",
	Value:   defaults.MaxRecvData,
	EnvVars: []string{"TLSN_DEMO_MAX_RECV_DATA"},
	Usage:   "maximum bytes the prover may receive from the target",
}
var flagNotaryTimeout = &cli.DurationFlag{
	Name:    "notary-timeout",
	Value:   defaults.NotaryTimeout,
	EnvVars: []string{"TLSN_DEMO_NOTARY_TIMEOUT"},
	Usage:   "notarization handshake timeout",
}
var flagNotaryTLSCert = &cli.StringFlag{
	Name:    "notary-tls-cert",
	EnvVars: []string{"TLSN_DEMO_NOTARY_TLS_CERT"},
	Usage:   "PEM certificate for the notary's TLS listener (requires --notary-tls-key)",
}
var flagNotaryTLSKey = &cli.StringFlag{
	Name:    "notary-tls-key",
	EnvVars: []string{"TLSN_DEMO_NOTARY_TLS_KEY"},
	Usage:   "PEM private key for the notary's TLS listener (requires --notary-tls-cert)",
}
var flagNotaryTLSSelfSigned = &cli.BoolFlag{
	Name:    "notary-tls-self-signed",
	EnvVars: []string{"TLSN_DEMO_NOTARY_TLS_SELF_SIGNED"},
	Usage:   "serve the notary over TLS with a self-signed certificate kept in the data directory",
}
var flagRetryAttempts = &cli.IntFlag{
	Name:    "retry-attempts",
	Value:   defaults.Retry.Attempts,
	EnvVars: []string{"TLSN_DEMO_RETRY_ATTEMPTS"},
	Usage:   "total attempts for prover setup and connect",
}
var flagRetryBaseDelay = &cli.DurationFlag{
	Name:    "retry-base-delay",
	Value:   defaults.Retry.BaseDelay,
	EnvVars: []string{"TLSN_DEMO_RETRY_BASE_DELAY"},
	Usage:   "wait before the first retry, doubled on every following one",
}
var flagReadinessTimeout = &cli.DurationFlag{
	Name:    "readiness-timeout",
	Value:   defaults.ReadinessTimeout,
	EnvVars: []string{"TLSN_DEMO_READINESS_TIMEOUT"},
	Usage:   "how long to wait for the notary to accept connections",
}
var flagReadinessInterval = &cli.DurationFlag{
	Name:    "readiness-interval",
	Value:   defaults.ReadinessInterval,
	EnvVars: []string{"TLSN_DEMO_READINESS_INTERVAL"},
	Usage:   "pause between readiness probes",
}

var flagsDemo = []cli.Flag{
	flagTargetURL,
	flags.DataDirFlag,
	flagNotaryHost,
	flagNotaryPort,
	flagNotaryBinary,
	flagProverURL,
	flagKeyAlgorithm,
	flagMaxSentData,
	flagMaxRecvData,
	flagNotaryTimeout,
	flagNotaryTLSCert,
	flagNotaryTLSKey,
	flagNotaryTLSSelfSigned,
	flagRetryAttempts,
	flagRetryBaseDelay,
	flagReadinessTimeout,
	flagReadinessInterval,
	flags.ArchiveFlag,
}

func configFromFlags(cCtx *cli.Context) (demo.Config, error) {
	alg, err := cryptoutils.ParseKeyAlgorithm(cCtx.String(flagKeyAlgorithm.Name))
	if err != nil {
		return demo.Config{}, err
	}

	return demo.Config{
		DataDir:      cCtx.String(flags.DataDirFlag.Name),
		TargetURL:    cCtx.String(flagTargetURL.Name),
		KeyAlgorithm: alg,

		NotaryHost:    cCtx.String(flagNotaryHost.Name),
		NotaryPort:    cCtx.Int(flagNotaryPort.Name),
		NotaryBinary:  cCtx.String(flagNotaryBinary.Name),
		NotaryTimeout: cCtx.Duration(flagNotaryTimeout.Name),
		MaxSentData:   cCtx.Int(flagMaxSentData.Name),
		MaxRecvData:   cCtx.Int(flagMaxRecvData.Name),
		TLSCertPath:   cCtx.String(flagNotaryTLSCert.Name),
		TLSKeyPath:    cCtx.String(flagNotaryTLSKey.Name),
		TLSSelfSigned: cCtx.Bool(flagNotaryTLSSelfSigned.Name),

		Retry: session.RetryPolicy{
			Attempts:  cCtx.Int(flagRetryAttempts.Name),
			BaseDelay: cCtx.Duration(flagRetryBaseDelay.Name),
		},
		ReadinessTimeout:  cCtx.Duration(flagReadinessTimeout.Name),
		ReadinessInterval: cCtx.Duration(flagReadinessInterval.Name),

		ArchiveURIs: cCtx.StringSlice(flags.ArchiveFlag.Name),
		Debug:       cCtx.Bool(flags.LogDebugFlag.Name),
	}, nil
}

func main() {
	app := &cli.App{
		Name:  "tlsn-demo",
		Usage: "Provision a notary identity, run one notarized TLS session and persist the proof",
		Flags: append(append(flagsDemo, flags.CommonFlags...), flags.LogServiceFlagFn("tlsn-demo")),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := configFromFlags(cCtx)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, "tlsn-demo", common.Version)
			if err != nil {
				logger.Warn("Tracing disabled", "err", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(ctx); err != nil {
					logger.Warn("Failed to flush traces", "err", err)
				}
			}()

			proverClient := &http.Client{Timeout: cfg.NotaryTimeout + 30*time.Second}
			newProver := prover.NewFactory(cCtx.String(flagProverURL.Name), proverClient, logger)

			runner, err := demo.NewRunner(cfg, newProver, logger)
			if err != nil {
				return err
			}

			proofPath, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cCtx.App.Writer, "Proof written to %s\n", proofPath)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
