package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/tlsn-notary-demo/cmd/flags"
	"github.com/ruteri/tlsn-notary-demo/httpserver"
	"github.com/ruteri/tlsn-notary-demo/interfaces"
	"github.com/ruteri/tlsn-notary-demo/storage"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	EnvVars: []string{"TLSN_DEMO_LISTEN_ADDR"},
	Usage:   "address to listen on for API",
}

func main() {
	app := &cli.App{
		Name:  "proof-server",
		Usage: "Serve the notary public key and notarization proofs",
		Flags: append(append([]cli.Flag{
			flagListenAddr,
			flags.DataDirFlag,
			flags.ArchiveFlag,
			flags.LogServiceFlagFn("proof-server"),
		}, flags.CommonFlags...), flags.ServerFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			layout := interfaces.DataLayout{Dir: cCtx.String(flags.DataDirFlag.Name)}

			var archive interfaces.StorageBackend
			if uris := cCtx.StringSlice(flags.ArchiveFlag.Name); len(uris) > 0 {
				multi, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(uris)
				if err != nil {
					logger.Error("Failed to configure proof archive", "err", err)
					return err
				}
				logger.Info("Serving archived proofs", "archive", multi.LocationURI())
				archive = multi
			}

			handler := httpserver.NewHandler(layout, archive, logger)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))

			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "dataDir", layout.Dir)
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
