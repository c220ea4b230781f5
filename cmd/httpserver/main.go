package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/device-key-registration/api/registrationhandler"
	"github.com/ruteri/device-key-registration/api/server"
	"github.com/ruteri/device-key-registration/cmd/flags"
	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/registration"
	"github.com/ruteri/device-key-registration/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:3000",
		Usage: "address to listen on for API",
	},
	&cli.StringSliceFlag{
		Name:  "secret-uri",
		Usage: "storage backend URI holding the protected secret; repeat for fallbacks (file://, s3://, vault://, ipfs://, env://)",
	},
	&cli.StringFlag{
		Name:  "secret-name",
		Value: "device-secret",
		Usage: "name of the protected secret within the storage backend",
	},
	&cli.StringFlag{
		Name:    "secret",
		Usage:   "protected secret value, for development only; ignored when --secret-uri is set",
		EnvVars: []string{"DEVICE_SECRET"},
	},
	&cli.StringFlag{
		Name:  "scheme",
		Value: registration.DefaultScheme.String(),
		Usage: "RSA scheme used to encrypt the secret (PKCS1v1_5, OAEP_SHA256_MGF1SHA256, OAEP_SHA1_MGF1SHA1, OAEP_SHA256_MGF1SHA1 or a platform alias)",
	},
	&cli.BoolFlag{
		Name:  "enable-diagnostics",
		Value: false,
		Usage: "add debug encryptions to /register and mount /test-configs and /get-secret; exposes the secret",
	},
	flags.LogServiceFlagFn("device-registration"),
}

func main() {
	app := &cli.App{
		Name:  "registration-server",
		Usage: "Encrypt a protected secret for registering devices",
		Flags: append(serverFlags, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			secretURIs := cCtx.StringSlice("secret-uri")
			secretName := cCtx.String("secret-name")
			literalSecret := cCtx.String("secret")
			schemeName := cCtx.String("scheme")
			enableDiagnostics := cCtx.Bool("enable-diagnostics")

			logger := flags.SetupLogger(cCtx)

			scheme, err := interfaces.ParseCipherScheme(schemeName)
			if err != nil {
				logger.Error("Invalid scheme", "err", err)
				return err
			}

			var secret interfaces.SecretSource
			switch {
			case len(secretURIs) > 0:
				if err := interfaces.ValidateBlobName(secretName); err != nil {
					return fmt.Errorf("invalid --secret-name: %w", err)
				}
				locations := make([]interfaces.StorageBackendLocation, 0, len(secretURIs))
				for _, uri := range secretURIs {
					loc, err := interfaces.NewStorageBackendLocation(uri)
					if err != nil {
						logger.Error("Invalid secret URI", "err", err)
						return err
					}
					locations = append(locations, loc)
				}
				backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
				if err != nil {
					logger.Error("Failed to create secret storage", "err", err)
					return err
				}
				logger.Info("Serving secret from storage", "backend", backend.Name(), "name", secretName)
				secret = storage.SecretRef{Backend: backend, Name: secretName}
			case literalSecret != "":
				logger.Warn("Serving secret from command line, use --secret-uri outside development")
				secret = storage.StaticSecret(literalSecret)
			default:
				return errors.New("one of --secret-uri or --secret is required")
			}

			service, err := registration.New(registration.Config{
				Scheme:      scheme,
				Diagnostics: enableDiagnostics,
			}, logger)
			if err != nil {
				logger.Error("Failed to create registration service", "err", err)
				return err
			}

			cfg := flags.ConfigureServer(cCtx, logger, listenAddr)
			srv, err := server.New(cfg, registrationhandler.NewHandler(service, secret, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "scheme", scheme.String(), "diagnostics", enableDiagnostics)
			srv.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			srv.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
