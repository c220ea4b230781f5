package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ruteri/device-key-registration/api/devicebridge"
	"github.com/ruteri/device-key-registration/api/registrationhandler"
	"github.com/ruteri/device-key-registration/api/server"
	"github.com/ruteri/device-key-registration/cmd/flags"
	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/keyprovider"
	"github.com/ruteri/device-key-registration/negotiator"
	"github.com/ruteri/device-key-registration/storage"
	"github.com/urfave/cli/v2"
)

var deviceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "alias",
		Value: keyprovider.DefaultAlias,
		Usage: "keystore alias of the device identity key",
	},
	&cli.IntFlag{
		Name:  "key-size",
		Value: keyprovider.DefaultKeySize,
		Usage: "RSA modulus size in bits for a new key pair",
	},
	&cli.StringFlag{
		Name:  "format",
		Value: "android",
		Usage: "public key export format: 'android' (SubjectPublicKeyInfo DER) or 'ios' (raw RSAPublicKey)",
	},
	&cli.StringFlag{
		Name:  "keystore-uri",
		Usage: "storage backend URI to persist the sealed key pair (file://, vault://, s3://); in-memory when empty",
	},
	&cli.StringFlag{
		Name:    "keystore-passphrase",
		Usage:   "passphrase sealing the persisted key pair",
		EnvVars: []string{"DEVICE_KEYSTORE_PASSPHRASE"},
	},
	&cli.BoolFlag{
		Name:  "require-presence",
		Value: false,
		Usage: "confirm presence on the terminal before each private key use",
	},
	&cli.DurationFlag{
		Name:  "prompt-timeout",
		Value: keyprovider.DefaultPromptTimeout,
		Usage: "maximum time to wait for a presence confirmation",
	},
	&cli.DurationFlag{
		Name:  "auth-validity",
		Value: 10 * time.Second,
		Usage: "how long one presence confirmation authorizes further decryptions",
	},
	flags.LogServiceFlagFn("device"),
}

func main() {
	app := &cli.App{
		Name:  "device",
		Usage: "Device side of key registration: export the key, register, decrypt the secret",
		Flags: append(deviceFlags, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:   "public-key",
				Usage:  "Print the device public key in wire form, generating the key pair if needed",
				Action: runPublicKey,
			},
			{
				Name:  "register",
				Usage: "Register with a server and decrypt the returned secret",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Value: "http://127.0.0.1:3000",
						Usage: "registration server base URL",
					},
				},
				Action: runRegister,
			},
			{
				Name:      "decrypt",
				Usage:     "Decrypt a base64 encrypted secret; reads stdin when no argument is given",
				ArgsUsage: "[encryptedBase64]",
				Action:    runDecrypt,
			},
			{
				Name:   "delete-key",
				Usage:  "Delete the device key pair",
				Action: runDeleteKey,
			},
			{
				Name:  "serve",
				Usage: "Serve the key bridge as POST /keys/{method}",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "listen-addr",
						Value: "127.0.0.1:8765",
						Usage: "address to listen on for the bridge",
					},
				}, flags.PprofFlag, flags.DrainSecondsFlag, flags.MetricsAddrFlag),
				Action: runServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupBridge(cCtx *cli.Context) (*devicebridge.Bridge, *slog.Logger, error) {
	logger := flags.SetupLogger(cCtx)

	format, err := interfaces.ParseKeyFormat(cCtx.String("format"))
	if err != nil {
		return nil, nil, err
	}

	var backend interfaces.StorageBackend
	if uri := cCtx.String("keystore-uri"); uri != "" {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, nil, err
		}
		backend, err = storage.NewStorageBackendFactory(logger).StorageBackendFor(loc)
		if err != nil {
			return nil, nil, err
		}
	}

	software, err := keyprovider.NewSoftwareKeystore(backend, []byte(cCtx.String("keystore-passphrase")), logger)
	if err != nil {
		return nil, nil, err
	}

	var presence interfaces.PresenceChecker
	if cCtx.Bool("require-presence") {
		presence = keyprovider.NewTerminalPresence(os.Stdin, os.Stderr)
	}

	provider, err := keyprovider.SelectProvider(cCtx.Context, nil, software, presence, keyprovider.Config{
		Alias:         cCtx.String("alias"),
		KeySize:       cCtx.Int("key-size"),
		ExportFormat:  format,
		PromptTimeout: cCtx.Duration("prompt-timeout"),
		AuthValidity:  cCtx.Duration("auth-validity"),
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	neg, err := negotiator.New(negotiator.Config{Accept: negotiator.AcceptUTF8}, logger)
	if err != nil {
		return nil, nil, err
	}

	return devicebridge.New(provider, neg, logger), logger, nil
}

func runPublicKey(cCtx *cli.Context) error {
	bridge, _, err := setupBridge(cCtx)
	if err != nil {
		return err
	}
	wire, err := bridge.GetPublicKey(cCtx.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, wire)
	return nil
}

func runRegister(cCtx *cli.Context) error {
	bridge, logger, err := setupBridge(cCtx)
	if err != nil {
		return err
	}

	wire, err := bridge.GetPublicKey(cCtx.Context)
	if err != nil {
		return err
	}

	client := registrationhandler.NewClient(cCtx.String("server"), nil)
	resp, err := client.Register(cCtx.Context, wire)
	if err != nil {
		logger.Error("Registration failed", "err", err)
		return err
	}
	logger.Info("Registered device key", "encryptedLength", len(resp.EncryptedBase64))

	secret, err := bridge.DecryptSecret(cCtx.Context, resp.EncryptedBase64)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, secret)
	return nil
}

func runDecrypt(cCtx *cli.Context) error {
	encrypted := cCtx.Args().First()
	if encrypted == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		encrypted = strings.TrimSpace(string(data))
	}

	bridge, _, err := setupBridge(cCtx)
	if err != nil {
		return err
	}
	secret, err := bridge.DecryptSecret(cCtx.Context, encrypted)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, secret)
	return nil
}

func runDeleteKey(cCtx *cli.Context) error {
	bridge, _, err := setupBridge(cCtx)
	if err != nil {
		return err
	}
	deleted, err := bridge.DeleteKey(cCtx.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, deleted)
	return nil
}

func runServe(cCtx *cli.Context) error {
	bridge, logger, err := setupBridge(cCtx)
	if err != nil {
		return err
	}
	if cCtx.Bool("require-presence") {
		return errors.New("--require-presence reads the terminal and cannot be combined with serve")
	}

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))
	srv, err := server.New(cfg, bridge)
	if err != nil {
		return err
	}
	srv.RunInBackground()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutdown signal received")
	srv.Shutdown()
	return nil
}
