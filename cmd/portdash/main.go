// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/envoyproxy/portdash/internal/credentials"
	"github.com/envoyproxy/portdash/internal/version"
)

type (
	cmd struct {
		Config  kong.ConfigFlag `help:"YAML file supplying default flag values." placeholder:"FILE"`
		Version struct{}        `cmd:"" help:"Show version."`
		Serve   cmdServe        `cmd:"" default:"withargs" help:"Keep a valid Port API token and serve the admin endpoints."`
	}
	cmdServe struct {
		PrimaryToken   string `help:"Preferred pre-provisioned bearer token." env:"PRIMARY_TOKEN"`
		SecondaryToken string `help:"Bearer token used when the primary stops validating." env:"SECONDARY_TOKEN"`
		ServiceToken   string `help:"Service token, reported in the status only." env:"SERVICE_TOKEN"`
		ClientID       string `name:"client-id" help:"Client id exchanged for new tokens." env:"CLIENT_ID"`
		ClientSecret   string `help:"Client secret exchanged for new tokens." env:"CLIENT_SECRET"`

		Listen           string        `help:"Admin server listen address." default:":8080" env:"LISTEN_ADDR"`
		BaseURL          string        `name:"base-url" help:"Port API base URL." default:"https://api.getport.io" env:"PORT_API_URL"`
		RotationInterval time.Duration `help:"Interval between rotation attempts." default:"2h30m" env:"ROTATION_INTERVAL"`
		RequestTimeout   time.Duration `help:"Timeout of every validation and issuance call." default:"10s" env:"REQUEST_TIMEOUT"`
		LogLevel         string        `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"LOG_LEVEL"`
	}
)

// serveFn runs the serve command until ctx is done.
type serveFn func(ctx context.Context, c cmdServe, stderr io.Writer) error

func main() {
	if err := loadDotEnv(".env"); err != nil {
		log.Fatalf("Error loading .env: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	doMain(ctx, os.Stdout, os.Stderr, os.Args[1:], serve)
}

func doMain(ctx context.Context, stdout, stderr io.Writer, args []string, sf serveFn) {
	var c cmd
	parser, err := kong.New(&c,
		kong.Name("portdash"),
		kong.Description("Port API credential lifecycle manager"),
		kong.Writers(stdout, stderr),
		kong.Configuration(yamlConfig),
	)
	if err != nil {
		log.Fatalf("Error creating parser: %v", err)
	}
	parsed, err := parser.Parse(args)
	parser.FatalIfErrorf(err)
	switch parsed.Command() {
	case "version":
		_, _ = fmt.Fprintf(stdout, "portdash: %s\n", version.Version)
	case "serve":
		if err = sf(ctx, c.Serve, stderr); err != nil {
			log.Fatalf("Error serving: %v", err)
		}
	default:
		panic("unreachable")
	}
}

// credentialsConfig copies the resolved credential flags into the immutable runtime config.
func (c cmdServe) credentialsConfig() credentials.Config {
	return credentials.Config{
		PrimaryToken:   c.PrimaryToken,
		SecondaryToken: c.SecondaryToken,
		ServiceToken:   c.ServiceToken,
		ClientID:       c.ClientID,
		ClientSecret:   c.ClientSecret,
	}
}

// loadDotEnv loads path into the process environment. Variables that are
// already set are left alone and a missing file is ignored.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
