// Command cbt runs concurrent behavior trees.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/go-cbt/internal/command"
	"github.com/joeycumines/go-cbt/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	return newRegistry(cfg, path).Run(ctx, args, stdout, stderr)
}

func newRegistry(cfg *config.Config, configPath string) *command.Registry {
	r := command.NewRegistry()
	r.Register(command.NewHelpCommand(r))
	r.Register(command.NewVersionCommand(version))
	r.Register(command.NewConfigCommand(cfg, configPath))
	r.Register(command.NewRunCommand(cfg))
	r.Register(command.NewValidateCommand(cfg))
	return r
}
