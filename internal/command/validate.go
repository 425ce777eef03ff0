package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/joeycumines/go-cbt/internal/config"
	"github.com/joeycumines/go-cbt/internal/logging"
	"github.com/joeycumines/go-cbt/internal/tree"
	"github.com/joeycumines/go-cbt/internal/treefile"
)

// ValidateCommand checks tree files without running them.
type ValidateCommand struct {
	*BaseCommand
	config *config.Config
	format string
}

// NewValidateCommand returns a validate command.
func NewValidateCommand(cfg *config.Config) *ValidateCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &ValidateCommand{
		BaseCommand: NewBaseCommand(
			"validate",
			"Check tree files for errors",
			"validate [-format text|yaml] file...",
		),
		config: cfg,
	}
}

// SetupFlags implements Command.
func (c *ValidateCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", "", "Output: text (a summary) or yaml (the normalized document)")
}

// Execute implements Command.
func (c *ValidateCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintf(stderr, "Usage: cbt %s\n", c.Usage())
		return errors.New("no tree files given")
	}
	format := c.format
	if format == "" {
		format = config.DefaultSchema().ResolveFor(c.config, c.Name(), "format")
	}
	if format != "text" && format != "yaml" {
		return fmt.Errorf("invalid format: %s", format)
	}

	reg, err := newTreeRegistry(logging.NewNop())
	if err != nil {
		return err
	}
	failed := 0
	for _, path := range args {
		f, err := checkTreeFile(path, reg)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(stderr, "%s: %v\n", path, err)
			continue
		}
		if format == "yaml" {
			data, err := f.Marshal()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "# %s\n%s", path, data)
			continue
		}
		_, _ = fmt.Fprintf(stdout, "%s: ok (%q, %d nodes)\n", path, f.Name, f.Count())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tree files invalid", failed, len(args))
	}
	return nil
}

// checkTreeFile loads path and builds it against reg, without starting it.
func checkTreeFile(path string, reg *treefile.Registry) (*treefile.File, error) {
	f, err := treefile.Load(path)
	if err != nil {
		return nil, err
	}
	if _, _, err := f.Build(reg, tree.WithLogger(logging.NewNop())); err != nil {
		return nil, err
	}
	return f, nil
}
