package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model/policy"
	"github.com/urfave/cli/v3"
)

// Policy holds the CLI flag for the engine policy file
type Policy struct {
	path string
}

// Flags returns CLI flags for policy configuration
func (p *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path to the policy TOML file (engine defaults when empty)",
			Sources:     cli.EnvVars("MNEMON_POLICY"),
			Destination: &p.path,
		},
	}
}

// Path returns the configured policy file path
func (p *Policy) Path() string {
	return p.path
}

// LogAttrs returns log attributes for the policy configuration
func (p *Policy) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("path", p.path),
	}
}

// Configure loads the policy file, or returns the engine defaults when no
// path is set.
func (p *Policy) Configure() (*policy.Policy, error) {
	if p.path == "" {
		return policy.Default(), nil
	}

	loaded, err := policy.Load(p.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load policy", goerr.V("path", p.path))
	}

	return loaded, nil
}
