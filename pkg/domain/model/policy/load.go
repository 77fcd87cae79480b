package policy

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// Load reads a policy TOML file over the defaults, so a file only needs the
// values it wants to change.
func Load(path string) (*Policy, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", path))
	}

	p := Default()
	if err := toml.Unmarshal(data, p); err != nil {
		return nil, goerr.Wrap(err, "failed to parse policy TOML", goerr.V("path", path))
	}

	if err := p.Validate(); err != nil {
		return nil, goerr.Wrap(err, "policy validation failed", goerr.V("path", path))
	}

	return p, nil
}
