package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/cli/config"
	"github.com/pennybridge/mnemon/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var policyCfg config.Policy

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a policy TOML file",
		Flags:   policyCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if policyCfg.Path() == "" {
				return goerr.New("--policy is required")
			}

			p, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "policy validation failed")
			}

			logging.Default().Info("Policy validation passed",
				"path", policyCfg.Path(),
				"auto_update", p.Similarity.AutoUpdate,
				"check_low", p.Similarity.CheckLow,
				"merge_strategy", p.Similarity.Strategy,
				"max_per_day", p.Episodic.MaxPerDay,
				"context_topn", p.Retrieval.ContextTopN,
			)
			return nil
		},
	}
}
