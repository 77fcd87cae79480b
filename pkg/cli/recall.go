package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/cli/config"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/usecase"
	"github.com/pennybridge/mnemon/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdRecall() *cli.Command {
	var owner string
	var kind string
	var query string
	var recallIntent bool
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var policyCfg config.Policy

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Owner ID of the namespace (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMON_OWNER"),
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "kind",
			Usage:       "Memory kind of the namespace",
			Value:       "semantic",
			Sources:     cli.EnvVars("MNEMON_KIND"),
			Destination: &kind,
		},
		&cli.StringFlag{
			Name:        "query",
			Usage:       "Query text to retrieve context for (required)",
			Required:    true,
			Destination: &query,
		},
		&cli.BoolFlag{
			Name:        "recall-intent",
			Usage:       "Widen the episodic pool for an explicit recall question",
			Destination: &recallIntent,
		},
	}

	// Add shared config flags
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)

	return &cli.Command{
		Name:    "recall",
		Aliases: []string{"r"},
		Usage:   "Retrieve the ranked context bundle for a query",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ns := types.NewNamespace(owner, kind)
			if err := ns.Validate(); err != nil {
				return goerr.Wrap(err, "invalid namespace")
			}

			pol, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load policy")
			}

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			uc, err := usecase.New(repo, llmClient, usecase.WithPolicy(pol))
			if err != nil {
				return goerr.Wrap(err, "failed to build use cases")
			}

			bundle, err := uc.Retrieval.RetrieveContext(ctx, ns, query, recallIntent, nil)
			if err != nil {
				return goerr.Wrap(err, "retrieval failed")
			}

			logging.Default().Info("Context assembled",
				"namespace", ns,
				"recall_intent", recallIntent,
				"bullets", bundle.Bullets,
				"time_line", bundle.TimeLine,
			)
			return nil
		},
	}
}
