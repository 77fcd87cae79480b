package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/repository/chromem"
	"github.com/pennybridge/mnemon/pkg/repository/firestore"
	"github.com/pennybridge/mnemon/pkg/repository/memory"
	"github.com/pennybridge/mnemon/pkg/repository/postgres"
	"github.com/pennybridge/mnemon/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend     string
	projectID   string
	chromemPath string
	postgresDSN string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore, chromem, postgres or memory)",
			Value:       "firestore",
			Sources:     cli.EnvVars("MNEMON_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("MNEMON_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "chromem-path",
			Usage:       "Directory for the persistent chromem store (in-memory when empty)",
			Sources:     cli.EnvVars("MNEMON_CHROMEM_PATH"),
			Destination: &r.chromemPath,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL connection string (required when using postgres backend)",
			Sources:     cli.EnvVars("MNEMON_POSTGRES_DSN"),
			Destination: &r.postgresDSN,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// Configure initializes and returns a repository based on the configured
// backend. The caller is responsible for closing backends that hold
// connections.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.New("firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository", "project_id", r.projectID)
		return repo, nil

	case "chromem":
		if r.chromemPath == "" {
			logging.Default().Info("Using in-memory chromem repository")
			return chromem.New()
		}
		repo, err := chromem.NewPersistent(ctx, r.chromemPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize chromem repository")
		}
		logging.Default().Info("Using persistent chromem repository", "path", r.chromemPath)
		return repo, nil

	case "postgres":
		if r.postgresDSN == "" {
			return nil, goerr.New("postgres-dsn is required when using postgres backend")
		}
		repo, err := postgres.New(ctx, r.postgresDSN)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize postgres repository")
		}
		logging.Default().Info("Using PostgreSQL repository")
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.New("invalid repository backend", goerr.V("backend", r.backend))
	}
}
