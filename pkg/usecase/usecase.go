package usecase

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model/policy"
	"github.com/pennybridge/mnemon/pkg/service/candidate"
	"github.com/pennybridge/mnemon/pkg/service/embedding"
	"github.com/pennybridge/mnemon/pkg/service/gate"
	"github.com/pennybridge/mnemon/pkg/service/profile"
	"github.com/pennybridge/mnemon/pkg/service/samefact"
	"github.com/pennybridge/mnemon/pkg/service/summarize"
	"github.com/pennybridge/mnemon/pkg/service/timezone"
)

// deps is the shared wiring of the three use cases.
type deps struct {
	repo         interfaces.Repository
	policy       *policy.Policy
	embedder     *embedding.Service
	builder      *candidate.Builder
	gate         *gate.Service
	samefact     *samefact.Service
	summarize    *summarize.Service
	profileStore interfaces.ProfileStore
	profile      *profile.Service
	tz           interfaces.TimezoneResolver
	locks        *nsLocks
	now          func() time.Time
}

// UseCases bundles the memory engine's exposed operations: the semantic
// write decision, the read-path retrieval, and the post-turn episodic
// capture.
type UseCases struct {
	Semantic  *SemanticUseCase
	Retrieval *RetrievalUseCase
	Episodic  *EpisodicUseCase
}

type Option func(*deps)

// WithPolicy replaces the default policy.
func WithPolicy(p *policy.Policy) Option {
	return func(d *deps) {
		d.policy = p
	}
}

// WithProfileStore sets the external profile store for best-effort sync.
func WithProfileStore(store interfaces.ProfileStore) Option {
	return func(d *deps) {
		d.profileStore = store
	}
}

// WithTimezoneResolver sets the namespace timezone resolver.
func WithTimezoneResolver(tz interfaces.TimezoneResolver) Option {
	return func(d *deps) {
		d.tz = tz
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(d *deps) {
		d.now = now
	}
}

func New(repo interfaces.Repository, llm gollem.LLMClient, opts ...Option) (*UseCases, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}

	embedder, err := embedding.New(llm)
	if err != nil {
		return nil, err
	}
	gateSvc, err := gate.New(llm)
	if err != nil {
		return nil, err
	}
	sameFactSvc, err := samefact.New(llm)
	if err != nil {
		return nil, err
	}
	summarizeSvc, err := summarize.New(llm)
	if err != nil {
		return nil, err
	}

	d := &deps{
		repo:      repo,
		policy:    policy.Default(),
		embedder:  embedder,
		builder:   candidate.New(embedder),
		gate:      gateSvc,
		samefact:  sameFactSvc,
		summarize: summarizeSvc,
		tz:        timezone.New(),
		locks:     newNSLocks(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	if err := d.policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid engine policy")
	}

	if d.profileStore != nil {
		profileSvc, err := profile.New(d.profileStore)
		if err != nil {
			return nil, err
		}
		d.profile = profileSvc
	}

	return &UseCases{
		Semantic:  &SemanticUseCase{deps: d},
		Retrieval: &RetrievalUseCase{deps: d},
		Episodic:  newEpisodicUseCase(d),
	}, nil
}
