package service

import (
	"context"
	"learner_insight/internal/insight"
	"learner_insight/internal/model"
	"learner_insight/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CatalogSource interface {
	ListPublished(ctx context.Context) ([]model.CandidateContentItem, error)
}

// pipelineEnv is everything one personalization request reads. It is built
// per request so a tuning reload never changes a request halfway through.
type pipelineEnv struct {
	engine   *insight.Engine
	log      *zap.Logger
	resolver *ProfileResolver
	catalog  CatalogSource
}

// PersonalizationService runs resolve, diagnose and recommend in sequence.
type PersonalizationService struct {
	Resolver *ProfileResolver
	Catalog  CatalogSource
	Tuning   *insight.TuningStore
	Guard    *insight.Guard
	Log      *zap.Logger
}

func NewPersonalizationService(resolver *ProfileResolver, catalog CatalogSource, tuning *insight.TuningStore, guard *insight.Guard, log *zap.Logger) *PersonalizationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersonalizationService{
		Resolver: resolver,
		Catalog:  catalog,
		Tuning:   tuning,
		Guard:    guard,
		Log:      log,
	}
}

func (s *PersonalizationService) env() pipelineEnv {
	return pipelineEnv{
		engine:   insight.NewEngine(s.Tuning.Load(), s.Guard),
		log:      s.Log,
		resolver: s.Resolver,
		catalog:  s.Catalog,
	}
}

// Personalize returns the profile, diagnostics and ranked recommendations for
// a learner. Only an empty learner id is an error; a missing catalog yields an
// empty recommendation list.
func (s *PersonalizationService) Personalize(ctx context.Context, learnerID string, hints model.ProfileHints) (*model.PersonalizationBundle, error) {
	env := s.env()
	ctx, span := tracing.Tracer.Start(ctx, "personalization.pipeline")
	defer span.End()

	profile, err := env.resolver.Resolve(ctx, learnerID, hints)
	if err != nil {
		return nil, err
	}
	report := env.engine.Diagnose(profile)

	catalog, err := env.catalog.ListPublished(ctx)
	if err != nil {
		env.log.Warn("Content catalog unavailable, skipping recommendations",
			zap.String("learner_id", profile.LearnerID),
			zap.Error(err),
		)
		catalog = nil
	}
	recs := env.engine.Recommend(profile, report, catalog)

	span.SetAttributes(
		attribute.Int("personalization.gaps", len(report.Gaps)),
		attribute.Int("personalization.recommendations", recs.Len()),
		attribute.Bool("personalization.transient_profile", profile.Transient),
	)
	return &model.PersonalizationBundle{
		Profile:         profile,
		Diagnostics:     report,
		Recommendations: recs,
	}, nil
}
