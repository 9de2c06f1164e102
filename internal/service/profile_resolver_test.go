package service

import (
	"context"
	"errors"
	"learner_insight/internal/model"
	"learner_insight/internal/repository"
	"learner_insight/internal/testutil"
	"learner_insight/internal/util"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHints(t *testing.T) {
	tests := []struct {
		name     string
		raw      model.ProfileHints
		roleKind HintKind
		role     model.UserRole
		nameKind HintKind
		display  string
	}{
		{name: "empty", raw: model.ProfileHints{}, roleKind: HintAbsent, nameKind: HintAbsent},
		{name: "teacher any case", raw: model.ProfileHints{Role: " Teacher "}, roleKind: HintAccepted, role: model.Teacher, nameKind: HintAbsent},
		{name: "unknown role", raw: model.ProfileHints{Role: "superuser"}, roleKind: HintRejected, nameKind: HintAbsent},
		{name: "trimmed name", raw: model.ProfileHints{DisplayName: "  Ada  "}, roleKind: HintAbsent, nameKind: HintAccepted, display: "Ada"},
		{name: "control chars", raw: model.ProfileHints{DisplayName: "Ada\x00"}, roleKind: HintAbsent, nameKind: HintRejected},
		{name: "blank name", raw: model.ProfileHints{DisplayName: "   "}, roleKind: HintAbsent, nameKind: HintAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ParseHints(tt.raw)
			assert.Equal(t, tt.roleKind, h.Role.Kind)
			assert.Equal(t, tt.role, h.Role.Role)
			assert.Equal(t, tt.nameKind, h.Name.Kind)
			assert.Equal(t, tt.display, h.Name.Name)
		})
	}
}

func TestParseHintsCapsNameLength(t *testing.T) {
	h := ParseHints(model.ProfileHints{DisplayName: strings.Repeat("é", maxDisplayNameLen+20)})
	assert.Equal(t, HintAccepted, h.Name.Kind)
	assert.Equal(t, maxDisplayNameLen, len([]rune(h.Name.Name)))
}

func TestPlaceholderName(t *testing.T) {
	a := PlaceholderName("learner-42")
	assert.Regexp(t, `^learner-[0-9a-f]{8}$`, a)
	assert.Equal(t, a, PlaceholderName("learner-42"))
	assert.NotEqual(t, a, PlaceholderName("learner-43"))
}

func newResolver(t *testing.T) (*ProfileResolver, *repository.ProfileRepository) {
	repo := repository.NewProfileRepository(testutil.NewDB(t), nil, 0, 0)
	return NewProfileResolver(repo, nil, nil), repo
}

func TestResolveRejectsEmptyID(t *testing.T) {
	r, _ := newResolver(t)
	_, err := r.Resolve(context.Background(), "  ", model.ProfileHints{})
	assert.ErrorIs(t, err, util.ErrInvalidLearnerID)
}

func TestResolveCreatesDefaultProfile(t *testing.T) {
	ctx := context.Background()
	r, repo := newResolver(t)

	p, err := r.Resolve(ctx, " l-1 ", model.ProfileHints{Role: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, "l-1", p.LearnerID)
	assert.Equal(t, model.Student, p.Role)
	assert.True(t, p.RoleDefaulted)
	assert.True(t, p.NamePlaceholder)
	assert.Equal(t, PlaceholderName("l-1"), p.DisplayName)
	assert.Empty(t, p.History)
	assert.Empty(t, p.Mastery)
	assert.False(t, p.Transient)

	stored, err := repo.Find(ctx, "l-1")
	require.NoError(t, err)
	assert.Equal(t, p.DisplayName, stored.DisplayName)
}

func TestResolveHintsFillOnlyPlaceholders(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t)

	_, err := r.Resolve(ctx, "l-1", model.ProfileHints{})
	require.NoError(t, err)

	p, err := r.Resolve(ctx, "l-1", model.ProfileHints{DisplayName: "Ada", Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, model.Teacher, p.Role)

	p, err = r.Resolve(ctx, "l-1", model.ProfileHints{DisplayName: "Grace", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, model.Teacher, p.Role)
}

func TestResolveConcurrentFirstSight(t *testing.T) {
	ctx := context.Background()
	r, repo := newResolver(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Resolve(ctx, "l-race", model.ProfileHints{})
			if err == nil && p.Transient {
				err = errors.New("transient profile")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	var count int64
	require.NoError(t, repo.DB.Model(&model.LearnerProfile{}).Where("learner_id = ?", "l-race").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

type brokenStore struct{}

func (brokenStore) Find(context.Context, string) (*model.LearnerProfile, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) CreateIfAbsent(context.Context, *model.LearnerProfile) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenStore) UpdateIdentity(context.Context, *model.LearnerProfile) error {
	return errors.New("connection refused")
}

func TestResolveDegradesToTransientProfile(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_resolutions_total"}, []string{"result"})
	r := NewProfileResolver(brokenStore{}, nil, counter)

	p, err := r.Resolve(context.Background(), "l-1", model.ProfileHints{DisplayName: "Ada"})
	require.NoError(t, err)
	assert.True(t, p.Transient)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.NotNil(t, p.Mastery)
	assert.Equal(t, 1.0, ptestutil.ToFloat64(counter.WithLabelValues("transient")))
}
