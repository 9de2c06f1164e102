package service

import (
	"context"
	"learner_insight/internal/model"
	"learner_insight/internal/util"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const maxDisplayNameLen = 100

var placeholderNamespace = uuid.MustParse("6f1c0b1e-5d4a-4c1f-9a37-3e0f6c2b8d41")

type HintKind int

const (
	HintAbsent HintKind = iota
	HintAccepted
	HintRejected
)

func (k HintKind) String() string {
	switch k {
	case HintAccepted:
		return "accepted"
	case HintRejected:
		return "rejected"
	}
	return "absent"
}

type RoleHint struct {
	Kind HintKind
	Role model.UserRole
	Raw  string
}

type NameHint struct {
	Kind HintKind
	Name string
	Raw  string
}

// ParsedHints is the validated form of model.ProfileHints.
type ParsedHints struct {
	Name NameHint
	Role RoleHint
}

// ParseHints classifies each raw hint. Roles are matched case-insensitively;
// names are trimmed and capped at maxDisplayNameLen runes. Names carrying
// control characters are rejected.
func ParseHints(raw model.ProfileHints) ParsedHints {
	var out ParsedHints

	out.Role.Raw = raw.Role
	switch role := model.UserRole(strings.ToLower(strings.TrimSpace(raw.Role))); {
	case role == "":
		out.Role.Kind = HintAbsent
	case role.Valid():
		out.Role = RoleHint{Kind: HintAccepted, Role: role, Raw: raw.Role}
	default:
		out.Role.Kind = HintRejected
	}

	out.Name.Raw = raw.DisplayName
	name := strings.TrimSpace(raw.DisplayName)
	switch {
	case name == "":
		out.Name.Kind = HintAbsent
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		out.Name.Kind = HintRejected
	default:
		if utf8.RuneCountInString(name) > maxDisplayNameLen {
			name = string([]rune(name)[:maxDisplayNameLen])
		}
		out.Name = NameHint{Kind: HintAccepted, Name: name, Raw: raw.DisplayName}
	}
	return out
}

// PlaceholderName derives a stable display name from a learner id.
func PlaceholderName(learnerID string) string {
	id := uuid.NewSHA1(placeholderNamespace, []byte(learnerID))
	return "learner-" + strings.ReplaceAll(id.String(), "-", "")[:8]
}

// DefaultProfile builds the profile a learner gets on first sight.
func DefaultProfile(learnerID string, hints ParsedHints) *model.LearnerProfile {
	p := &model.LearnerProfile{
		LearnerID:       learnerID,
		DisplayName:     PlaceholderName(learnerID),
		Role:            model.Student,
		NamePlaceholder: true,
		RoleDefaulted:   true,
		Mastery:         map[string]float64{},
		History:         []model.ActivityEvent{},
	}
	applyHints(p, hints)
	return p
}

// applyHints fills placeholder or defaulted fields only. It reports whether
// anything changed.
func applyHints(p *model.LearnerProfile, hints ParsedHints) bool {
	changed := false
	if p.NamePlaceholder && hints.Name.Kind == HintAccepted {
		p.DisplayName = hints.Name.Name
		p.NamePlaceholder = false
		changed = true
	}
	if p.RoleDefaulted && hints.Role.Kind == HintAccepted {
		p.Role = hints.Role.Role
		p.RoleDefaulted = false
		changed = true
	}
	return changed
}

type ProfileStore interface {
	Find(ctx context.Context, learnerID string) (*model.LearnerProfile, error)
	CreateIfAbsent(ctx context.Context, p *model.LearnerProfile) (bool, error)
	UpdateIdentity(ctx context.Context, p *model.LearnerProfile) error
}

// ProfileResolver turns a learner id plus optional hints into a canonical profile.
type ProfileResolver struct {
	Store       ProfileStore
	Log         *zap.Logger
	Resolutions *prometheus.CounterVec
}

func NewProfileResolver(store ProfileStore, log *zap.Logger, resolutions *prometheus.CounterVec) *ProfileResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileResolver{Store: store, Log: log, Resolutions: resolutions}
}

// Resolve never fails on storage problems: it falls back to an in-memory
// default profile marked Transient. The only error is an empty learner id.
func (r *ProfileResolver) Resolve(ctx context.Context, learnerID string, raw model.ProfileHints) (*model.LearnerProfile, error) {
	id := strings.TrimSpace(learnerID)
	if id == "" {
		return nil, util.ErrInvalidLearnerID
	}

	hints := ParseHints(raw)
	if hints.Role.Kind == HintRejected {
		r.Log.Warn("Ignoring role hint", zap.String("learner_id", id), zap.String("role", hints.Role.Raw))
	}
	if hints.Name.Kind == HintRejected {
		r.Log.Warn("Ignoring display name hint", zap.String("learner_id", id))
	}

	profile, err := r.Store.Find(ctx, id)
	result := "existing"
	switch {
	case err == nil:
	case util.IsMissingData(err):
		fresh := DefaultProfile(id, hints)
		if _, err := r.Store.CreateIfAbsent(ctx, fresh); err != nil {
			return r.transient(id, hints, err), nil
		}
		// re-read so a concurrent creator's row wins over ours
		profile, err = r.Store.Find(ctx, id)
		if err != nil {
			return r.transient(id, hints, err), nil
		}
		result = "created"
	default:
		return r.transient(id, hints, err), nil
	}

	if applyHints(profile, hints) {
		if err := r.Store.UpdateIdentity(ctx, profile); err != nil {
			r.Log.Warn("Failed to persist profile hints", zap.String("learner_id", id), zap.Error(err))
		}
	}
	if profile.Mastery == nil {
		profile.Mastery = map[string]float64{}
	}
	if profile.History == nil {
		profile.History = []model.ActivityEvent{}
	}
	r.count(result)
	return profile, nil
}

func (r *ProfileResolver) transient(id string, hints ParsedHints, cause error) *model.LearnerProfile {
	r.Log.Warn("Profile storage unavailable, serving default profile",
		zap.String("learner_id", id),
		zap.Error(cause),
	)
	r.count("transient")
	p := DefaultProfile(id, hints)
	p.Transient = true
	return p
}

func (r *ProfileResolver) count(result string) {
	if r.Resolutions != nil {
		r.Resolutions.WithLabelValues(result).Inc()
	}
}
