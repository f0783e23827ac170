package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
)

// directPathPattern recognizes wire paths such as "PID.3" or "PV1.44"
var directPathPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,2}\.[0-9]+$`)

// IsDirectPath reports whether a locked-value key addresses a wire field directly
func IsDirectPath(key string) bool {
	return directPathPattern.MatchString(key)
}

// SessionOverrideResolver returns values a user locked for the active override
// session. It runs before every other resolver, for scalar and composite fields.
type SessionOverrideResolver struct {
	sessions domain.LockSessionService
	paths    domain.FieldPathResolver
	logger   *logrus.Logger
}

// NewSessionOverrideResolver creates the resolver. paths may be nil, in which case
// semantic keys are ignored.
func NewSessionOverrideResolver(sessions domain.LockSessionService, paths domain.FieldPathResolver, logger *logrus.Logger) *SessionOverrideResolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &SessionOverrideResolver{sessions: sessions, paths: paths, logger: logger}
}

// Name implements Resolver
func (r *SessionOverrideResolver) Name() string { return "session_override" }

// CompositeTypes implements CompositeResolver
func (r *SessionOverrideResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{AnyComposite}
}

// Resolve implements ScalarResolver
func (r *SessionOverrideResolver) Resolve(ctx context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	return r.lookup(ctx, rc)
}

// ResolveComposite implements CompositeResolver. A locked value is taken verbatim
// as the whole composite, component separators included.
func (r *SessionOverrideResolver) ResolveComposite(ctx context.Context, rc *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	v, ok, err := r.lookup(ctx, rc)
	if !ok || err != nil {
		return nil, false, err
	}
	return map[int]string{1: v}, true, nil
}

// overrides is the per-message view of a session: locked values keyed by wire path
type overrides map[string]string

func (r *SessionOverrideResolver) lookup(ctx context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	name := rc.Generation.Options().SessionName
	if name == "" || r.sessions == nil {
		return "", false, nil
	}

	values, err := r.overridesFor(ctx, rc.Generation, name)
	if err != nil {
		return "", false, err
	}
	v, ok := values[rc.Path()]
	return v, ok, nil
}

// overridesFor loads the session once per message and maps every key to its wire
// path. Direct keys take precedence over semantic keys that resolve to the same
// path; among semantic keys the first in sorted order wins.
func (r *SessionOverrideResolver) overridesFor(ctx context.Context, gen *domain.GenerationContext, name string) (overrides, error) {
	slot := r.Name() + ".values"
	if cached, ok := gen.Slot(slot); ok {
		return cached.(overrides), nil
	}

	locked, err := r.sessions.GetLockedValues(ctx, name)
	if err != nil {
		gen.SetSlot(slot, overrides{})
		if errors.Is(err, domain.ErrSessionNotFound) {
			r.logger.WithField("session", name).Debug("Override session not found")
			return overrides{}, nil
		}
		return nil, fmt.Errorf("loading override session %q: %w", name, err)
	}

	resolved := make(overrides, len(locked))
	var semantic []string
	for _, key := range sortedKeys(locked) {
		if IsDirectPath(key) {
			resolved[key] = locked[key]
			continue
		}
		semantic = append(semantic, key)
	}

	if r.paths != nil {
		for _, key := range semantic {
			wire, err := r.paths.ResolvePath(ctx, key, gen.MessageType(), gen.Options().Version())
			if err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"session": name,
					"key":     key,
				}).Debug("Skipping unresolvable semantic override")
				continue
			}
			wire = strings.ToUpper(strings.TrimSpace(wire))
			if _, exists := resolved[wire]; !exists {
				resolved[wire] = locked[key]
			}
		}
	}

	gen.SetSlot(slot, resolved)
	return resolved, nil
}
