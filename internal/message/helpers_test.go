package message

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/refdata"
	"github.com/hl7-synth-server/internal/resolver"
	"github.com/hl7-synth-server/internal/scenario"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

type lockedValues map[string]map[string]string

func (l lockedValues) GetLockedValues(_ context.Context, name string) (map[string]string, error) {
	v, ok := l[name]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return v, nil
}

func newTestGenerator(sessions domain.LockSessionService, opts ...Option) *Generator {
	logger := quietLogger()
	coordinator := scenario.NewBuiltinCoordinator()

	deps := resolver.DependenciesFrom(refdata.NewMemory(nil))
	deps.Schemas = domain.StandardSchemas()
	deps.Scenarios = coordinator
	deps.Sessions = sessions

	regs := append(resolver.DefaultRegistrations(logger, deps),
		NewHeaderResolver(HeaderFrom(domain.GenerationConfig{})).Registration())
	orch := resolver.NewOrchestrator(logger, deps.Schemas, regs...)

	base := []Option{
		WithScenarios(coordinator),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewGenerator(orch, domain.GenerationConfig{Workers: 4, MaxBatchSize: 50}, logger, append(base, opts...)...)
}

// fields splits a rendered segment into its wire fields, indexed by position
func fields(segment string) []string {
	parts := strings.Split(segment, FieldSeparator)
	if len(parts) > 0 && parts[0] == "MSH" {
		// MSH-1 is the separator itself
		return append([]string{"MSH", FieldSeparator}, parts[1:]...)
	}
	return parts
}

func fieldAt(segment string, pos int) string {
	f := fields(segment)
	if pos < len(f) {
		return f[pos]
	}
	return ""
}

func segmentsWith(res *Result, code string) []string {
	var out []string
	for _, s := range res.Segments {
		if strings.HasPrefix(s, code+FieldSeparator) {
			out = append(out, s)
		}
	}
	return out
}
