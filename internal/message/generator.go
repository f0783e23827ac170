package message

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/resolver"
	"github.com/hl7-synth-server/internal/scenario"
)

// Generation limits used when configuration leaves them unset
const (
	DefaultMaxBatchSize = 1000
	DefaultMessageType  = domain.ADT_A01
)

// FieldResolver produces the value of one field. *resolver.Orchestrator
// implements it.
type FieldResolver interface {
	ResolveField(ctx context.Context, rc *domain.ResolutionContext) string
}

// ScenarioCatalog looks up clinical cases by id
type ScenarioCatalog interface {
	Get(id string) (*scenario.Scenario, error)
}

// Request describes one message to generate. Zero values fall back to the
// generator's configuration.
type Request struct {
	MessageType     string           `json:"message_type,omitempty"`
	StandardVersion string           `json:"standard_version,omitempty"`
	SessionName     string           `json:"session_name,omitempty"`
	Seed            uint64           `json:"seed,omitempty"`
	Scenario        string           `json:"scenario,omitempty"`
	Repeats         map[string]int   `json:"repeats,omitempty"`
	Entities        *domain.Entities `json:"entities,omitempty"`
}

// Result is one generated message
type Result struct {
	ID          string              `json:"id"`
	MessageType domain.MessageType  `json:"message_type"`
	ControlID   string              `json:"control_id"`
	Seed        uint64              `json:"seed"`
	Segments    []string            `json:"segments"`
	Diagnostics []domain.Diagnostic `json:"diagnostics,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Message renders the result with standard segment terminators
func (r *Result) Message() string {
	return strings.Join(r.Segments, SegmentTerminator) + SegmentTerminator
}

// BatchRequest asks for Count messages built from the same request. Message i
// uses a seed derived from the batch seed, so a batch is reproducible.
type BatchRequest struct {
	Request
	Count int `json:"count"`
}

// BatchResult holds the messages of a batch in request order
type BatchResult struct {
	Seed     uint64        `json:"seed"`
	Results  []*Result     `json:"results"`
	Duration time.Duration `json:"duration"`
}

// Stats counts generator activity
type Stats struct {
	Messages    int64 `json:"messages"`
	Batches     int64 `json:"batches"`
	Diagnostics int64 `json:"diagnostics"`
}

// Generator builds complete messages. It holds no per-message state and is
// safe for concurrent use.
type Generator struct {
	fields    FieldResolver
	scenarios ScenarioCatalog
	config    domain.GenerationConfig
	logger    *logrus.Logger
	clock     func() time.Time

	seedMu sync.Mutex
	seeds  *rand.Rand

	messages    atomic.Int64
	batches     atomic.Int64
	diagnostics atomic.Int64
}

// Option customizes a Generator
type Option func(*Generator)

// WithScenarios lets requests name a clinical case
func WithScenarios(c ScenarioCatalog) Option {
	return func(g *Generator) { g.scenarios = c }
}

// WithClock sets the wall clock used as "now" by every message
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.clock = now }
}

// NewGenerator creates a generator
func NewGenerator(fields FieldResolver, config domain.GenerationConfig, logger *logrus.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	g := &Generator{
		fields: fields,
		config: config,
		logger: logger,
		clock:  time.Now,
	}
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	g.seeds = rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// plan is a validated request
type plan struct {
	messageType domain.MessageType
	layout      *Layout
	options     domain.ResolutionOptions
	repeats     map[string]int
	scenario    domain.ClinicalScenario
	entities    domain.Entities
}

func (g *Generator) prepare(req Request) (*plan, error) {
	mtText := req.MessageType
	if mtText == "" {
		mtText = g.config.DefaultMessageType
	}
	if mtText == "" {
		mtText = string(DefaultMessageType)
	}
	mt, err := domain.ParseMessageType(mtText)
	if err != nil {
		return nil, err
	}
	layout, err := LayoutFor(mt)
	if err != nil {
		return nil, err
	}

	version := req.StandardVersion
	if version == "" {
		version = g.config.StandardVersion
	}

	p := &plan{
		messageType: mt,
		layout:      layout,
		options:     domain.ResolutionOptions{SessionName: req.SessionName, StandardVersion: version},
		repeats:     make(map[string]int, len(layout.Segments)),
	}
	for _, s := range layout.Segments {
		p.repeats[s.Code] = max(s.Repeat, 1)
	}
	for code, n := range req.Repeats {
		code = strings.ToUpper(code)
		spec, ok := findSpec(layout, code)
		if !ok || !spec.Repeatable {
			return nil, domain.NewValidationError("repeats", fmt.Sprintf("%s cannot repeat in %s", code, mt), n)
		}
		if n < 0 || n > MaxRepeats {
			return nil, domain.NewValidationError("repeats", fmt.Sprintf("%s repeat count must be between 0 and %d", code, MaxRepeats), n)
		}
		p.repeats[code] = n
	}

	if req.Scenario != "" {
		if g.scenarios == nil {
			return nil, domain.NewValidationError("scenario", "clinical scenarios are not available", req.Scenario)
		}
		sc, err := g.scenarios.Get(req.Scenario)
		if err != nil {
			return nil, domain.NewValidationError("scenario", "unknown clinical scenario", req.Scenario)
		}
		p.scenario = sc
	}
	if req.Entities != nil {
		p.entities = *req.Entities
	}
	return p, nil
}

func findSpec(l *Layout, code string) (SegmentSpec, bool) {
	for _, s := range l.Segments {
		if s.Code == code {
			return s, true
		}
	}
	return SegmentSpec{}, false
}

// Generate builds one message
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	p, err := g.prepare(req)
	if err != nil {
		return nil, err
	}
	seed := req.Seed
	if seed == 0 {
		seed = g.randomSeed()
	}
	return g.generate(ctx, p, seed)
}

// GenerateBatch builds Count messages on a bounded worker pool. Results keep
// request order regardless of completion order.
func (g *Generator) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if req.Count < 1 || req.Count > g.config.MaxBatchSize {
		return nil, domain.NewValidationError("count", fmt.Sprintf("count must be between 1 and %d", g.config.MaxBatchSize), req.Count)
	}
	p, err := g.prepare(req.Request)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	base := req.Seed
	if base == 0 {
		base = g.randomSeed()
	}

	results := make([]*Result, req.Count)
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	semaphore := make(chan struct{}, g.config.Workers)

	for i := 0; i < req.Count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			res, err := g.generate(ctx, p, DeriveSeed(base, i))
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	g.batches.Add(1)
	out := &BatchResult{Seed: base, Results: results, Duration: time.Since(start)}
	g.logger.WithFields(logrus.Fields{
		"message_type": p.messageType,
		"count":        req.Count,
		"workers":      g.config.Workers,
		"seed":         base,
		"duration_ms":  out.Duration.Milliseconds(),
	}).Info("Generated message batch")
	return out, nil
}

// Stream builds the messages of a batch one at a time and hands each to emit
// as soon as it is ready. It yields the same messages as GenerateBatch for
// the same request and stops at the first error from emit.
func (g *Generator) Stream(ctx context.Context, req BatchRequest, emit func(int, *Result) error) (uint64, error) {
	if req.Count < 1 || req.Count > g.config.MaxBatchSize {
		return 0, domain.NewValidationError("count", fmt.Sprintf("count must be between 1 and %d", g.config.MaxBatchSize), req.Count)
	}
	p, err := g.prepare(req.Request)
	if err != nil {
		return 0, err
	}

	base := req.Seed
	if base == 0 {
		base = g.randomSeed()
	}
	for i := 0; i < req.Count; i++ {
		if err := ctx.Err(); err != nil {
			return base, err
		}
		res, err := g.generate(ctx, p, DeriveSeed(base, i))
		if err != nil {
			return base, err
		}
		if err := emit(i, res); err != nil {
			return base, err
		}
	}
	g.batches.Add(1)
	return base, nil
}

// DeriveSeed spreads a batch seed over message indexes (SplitMix64)
func DeriveSeed(base uint64, index int) uint64 {
	z := base + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// messageID derives the message UUID from its seed so a replayed seed yields
// the same control ID
func messageID(seed uint64) string {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], DeriveSeed(seed, -2))
	binary.BigEndian.PutUint64(buf[8:], DeriveSeed(seed, -3))
	id, err := uuid.NewRandomFromReader(bytes.NewReader(buf[:]))
	if err != nil {
		return ""
	}
	return id.String()
}

func (g *Generator) randomSeed() uint64 {
	g.seedMu.Lock()
	defer g.seedMu.Unlock()
	for {
		if s := g.seeds.Uint64(); s != 0 {
			return s
		}
	}
}

// segment is one occurrence of a segment in the message being built
type segment struct {
	spec   SegmentSpec
	index  int
	values map[int]string
}

func (g *Generator) generate(ctx context.Context, p *plan, seed uint64) (*Result, error) {
	gen := domain.NewGenerationContext(p.messageType,
		domain.WithSeed(seed),
		domain.WithID(messageID(seed)),
		domain.WithClock(g.clock),
		domain.WithEntities(p.entities),
		domain.WithOptions(p.options),
	)
	if p.scenario != nil {
		resolver.PinScenario(gen, p.scenario)
	}

	var segments []*segment
	for _, spec := range p.layout.Segments {
		for i := 1; i <= p.repeats[spec.Code]; i++ {
			segments = append(segments, &segment{spec: spec, index: i})
		}
	}

	// Every timestamp hangs off the event time, so it is settled first.
	if p.layout.HasSegment("EVN") {
		for _, s := range segments {
			if s.spec.Code == "EVN" {
				if err := g.resolveSegment(ctx, gen, s); err != nil {
					return nil, err
				}
			}
		}
	} else {
		g.primeAnchor(ctx, gen)
	}

	for _, s := range segments {
		if s.values != nil {
			continue
		}
		if err := g.resolveSegment(ctx, gen, s); err != nil {
			return nil, err
		}
	}

	res := &Result{
		ID:          gen.ID(),
		MessageType: p.messageType,
		ControlID:   controlID(segments),
		Seed:        seed,
		Segments:    make([]string, 0, len(segments)),
		Diagnostics: gen.Diagnostics(),
		GeneratedAt: gen.Now(),
	}
	for _, s := range segments {
		res.Segments = append(res.Segments, render(s))
	}

	g.messages.Add(1)
	g.diagnostics.Add(int64(len(res.Diagnostics)))
	g.logger.WithFields(logrus.Fields{
		"message_id":   res.ID,
		"message_type": p.messageType,
		"segments":     len(res.Segments),
		"diagnostics":  len(res.Diagnostics),
	}).Debug("Generated message")
	return res, nil
}

func (g *Generator) resolveSegment(ctx context.Context, gen *domain.GenerationContext, s *segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defs, _ := SegmentFields(s.spec.Code)
	s.values = make(map[int]string, len(defs))

	for _, def := range defs {
		if s.spec.omits(def.Position) {
			continue
		}
		if v, fixed := g.fixedValue(gen, s, def); fixed {
			s.values[def.Position] = v
			continue
		}
		rc := domain.NewResolutionContext(gen, s.spec.Code, def.Position, def.FieldMetadata)
		v := sanitize(g.fields.ResolveField(ctx, rc))
		if rc.Path() == resolver.AnchorPath {
			// a locked event time bypasses the temporal resolver
			recordAnchor(gen, v)
		}
		s.values[def.Position] = v
	}
	return nil
}

// fixedValue covers structural fields that are never resolved
func (g *Generator) fixedValue(gen *domain.GenerationContext, s *segment, def FieldDef) (string, bool) {
	if def.DataType == domain.TypeSI {
		return strconv.Itoa(s.index), true
	}
	if s.spec.Code != "MSH" {
		return "", false
	}
	switch def.Position {
	case mshFieldSeparator:
		return FieldSeparator, true
	case mshEncodingChars:
		return EncodingChars, true
	case mshMessageType:
		mt := gen.MessageType()
		layout, _ := LayoutFor(mt)
		return mt.Code() + "^" + mt.TriggerEvent() + "^" + layout.Structure, true
	case mshVersionID:
		return gen.Options().Version(), true
	}
	return "", false
}

// primeAnchor resolves the event time for layouts without an EVN segment
func (g *Generator) primeAnchor(ctx context.Context, gen *domain.GenerationContext) {
	rc := domain.NewResolutionContext(gen, "EVN", 2, domain.FieldMetadata{
		Name:      "Recorded Date/Time",
		DataType:  domain.TypeTS,
		MaxLength: 26,
	})
	if v := g.fields.ResolveField(ctx, rc); v != "" {
		recordAnchor(gen, v)
	}
}

var anchorLayouts = []string{
	domain.PrecisionDateTimeFraction.Layout(),
	domain.PrecisionDateTime.Layout(),
	"200601021504",
	domain.PrecisionDate.Layout(),
}

func recordAnchor(gen *domain.GenerationContext, value string) {
	if _, ok := gen.Anchor(resolver.AnchorPath); ok {
		return
	}
	value, _, _ = strings.Cut(value, resolver.ComponentSeparator)
	for _, layout := range anchorLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			gen.RecordAnchor(resolver.AnchorPath, t)
			return
		}
	}
}

func controlID(segments []*segment) string {
	for _, s := range segments {
		if s.spec.Code == "MSH" {
			return s.values[10]
		}
	}
	return ""
}

// sanitize keeps a value inside its field: the escape character and the field
// separator are escaped and line breaks, which would end the segment, become
// spaces. Escapes are written in one pass so an existing \F\ stays literal.
func sanitize(v string) string {
	if !strings.ContainsAny(v, "|\\\r\n") {
		return v
	}
	return valueEscaper.Replace(v)
}

var valueEscaper = strings.NewReplacer(
	`\`, `\E\`,
	FieldSeparator, `\F\`,
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
)

// render joins field values, leaving undeclared positions empty and dropping
// trailing empty fields
func render(s *segment) string {
	maxPos := 0
	for pos := range s.values {
		if pos > maxPos {
			maxPos = pos
		}
	}
	first := 1
	if s.spec.Code == "MSH" {
		// MSH-1 is the separator itself
		first = 2
	}
	fields := make([]string, 0, maxPos)
	for pos := first; pos <= maxPos; pos++ {
		fields = append(fields, s.values[pos])
	}
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return s.spec.Code + FieldSeparator + strings.Join(fields, FieldSeparator)
}

// GetStats returns generator counters
func (g *Generator) GetStats() Stats {
	return Stats{
		Messages:    g.messages.Load(),
		Batches:     g.batches.Load(),
		Diagnostics: g.diagnostics.Load(),
	}
}

// Config returns the effective generation configuration
func (g *Generator) Config() domain.GenerationConfig {
	return g.config
}
