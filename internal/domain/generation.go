package domain

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResolutionOptions configures how fields of one message are resolved
type ResolutionOptions struct {
	SessionName     string `json:"session_name,omitempty" mapstructure:"session_name"`
	StandardVersion string `json:"standard_version,omitempty" mapstructure:"standard_version"`
}

// DefaultStandardVersion is used when options leave the version empty
const DefaultStandardVersion = "2.5"

// Version returns the configured standard version or the default
func (o ResolutionOptions) Version() string {
	if o.StandardVersion == "" {
		return DefaultStandardVersion
	}
	return o.StandardVersion
}

// Diagnostic is a non-fatal note about a field that could not be resolved
type Diagnostic struct {
	Path   string `json:"path"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// GenerationContext carries the mutable state of exactly one message being generated.
// It is owned by a single goroutine and must never be shared between messages.
type GenerationContext struct {
	id          string
	messageType MessageType
	options     ResolutionOptions
	entities    Entities
	rng         *rand.Rand
	now         func() time.Time

	anchors     map[string]time.Time
	cycles      map[string]int
	slots       map[string]any
	diagnostics []Diagnostic
}

// GenerationOption customizes a GenerationContext at construction
type GenerationOption func(*GenerationContext)

// WithSeed makes the context's random source deterministic
func WithSeed(seed uint64) GenerationOption {
	return func(g *GenerationContext) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand injects a caller-owned random source
func WithRand(rng *rand.Rand) GenerationOption {
	return func(g *GenerationContext) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// WithID replaces the random message identifier, which also fixes the control ID
func WithID(id string) GenerationOption {
	return func(g *GenerationContext) {
		if id != "" {
			g.id = id
		}
	}
}

// WithClock overrides the wall clock used for anchor generation
func WithClock(now func() time.Time) GenerationOption {
	return func(g *GenerationContext) {
		if now != nil {
			g.now = now
		}
	}
}

// WithEntities attaches the clinical entities driving the message
func WithEntities(e Entities) GenerationOption {
	return func(g *GenerationContext) {
		g.entities = e
	}
}

// WithOptions sets resolution options such as the override session
func WithOptions(o ResolutionOptions) GenerationOption {
	return func(g *GenerationContext) {
		g.options = o
	}
}

// NewGenerationContext creates fresh per-message state
func NewGenerationContext(messageType MessageType, opts ...GenerationOption) *GenerationContext {
	g := &GenerationContext{
		id:          uuid.NewString(),
		messageType: messageType,
		now:         time.Now,
		anchors:     make(map[string]time.Time),
		cycles:      make(map[string]int),
		slots:       make(map[string]any),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// ID uniquely identifies the message being generated
func (g *GenerationContext) ID() string { return g.id }

// MessageType returns the message/trigger identifier
func (g *GenerationContext) MessageType() MessageType { return g.messageType }

// Options returns the resolution options
func (g *GenerationContext) Options() ResolutionOptions { return g.options }

// Entities returns the read-only clinical entities
func (g *GenerationContext) Entities() Entities { return g.entities }

// Rand returns the per-message random source
func (g *GenerationContext) Rand() *rand.Rand { return g.rng }

// Now returns the current time from the injected clock
func (g *GenerationContext) Now() time.Time { return g.now() }

// ControlID derives a message control ID (max 20 characters) from the context ID
func (g *GenerationContext) ControlID() string {
	id := strings.ReplaceAll(g.id, "-", "")
	if len(id) > 20 {
		id = id[:20]
	}
	return strings.ToUpper(id)
}

// Anchor returns a previously generated timestamp for a field path
func (g *GenerationContext) Anchor(path string) (time.Time, bool) {
	t, ok := g.anchors[path]
	return t, ok
}

// RecordAnchor stores a timestamp under a field path. Anchors are append-only:
// the first recorded value for a path is kept.
func (g *GenerationContext) RecordAnchor(path string, t time.Time) time.Time {
	if existing, ok := g.anchors[path]; ok {
		return existing
	}
	g.anchors[path] = t
	return t
}

// Anchors returns a copy of all generated anchors
func (g *GenerationContext) Anchors() map[string]time.Time {
	out := make(map[string]time.Time, len(g.anchors))
	for k, v := range g.anchors {
		out[k] = v
	}
	return out
}

// NextCycle returns the next index in [0, n) for a cycling key, starting at 0.
// It returns -1 when n is not positive.
func (g *GenerationContext) NextCycle(key string, n int) int {
	if n <= 0 {
		return -1
	}
	i := g.cycles[key]
	g.cycles[key] = i + 1
	return i % n
}

// Slot returns per-resolver state stored for this message
func (g *GenerationContext) Slot(key string) (any, bool) {
	v, ok := g.slots[key]
	return v, ok
}

// SetSlot stores per-resolver state for this message
func (g *GenerationContext) SetSlot(key string, v any) {
	g.slots[key] = v
}

// AddDiagnostic records a non-fatal note about the message
func (g *GenerationContext) AddDiagnostic(d Diagnostic) {
	g.diagnostics = append(g.diagnostics, d)
}

// Diagnostics returns the notes collected so far
func (g *GenerationContext) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(g.diagnostics))
	copy(out, g.diagnostics)
	return out
}

// ResolutionContext is a single field-resolution request
type ResolutionContext struct {
	Field         FieldMetadata
	SegmentCode   string
	FieldPosition int
	Generation    *GenerationContext
}

// NewResolutionContext builds a request for one field of the message
func NewResolutionContext(gen *GenerationContext, segment string, position int, field FieldMetadata) *ResolutionContext {
	return &ResolutionContext{
		Field:         field,
		SegmentCode:   segment,
		FieldPosition: position,
		Generation:    gen,
	}
}

// Path returns the "SEGMENT.POSITION" key of the field
func (rc *ResolutionContext) Path() string {
	return FieldPath(rc.SegmentCode, rc.FieldPosition)
}

// Keywords returns the lower-cased name and description for keyword matching
func (rc *ResolutionContext) Keywords() string {
	return strings.ToLower(rc.Field.Name + " " + rc.Field.Description)
}
