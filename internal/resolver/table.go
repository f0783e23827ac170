package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/pkg/checkdigit"
)

// TableEventType is HL7 table 0003, the event type code of EVN.1
const TableEventType = "0003"

// DefaultTableBindings maps "SEGMENT.POSITION" to the HL7 table its codes come from
func DefaultTableBindings() map[string]string {
	return map[string]string{
		"MSH.11": "0103",
		"MSH.15": "0155",
		"MSH.16": "0155",
		"EVN.1":  TableEventType,
		"EVN.4":  "0062",
		"PID.10": "0005",
		"PID.15": "0296",
		"PID.16": "0002",
		"PID.17": "0006",
		"PID.22": "0189",
		"PID.24": "0136",
		"PID.30": "0136",
		"NK1.3":  "0063",
		"NK1.7":  "0131",
		"NK1.15": "0001",
		"PV1.2":  "0004",
		"PV1.4":  "0007",
		"PV1.10": "0069",
		"PV1.13": "0092",
		"PV1.14": "0023",
		"PV1.18": "0018",
		"PV1.36": "0112",
		"PV1.41": "0117",
		"DG1.6":  "0052",
		"AL1.2":  "0127",
		"AL1.4":  "0128",
		"ORC.1":  "0119",
		"ORC.5":  "0038",
		"OBR.25": "0123",
		"OBX.11": "0085",
		"RXE.21": "0166",
	}
}

// TableResolver picks coded values from HL7 standards tables. When a table is
// unavailable it falls back to a heuristic based on the field's meaning.
type TableResolver struct {
	tables   domain.TableProvider
	bindings map[string]string
	logger   *logrus.Logger
}

// NewTableResolver creates the resolver. A nil bindings map uses the defaults.
func NewTableResolver(tables domain.TableProvider, bindings map[string]string, logger *logrus.Logger) *TableResolver {
	if bindings == nil {
		bindings = DefaultTableBindings()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &TableResolver{tables: tables, bindings: bindings, logger: logger}
}

// Name implements Resolver
func (r *TableResolver) Name() string { return "table" }

// CompositeTypes implements CompositeResolver
func (r *TableResolver) CompositeTypes() []domain.DataType {
	return []domain.DataType{domain.TypeCE, domain.TypeCWE}
}

// TableFor returns the table bound to a field path
func (r *TableResolver) TableFor(path string) (string, bool) {
	id, ok := r.bindings[path]
	return id, ok
}

// Resolve implements ScalarResolver for coded scalar fields
func (r *TableResolver) Resolve(ctx context.Context, rc *domain.ResolutionContext) (string, bool, error) {
	tableID, ok := r.bindings[rc.Path()]
	if !ok {
		return "", false, nil
	}
	if v, found := r.pick(ctx, rc, tableID); found {
		return v.Code, true, nil
	}
	return SemanticHeuristic(rc)
}

// ResolveComposite implements CompositeResolver for coded CE/CWE fields
func (r *TableResolver) ResolveComposite(ctx context.Context, rc *domain.ResolutionContext, _ *domain.CompositeSchema) (map[int]string, bool, error) {
	tableID, ok := r.bindings[rc.Path()]
	if !ok {
		return nil, false, nil
	}
	if v, found := r.pick(ctx, rc, tableID); found {
		return map[int]string{1: v.Code, 2: v.Text, 3: "HL7" + tableID}, true, nil
	}
	code, ok, err := SemanticHeuristic(rc)
	if !ok || err != nil {
		return nil, false, err
	}
	return map[int]string{1: code}, true, nil
}

func (r *TableResolver) pick(ctx context.Context, rc *domain.ResolutionContext, tableID string) (domain.TableValue, bool) {
	if tableID == TableEventType {
		if trigger := rc.Generation.MessageType().TriggerEvent(); trigger != "" {
			if r.tables == nil {
				return domain.TableValue{Code: trigger}, true
			}
			if table, err := r.tables.GetTable(ctx, tableID); err == nil {
				if v, ok := table.Find(trigger); ok {
					return v, true
				}
			}
			return domain.TableValue{Code: trigger}, true
		}
	}

	if r.tables == nil {
		return domain.TableValue{}, false
	}
	table, err := r.tables.GetTable(ctx, tableID)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"table": tableID,
			"path":  rc.Path(),
		}).Debug("Table unavailable, using heuristic")
		return domain.TableValue{}, false
	}
	if table.IsEmpty() {
		return domain.TableValue{}, false
	}
	return table.Values[rc.Generation.Rand().IntN(len(table.Values))], true
}

var (
	languageCodes      = []string{"en", "es", "fr", "zh", "vi", "de"}
	accommodationCodes = []string{"P", "S", "W"}
	sexCodes           = []string{"F", "M", "U"}
)

// SemanticHeuristic generates a plausible coded value from the field's meaning
// when no standards table can be used. It abstains when nothing fits.
func SemanticHeuristic(rc *domain.ResolutionContext) (string, bool, error) {
	rng := rc.Generation.Rand()
	kw := rc.Keywords()
	switch {
	case containsAny(kw, "provider", "physician", "doctor", "attending", "referring", "consulting"):
		return checkdigit.RandomBase(rng, 10), true, nil
	case containsAny(kw, "language"):
		return languageCodes[rng.IntN(len(languageCodes))], true, nil
	case containsAny(kw, "accommodation"):
		return accommodationCodes[rng.IntN(len(accommodationCodes))], true, nil
	case containsAny(kw, "diagnosis"):
		return fmt.Sprintf("%c%02d.%d", 'A'+rune(rng.IntN(26)), rng.IntN(100), rng.IntN(10)), true, nil
	case containsWord(kw, "sex", "gender"):
		return sexCodes[rng.IntN(len(sexCodes))], true, nil
	case containsAny(kw, "indicator", "flag", "yes/no"):
		if rng.IntN(2) == 0 {
			return "N", true, nil
		}
		return "Y", true, nil
	default:
		return "", false, nil
	}
}
