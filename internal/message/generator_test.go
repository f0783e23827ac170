package message

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
)

const tsLayout = "20060102150405.0000"

func TestGenerateAdmission(t *testing.T) {
	g := newTestGenerator(nil)

	res, err := g.Generate(context.Background(), Request{MessageType: "ADT^A01", Seed: 11})
	require.NoError(t, err)

	var codes []string
	for _, s := range res.Segments {
		codes = append(codes, s[:3])
	}
	assert.Equal(t, []string{"MSH", "EVN", "PID", "NK1", "PV1", "DG1"}, codes)

	msh := res.Segments[0]
	assert.True(t, strings.HasPrefix(msh, `MSH|^~\&|HL7GEN|SYNTH_HOSP|RECEIVER|RECEIVER_FAC|`))
	assert.Equal(t, "ADT^A01^ADT_A01", fieldAt(msh, 9))
	assert.Equal(t, res.ControlID, fieldAt(msh, 10))
	assert.NotEmpty(t, res.ControlID)
	assert.LessOrEqual(t, len(res.ControlID), 20)
	assert.Equal(t, "T", fieldAt(msh, 11))
	assert.Equal(t, domain.DefaultStandardVersion, fieldAt(msh, 12))

	evn := segmentsWith(res, "EVN")[0]
	assert.Equal(t, "A01", fieldAt(evn, 1))

	assert.Equal(t, "1", fieldAt(segmentsWith(res, "PID")[0], 1))
	assert.Equal(t, "1", fieldAt(segmentsWith(res, "NK1")[0], 1))
	pv1 := segmentsWith(res, "PV1")[0]
	assert.Empty(t, fieldAt(pv1, 36))
	assert.Empty(t, fieldAt(pv1, 45))

	msg := res.Message()
	assert.True(t, strings.HasSuffix(msg, SegmentTerminator))
	assert.NotContains(t, msg, "\n")
	assert.Len(t, strings.Split(strings.TrimSuffix(msg, SegmentTerminator), SegmentTerminator), len(res.Segments))
}

func TestGenerateOrdersTimestamps(t *testing.T) {
	g := newTestGenerator(nil)

	for seed := uint64(1); seed <= 20; seed++ {
		res, err := g.Generate(context.Background(), Request{MessageType: "ADT_A01", Seed: seed})
		require.NoError(t, err)

		recorded, err := time.Parse(tsLayout, fieldAt(segmentsWith(res, "EVN")[0], 2))
		require.NoError(t, err)
		sent, err := time.Parse(tsLayout, fieldAt(res.Segments[0], 7))
		require.NoError(t, err)

		assert.False(t, recorded.After(fixedNow), "event time is in the past")
		assert.False(t, sent.Before(recorded), "MSH.7 follows EVN.2")
		assert.LessOrEqual(t, sent.Sub(recorded), time.Hour)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := newTestGenerator(nil)
	ctx := context.Background()

	a, err := g.Generate(ctx, Request{MessageType: "ORU^R01", Seed: 42})
	require.NoError(t, err)
	b, err := g.Generate(ctx, Request{MessageType: "ORU^R01", Seed: 42})
	require.NoError(t, err)
	c, err := g.Generate(ctx, Request{MessageType: "ORU^R01", Seed: 43})
	require.NoError(t, err)

	assert.Equal(t, a.Segments, b.Segments)
	assert.Equal(t, a.ControlID, b.ControlID)
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.Segments, c.Segments)
	assert.NotEqual(t, a.ControlID, c.ControlID)
}

func TestGenerateRandomSeedIsReported(t *testing.T) {
	g := newTestGenerator(nil)
	ctx := context.Background()

	first, err := g.Generate(ctx, Request{MessageType: "ADT^A08"})
	require.NoError(t, err)
	require.NotZero(t, first.Seed)

	replay, err := g.Generate(ctx, Request{MessageType: "ADT^A08", Seed: first.Seed})
	require.NoError(t, err)
	assert.Equal(t, first.Segments, replay.Segments)
}

func TestGenerateResultWithoutEventSegment(t *testing.T) {
	g := newTestGenerator(nil)

	res, err := g.Generate(context.Background(), Request{MessageType: "ORU^R01", Seed: 5, Scenario: "diabetes_management"})
	require.NoError(t, err)
	assert.Empty(t, segmentsWith(res, "EVN"))

	sent, err := time.Parse(tsLayout, fieldAt(res.Segments[0], 7))
	require.NoError(t, err)
	assert.False(t, sent.After(fixedNow.Add(time.Hour)))

	orc := segmentsWith(res, "ORC")[0]
	assert.NotEmpty(t, fieldAt(orc, 9), "ORC.9 needs the event anchor")

	obr := segmentsWith(res, "OBR")[0]
	assert.True(t, strings.HasPrefix(fieldAt(obr, 4), "2345-7^"))

	obx := segmentsWith(res, "OBX")
	require.Len(t, obx, 3)
	wantCodes := []string{"2345-7", "4548-4", "2160-0"}
	for i, seg := range obx {
		assert.Equal(t, strconv.Itoa(i+1), fieldAt(seg, 1))
		code, _, _ := strings.Cut(fieldAt(seg, 3), "^")
		assert.Equal(t, wantCodes[i], code)
		_, err := strconv.ParseFloat(fieldAt(seg, 5), 64)
		assert.NoError(t, err, "OBX.5 is numeric")
	}
}

func TestGeneratePharmacyOrder(t *testing.T) {
	g := newTestGenerator(nil)

	res, err := g.Generate(context.Background(), Request{MessageType: "RDE^O11", Seed: 3, Scenario: "diabetes_management"})
	require.NoError(t, err)

	rxe := segmentsWith(res, "RXE")[0]
	assert.Equal(t, "00093-1048-01^Metformin Hydrochloride^NDC", fieldAt(rxe, 2))
	assert.Equal(t, "500", fieldAt(rxe, 3))
	assert.Equal(t, "PO^Oral^HL70162", fieldAt(segmentsWith(res, "RXR")[0], 1))
}

func TestGenerateRepeats(t *testing.T) {
	g := newTestGenerator(nil)

	res, err := g.Generate(context.Background(), Request{
		MessageType: "ADT^A01",
		Seed:        8,
		Repeats:     map[string]int{"dg1": 3, "NK1": 0},
	})
	require.NoError(t, err)

	assert.Empty(t, segmentsWith(res, "NK1"))
	dg1 := segmentsWith(res, "DG1")
	require.Len(t, dg1, 3)
	for i, seg := range dg1 {
		assert.Equal(t, strconv.Itoa(i+1), fieldAt(seg, 1))
	}
}

func TestGenerateScenarioDiagnosesStartAtPrimary(t *testing.T) {
	g := newTestGenerator(nil)

	res, err := g.Generate(context.Background(), Request{
		MessageType: "ADT^A01",
		Seed:        1,
		Scenario:    "hypertension",
		Repeats:     map[string]int{"DG1": 3},
	})
	require.NoError(t, err)

	dg1 := segmentsWith(res, "DG1")
	require.Len(t, dg1, 3)
	var codes []string
	for _, seg := range dg1 {
		code, _, _ := strings.Cut(fieldAt(seg, 3), "^")
		codes = append(codes, code)
		assert.Equal(t, "I10", fieldAt(seg, 2))
	}
	assert.Equal(t, []string{"I10", "E78.5", "I10"}, codes)
	assert.Equal(t, "Essential (primary) hypertension", fieldAt(dg1[0], 4))
	assert.Equal(t, "Hyperlipidemia, unspecified", fieldAt(dg1[1], 4))
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	g := newTestGenerator(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unsupported type", Request{MessageType: "SIU^S12"}, domain.ErrInvalidMessageType},
		{"malformed type", Request{MessageType: "ADT"}, domain.ErrInvalidMessageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(ctx, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	invalid := []struct {
		name string
		req  Request
	}{
		{"non repeatable segment", Request{MessageType: "ADT^A01", Repeats: map[string]int{"PID": 2}}},
		{"segment not in layout", Request{MessageType: "ADT^A01", Repeats: map[string]int{"OBX": 2}}},
		{"too many repeats", Request{MessageType: "ADT^A01", Repeats: map[string]int{"DG1": MaxRepeats + 1}}},
		{"unknown scenario", Request{MessageType: "ADT^A01", Scenario: "no_such_case"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(ctx, tt.req)
			var ve *domain.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestGenerateUsesDefaultMessageType(t *testing.T) {
	g := newTestGenerator(nil)

	res, err := g.Generate(context.Background(), Request{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultMessageType, res.MessageType)
}

func TestGenerateAppliesLockedValues(t *testing.T) {
	sessions := lockedValues{
		"fixed": {
			"PID.5": "DOE^JANE",
			"EVN.2": "20250101120000",
			"PID.8": "bad|value\nhere",
		},
	}
	g := newTestGenerator(sessions)

	res, err := g.Generate(context.Background(), Request{MessageType: "ADT^A01", Seed: 9, SessionName: "fixed"})
	require.NoError(t, err)

	pid := segmentsWith(res, "PID")[0]
	assert.Equal(t, "DOE^JANE", fieldAt(pid, 5))
	assert.Contains(t, pid, `bad\F\value here`)

	evn := segmentsWith(res, "EVN")[0]
	assert.Equal(t, "20250101120000", fieldAt(evn, 2))

	locked := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sent, err := time.Parse(tsLayout, fieldAt(res.Segments[0], 7))
	require.NoError(t, err)
	assert.False(t, sent.Before(locked))
	assert.LessOrEqual(t, sent.Sub(locked), time.Hour)

	occurred, err := time.Parse(tsLayout, fieldAt(evn, 6))
	require.NoError(t, err)
	assert.False(t, occurred.After(locked))
}

func TestGenerateUnknownSessionIsIgnored(t *testing.T) {
	g := newTestGenerator(lockedValues{})

	res, err := g.Generate(context.Background(), Request{MessageType: "ADT^A03", Seed: 2, SessionName: "missing"})
	require.NoError(t, err)
	assert.NotEmpty(t, fieldAt(segmentsWith(res, "PID")[0], 5))
}

func TestGenerateHonorsCancellation(t *testing.T) {
	g := newTestGenerator(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, Request{MessageType: "ADT^A01", Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateBatch(t *testing.T) {
	g := newTestGenerator(nil)
	ctx := context.Background()

	batch, err := g.GenerateBatch(ctx, BatchRequest{Request: Request{MessageType: "ADT^A01", Seed: 99}, Count: 10})
	require.NoError(t, err)
	require.Len(t, batch.Results, 10)
	assert.Equal(t, uint64(99), batch.Seed)

	seen := make(map[string]bool)
	for i, res := range batch.Results {
		require.NotNil(t, res)
		assert.Equal(t, DeriveSeed(99, i), res.Seed)
		assert.False(t, seen[res.ControlID], "control IDs are unique")
		seen[res.ControlID] = true
	}

	again, err := g.GenerateBatch(ctx, BatchRequest{Request: Request{MessageType: "ADT^A01", Seed: 99}, Count: 10})
	require.NoError(t, err)
	for i := range batch.Results {
		assert.Equal(t, batch.Results[i].Segments, again.Results[i].Segments, "message %d", i)
	}

	single, err := g.Generate(ctx, Request{MessageType: "ADT^A01", Seed: DeriveSeed(99, 4)})
	require.NoError(t, err)
	assert.Equal(t, batch.Results[4].Segments, single.Segments)
}

func TestGenerateBatchLimits(t *testing.T) {
	g := newTestGenerator(nil)
	ctx := context.Background()

	for _, count := range []int{0, -1, 51} {
		_, err := g.GenerateBatch(ctx, BatchRequest{Request: Request{MessageType: "ADT^A01"}, Count: count})
		var ve *domain.ValidationError
		assert.True(t, errors.As(err, &ve), "count %d", count)
	}

	_, err := g.GenerateBatch(ctx, BatchRequest{Request: Request{MessageType: "XYZ^Z01"}, Count: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidMessageType)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = g.GenerateBatch(cancelled, BatchRequest{Request: Request{MessageType: "ADT^A01"}, Count: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamMatchesBatch(t *testing.T) {
	g := newTestGenerator(nil)
	ctx := context.Background()
	req := BatchRequest{Request: Request{MessageType: "ORU^R01", Seed: 17}, Count: 4}

	batch, err := g.GenerateBatch(ctx, req)
	require.NoError(t, err)

	var streamed []*Result
	seed, err := g.Stream(ctx, req, func(i int, res *Result) error {
		assert.Equal(t, len(streamed), i)
		streamed = append(streamed, res)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(17), seed)
	require.Len(t, streamed, 4)
	for i := range streamed {
		assert.Equal(t, batch.Results[i].Segments, streamed[i].Segments, "message %d", i)
	}
}

func TestStreamStopsOnEmitError(t *testing.T) {
	g := newTestGenerator(nil)
	stop := errors.New("client went away")

	calls := 0
	_, err := g.Stream(context.Background(), BatchRequest{Request: Request{Seed: 3}, Count: 5}, func(int, *Result) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	_, err = g.Stream(context.Background(), BatchRequest{Count: 0}, func(int, *Result) error { return nil })
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestGetStats(t *testing.T) {
	g := newTestGenerator(nil)
	ctx := context.Background()

	_, err := g.Generate(ctx, Request{Seed: 1})
	require.NoError(t, err)
	_, err = g.GenerateBatch(ctx, BatchRequest{Request: Request{Seed: 2}, Count: 3})
	require.NoError(t, err)

	stats := g.GetStats()
	assert.Equal(t, int64(4), stats.Messages)
	assert.Equal(t, int64(1), stats.Batches)
}

func TestDeriveSeed(t *testing.T) {
	assert.Equal(t, DeriveSeed(7, 3), DeriveSeed(7, 3))
	assert.NotEqual(t, DeriveSeed(7, 3), DeriveSeed(7, 4))
	assert.NotEqual(t, DeriveSeed(7, 3), DeriveSeed(8, 3))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "plain", sanitize("plain"))
	assert.Equal(t, `a\F\b c d`, sanitize("a|b\r\nc\nd"))
	assert.Equal(t, `\E\F\E\ x\F\y`, sanitize(`\F\ x|y`))
	assert.Equal(t, `C:\E\tmp`, sanitize(`C:\tmp`))
}

func TestRender(t *testing.T) {
	pid := &segment{spec: SegmentSpec{Code: "PID"}, values: map[int]string{1: "1", 3: "X", 5: "", 7: ""}}
	assert.Equal(t, "PID|1||X", render(pid))

	msh := &segment{spec: SegmentSpec{Code: "MSH"}, values: map[int]string{1: "|", 2: `^~\&`, 3: "APP"}}
	assert.Equal(t, `MSH|^~\&|APP`, render(msh))
}

func TestRecordAnchorParsesPrecisions(t *testing.T) {
	for _, v := range []string{"20250101120000.0000", "20250101120000", "202501011200", "20250101^S"} {
		gen := domain.NewGenerationContext(domain.ADT_A01, domain.WithSeed(1))
		recordAnchor(gen, v)
		at, ok := gen.Anchor("EVN.2")
		require.True(t, ok, v)
		assert.Equal(t, 2025, at.Year())
	}

	gen := domain.NewGenerationContext(domain.ADT_A01, domain.WithSeed(1))
	recordAnchor(gen, "not a time")
	_, ok := gen.Anchor("EVN.2")
	assert.False(t, ok)
}
