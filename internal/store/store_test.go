package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/safeprop/internal/engine"
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
	"github.com/roach88/safeprop/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, clock *testutil.DeterministicClock) Run {
	return Run{
		ID:            id,
		Root:          "fixtures",
		StartedAt:     clock.Now(),
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Labels:        safety.DefaultLabels,
		Units:         2,
	}
}

func testProposal(run string, seq int, target string, level safety.Level) Proposal {
	hash := ir.SourceHash("class Test {}")
	label := safety.DefaultLabels.Name(level)
	return Proposal{
		RunID:      run,
		ID:         ir.MustProposalID("Test.java", target, label, hash),
		Seq:        seq,
		Unit:       "Test.java",
		Target:     target,
		Kind:       "type",
		Level:      level,
		Label:      label,
		SourceHash: hash,
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
		"user_version": "1",
	} {
		got, err := s.pragma(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	clock := testutil.NewDeterministicClock(time.Time{})
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteRun(ctx, testRun("run-0001", clock)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.ReadRun(ctx, "run-0001")
	require.NoError(t, err)
	assert.Equal(t, "fixtures", run.Root)
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Time{})
	ids := testutil.NewFixedRunIDGenerator("")

	run := testRun(ids.Generate(), clock)
	require.NoError(t, s.WriteRun(ctx, run))
	require.NoError(t, s.WriteRun(ctx, run), "duplicate run is a no-op")

	got, err := s.ReadRun(ctx, "run-0001")
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Nil(t, got.FinishedAt)
}

func TestReadRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinishRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Time{})

	require.NoError(t, s.WriteRun(ctx, testRun("run-0001", clock)))
	require.NoError(t, s.WriteProposals(ctx, []Proposal{
		testProposal("run-0001", 0, "A", safety.DoNotLog),
		testProposal("run-0001", 1, "B", safety.Unsafe),
	}))
	finished := clock.Now()
	require.NoError(t, s.FinishRun(ctx, "run-0001", finished, true))

	got, err := s.ReadRun(ctx, "run-0001")
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, finished, *got.FinishedAt)
	assert.Equal(t, 2, got.Proposals)
	assert.True(t, got.Applied)

	assert.ErrorIs(t, s.FinishRun(ctx, "missing", finished, false), ErrNotFound)
}

func TestWriteProposal_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Time{})
	require.NoError(t, s.WriteRun(ctx, testRun("run-0001", clock)))

	p := testProposal("run-0001", 0, "Test", safety.DoNotLog)
	inserted, err := s.WriteProposal(ctx, p)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.WriteProposal(ctx, p)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.ReadProposals(ctx, "run-0001")
	require.NoError(t, err)
	assert.Equal(t, []Proposal{p}, got)
}

func TestWriteProposal_RequiresRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.WriteProposal(context.Background(), testProposal("missing", 0, "Test", safety.DoNotLog))
	assert.Error(t, err)
}

func TestReadProposals_OrderedBySeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Time{})
	require.NoError(t, s.WriteRun(ctx, testRun("run-0001", clock)))

	ps := []Proposal{
		testProposal("run-0001", 2, "C", safety.Unsafe),
		testProposal("run-0001", 0, "A", safety.DoNotLog),
		testProposal("run-0001", 1, "B", safety.DoNotLog),
	}
	for i := range ps {
		ps[i].Applied = true
	}
	require.NoError(t, s.WriteProposals(ctx, ps))

	got, err := s.ReadProposals(ctx, "run-0001")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, target := range []string{"A", "B", "C"} {
		assert.Equal(t, target, got[i].Target)
		assert.True(t, got[i].Applied)
	}
	assert.Equal(t, safety.Unsafe, got[2].Level)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Time{})
	ids := testutil.NewFixedRunIDGenerator("")
	for range 3 {
		require.NoError(t, s.WriteRun(ctx, testRun(ids.Generate(), clock)))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-0003", runs[0].ID)
	assert.Equal(t, "run-0001", runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestProposalHistory_AcrossRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Time{})

	for _, id := range []string{"run-0001", "run-0002"} {
		require.NoError(t, s.WriteRun(ctx, testRun(id, clock)))
		_, err := s.WriteProposal(ctx, testProposal(id, 0, "Test", safety.DoNotLog))
		require.NoError(t, err)
	}

	p := testProposal("", 0, "Test", safety.DoNotLog)
	history, err := s.ProposalHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "run-0001", history[0].RunID)
	assert.Equal(t, "run-0002", history[1].RunID)
}

func TestNewProposal(t *testing.T) {
	prog := testutil.CompileProgram(t, `unit: "Test.java": {
		source: "interface Test { BearerToken token(); }"
		types: [{name: "Test", kind: "interface", annotations: [], methods: [{name: "token", returns: "BearerToken"}]}]
	}`)
	u := prog.Unit("Test.java")
	f := findingFor(t, prog)

	p, err := NewProposal("run-0001", 3, u, f, safety.Labels{})
	require.NoError(t, err)
	assert.Equal(t, "com.palantir.logsafe.DoNotLog", p.Label)
	assert.Equal(t, ir.SourceHash(u.Source), p.SourceHash)
	assert.Equal(t, ir.MustProposalID("Test.java", "Test", p.Label, p.SourceHash), p.ID)
	assert.Equal(t, 3, p.Seq)
	assert.Equal(t, "type", p.Kind)

	f.Level = safety.Unknown
	_, err = NewProposal("run-0001", 0, u, f, safety.Labels{})
	assert.Error(t, err)
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}

func findingFor(t *testing.T, prog *ir.Program) engine.Finding {
	t.Helper()
	return engine.Finding{
		Unit:   "Test.java",
		Target: "Test",
		Kind:   engine.TargetType,
		Level:  safety.DoNotLog,
		Type:   testutil.Type(t, prog, "Test"),
	}
}
