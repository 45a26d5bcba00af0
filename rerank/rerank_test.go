package rerank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/kb/kbtest"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/llm/llmtest"
	"github.com/brunobiangulo/historymind/retrieval"
)

const tongQuery = "Lý Thường Kiệt đánh bại quân Tống"

func candidates(t *testing.T, snap *kb.Snapshot, ids ...string) []retrieval.Candidate {
	t.Helper()
	out := make([]retrieval.Candidate, 0, len(ids))
	for _, id := range ids {
		pos, ok := snap.Position(id)
		require.True(t, ok, id)
		out = append(out, retrieval.Candidate{Doc: snap.Doc(pos), Pos: pos, Score: 1})
	}
	return out
}

func ids(cands []retrieval.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Doc.ID
	}
	return out
}

func newFilter(t *testing.T, snap *kb.Snapshot, cross llm.CrossEncoder, nli llm.NLI, cfg Config) *Filter {
	t.Helper()
	cfg.PoolSize = 2
	f, err := New(snap, cross, nli, cfg)
	require.NoError(t, err)
	t.Cleanup(f.Release)
	return f
}

func TestApplySortsByCrossScore(t *testing.T) {
	snap := kbtest.Snapshot(t)
	cross := &llmtest.CrossEncoder{}
	f := newFilter(t, snap, cross, nil, DefaultConfig())
	in := candidates(t, snap, "doido-1010", "bachdang-938", "nhunguyet-1077")
	c := &constraint.QueryConstraint{Rewritten: tongQuery}

	out := f.Apply(context.Background(), in, c)
	assert.Equal(t, []string{"nhunguyet-1077", "bachdang-938", "doido-1010"}, ids(out))
	assert.InDelta(t, 1.0, out[0].CrossScore, 1e-9)
	assert.Equal(t, 3, cross.Calls())
	assert.Zero(t, in[0].CrossScore, "input is not modified")
}

func TestRelativeFloor(t *testing.T) {
	snap := kbtest.Snapshot(t)
	cfg := DefaultConfig()
	cfg.KeepTop = 1
	f := newFilter(t, snap, &llmtest.CrossEncoder{}, nil, cfg)
	ids3 := []string{"doido-1010", "bachdang-938", "nhunguyet-1077"}

	tests := []struct {
		name string
		c    constraint.QueryConstraint
		want []string
	}{
		{"floor applies", constraint.QueryConstraint{Rewritten: tongQuery},
			[]string{"nhunguyet-1077"}},
		{"range keeps all", constraint.QueryConstraint{Rewritten: tongQuery, Years: constraint.Between(900, 1100)},
			[]string{"nhunguyet-1077", "bachdang-938", "doido-1010"}},
		{"multi-year keeps all", constraint.QueryConstraint{Rewritten: tongQuery, ExplicitYears: []int{938, 1077}},
			[]string{"nhunguyet-1077", "bachdang-938", "doido-1010"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Apply(context.Background(), candidates(t, snap, ids3...), &tt.c)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestCrossFailureFallsBackToKeywords(t *testing.T) {
	snap := kbtest.Snapshot(t)
	c := &constraint.QueryConstraint{Rewritten: tongQuery, Persons: []string{"lý thường kiệt"}}

	for name, cross := range map[string]llm.CrossEncoder{
		"one call fails": &llmtest.CrossEncoder{FailOn: "Như Nguyệt"},
		"no encoder":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFilter(t, snap, cross, nil, DefaultConfig())
			out := f.Apply(context.Background(), candidates(t, snap, "doido-1010", "bachdang-938", "nhunguyet-1077"), c)
			require.Len(t, out, 3)
			assert.Equal(t, []string{"nhunguyet-1077", "bachdang-938", "doido-1010"}, ids(out))
			// person +25, two military terms +10, victory +5, heroic tone +5
			assert.InDelta(t, 45.0, out[0].CrossScore, 1e-9)
			assert.Less(t, out[2].CrossScore, 0.0)
		})
	}
}

type blockingCross struct{}

func (blockingCross) Score(ctx context.Context, _, _ string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestCrossTimeoutFallsBack(t *testing.T) {
	snap := kbtest.Snapshot(t)
	cfg := DefaultConfig()
	cfg.ScorerTimeout = 20 * time.Millisecond
	f := newFilter(t, snap, blockingCross{}, nil, cfg)
	c := &constraint.QueryConstraint{Rewritten: tongQuery, Persons: []string{"lý thường kiệt"}}

	out := f.Apply(context.Background(), candidates(t, snap, "doido-1010", "nhunguyet-1077"), c)
	assert.Equal(t, []string{"nhunguyet-1077", "doido-1010"}, ids(out))
}

func TestEntailmentFilter(t *testing.T) {
	snap := kbtest.Snapshot(t)
	c := &constraint.QueryConstraint{Rewritten: tongQuery}
	in := []string{"doido-1010", "bachdang-938", "nhunguyet-1077"}

	t.Run("drops contradicted", func(t *testing.T) {
		nli := &llmtest.NLI{Fixed: map[string]llm.Entailment{
			"Hoa Lư": {Entail: 0.1, Contradict: 0.8, Neutral: 0.1},
		}}
		f := newFilter(t, snap, &llmtest.CrossEncoder{}, nli, DefaultConfig())
		out := f.Apply(context.Background(), candidates(t, snap, in...), c)
		assert.Equal(t, []string{"nhunguyet-1077", "bachdang-938"}, ids(out))
		require.NotNil(t, out[0].NLI)
		assert.InDelta(t, 1.0, out[0].NLI.Entail, 1e-9)
	})

	t.Run("weak entailment must beat contradiction", func(t *testing.T) {
		nli := &llmtest.NLI{Fixed: map[string]llm.Entailment{
			"Như Nguyệt": {Entail: 0.3, Contradict: 0.6},
			"Nam Hán":    {Entail: 0.3, Contradict: 0.1},
			"Hoa Lư":     {Entail: 0.55, Contradict: 0.4},
		}}
		f := newFilter(t, snap, &llmtest.CrossEncoder{}, nli, DefaultConfig())
		out := f.Apply(context.Background(), candidates(t, snap, in...), c)
		assert.Equal(t, []string{"bachdang-938", "doido-1010"}, ids(out))
	})

	t.Run("all rejected keeps best entailed", func(t *testing.T) {
		nli := &llmtest.NLI{Fixed: map[string]llm.Entailment{
			"Như Nguyệt": {Entail: 0.05, Contradict: 0.9},
			"Nam Hán":    {Entail: 0.15, Contradict: 0.5},
			"Hoa Lư":     {Entail: 0.1, Contradict: 0.6},
		}}
		cfg := DefaultConfig()
		cfg.KeepTop = 2
		f := newFilter(t, snap, &llmtest.CrossEncoder{}, nli, cfg)
		out := f.Apply(context.Background(), candidates(t, snap, in...), c)
		assert.Equal(t, []string{"bachdang-938", "doido-1010"}, ids(out))
	})

	t.Run("unavailable keeps all", func(t *testing.T) {
		f := newFilter(t, snap, &llmtest.CrossEncoder{}, &llmtest.NLI{Err: errors.New("down")}, DefaultConfig())
		out := f.Apply(context.Background(), candidates(t, snap, in...), c)
		assert.Len(t, out, 3)
		assert.Nil(t, out[0].NLI)
	})
}

func TestApplyEmpty(t *testing.T) {
	f := newFilter(t, kbtest.Snapshot(t), &llmtest.CrossEncoder{}, nil, DefaultConfig())
	assert.Empty(t, f.Apply(context.Background(), nil, &constraint.QueryConstraint{}))
}

func TestApplyScoresEveryCandidate(t *testing.T) {
	snap := kbtest.Snapshot(t)
	var all []string
	for pos := 0; pos < snap.Len(); pos++ {
		all = append(all, snap.Doc(pos).ID)
	}
	cross := &llmtest.CrossEncoder{}
	cfg := DefaultConfig()
	cfg.RelativeFloor = 0
	f := newFilter(t, snap, cross, nil, cfg)

	out := f.Apply(context.Background(), candidates(t, snap, all...), &constraint.QueryConstraint{Rewritten: "chiến thắng bạch đằng"})
	assert.Len(t, out, len(all))
	assert.Equal(t, len(all), cross.Calls())
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].CrossScore, out[i].CrossScore)
	}
}

func TestKeywordEnemy(t *testing.T) {
	snap := kbtest.Snapshot(t)
	w := DefaultKeywordWeights()

	s := newKeywordScorer(w, snap, &constraint.QueryConstraint{Rewritten: "phòng tuyến chống Tống"})
	nhu := candidates(t, snap, "nhunguyet-1077")[0].Doc
	doi := candidates(t, snap, "doido-1010")[0].Doc
	assert.Equal(t, w.Enemy, s.score(nhu))
	assert.Equal(t, w.EnemyMissing, s.score(doi))

	s = newKeywordScorer(w, snap, &constraint.QueryConstraint{Rewritten: "kháng chiến chống mỹ"})
	assert.Contains(t, s.enemies, "kháng chiến chống mỹ")
}

func TestKeywordDynasty(t *testing.T) {
	snap := kbtest.Snapshot(t)
	w := DefaultKeywordWeights()
	s := newKeywordScorer(w, snap, &constraint.QueryConstraint{Rewritten: "nhà lý", Dynasties: []string{"nhà lý"}})

	docs := candidates(t, snap, "doido-1010", "dongda-1789", "dang-1930")
	assert.Equal(t, w.DynastyMatch, s.score(docs[0].Doc))
	assert.Equal(t, w.DynastyMismatch, s.score(docs[1].Doc))
	assert.Zero(t, s.score(docs[2].Doc), "no dynasty is neutral")
}

func TestPassageAndPremise(t *testing.T) {
	snap := kbtest.Snapshot(t)
	d := candidates(t, snap, "bachdang-1288")[0].Doc
	assert.Equal(t,
		"Năm 1288. Chiến thắng Bạch Đằng năm 1288. Trần Hưng Đạo chỉ huy quân dân nhà Trần đại phá quân Nguyên trên sông Bạch Đằng.. Triều nhà trần. Nhân vật: trần hưng đạo, trần nhân tông",
		PassageText(d))

	f := &Filter{cfg: Config{PremiseRunes: 10}}
	assert.Equal(t, "Năm 1288. Chiến thắng Bạch Đằng năm 1288. Trần Hưng ", f.premise(d))
}
