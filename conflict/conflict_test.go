package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/kb/kbtest"
)

func TestDetect(t *testing.T) {
	d := NewDetector(kbtest.Snapshot(t))
	tests := []struct {
		name   string
		c      constraint.QueryConstraint
		bad    bool
		phase  int
		reason string
	}{
		{
			name: "person outside single year",
			c:    constraint.QueryConstraint{Persons: []string{"trần hưng đạo"}, Years: constraint.Single(1945)},
			bad:  true, phase: 1,
			reason: "Trần Hưng Đạo (1228–1300) không sống vào năm 1945.",
		},
		{
			name: "person inside single year",
			c:    constraint.QueryConstraint{Persons: []string{"trần hưng đạo"}, Years: constraint.Single(1288)},
		},
		{
			name: "range partially overlapping the span",
			c:    constraint.QueryConstraint{Persons: []string{"hồ chí minh"}, Years: constraint.Between(1960, 1975)},
		},
		{
			name: "range disjoint from the span",
			c:    constraint.QueryConstraint{Persons: []string{"lê lợi"}, Years: constraint.Between(1960, 1975)},
			bad:  true, phase: 1,
			reason: "Lê Lợi (1385–1433) không sống trong giai đoạn 1960–1975.",
		},
		{
			name: "dynasty outside year",
			c:    constraint.QueryConstraint{Dynasties: []string{"nhà lý"}, Years: constraint.Single(1945)},
			bad:  true, phase: 1,
			reason: "Nhà Lý (1009–1225) không tồn tại vào năm 1945.",
		},
		{
			name: "entity without metadata never conflicts",
			c:    constraint.QueryConstraint{Persons: []string{"lý bí"}, Years: constraint.Single(1945)},
		},
		{
			name: "unknown name never conflicts",
			c:    constraint.QueryConstraint{Persons: []string{"văn tiến dũng"}, Years: constraint.Single(1288)},
		},
		{
			name: "explicit year outside stated range",
			c: constraint.QueryConstraint{
				Years:         constraint.Between(1960, 1975),
				ExplicitYears: []int{1945, 1960, 1975},
			},
			bad: true, phase: 0,
			reason: "Năm 1945 nằm ngoài giai đoạn 1960–1975 mà bạn đã nêu.",
		},
		{
			name: "live during disjoint persons",
			c: constraint.QueryConstraint{
				Persons:      []string{"trần hưng đạo", "hồ chí minh"},
				RelationType: constraint.RelationLiveDuring,
			},
			bad: true, phase: 2,
			reason: "Trần Hưng Đạo (1228–1300) và Hồ Chí Minh (1890–1969) không cùng thời.",
		},
		{
			name: "live during overlapping persons",
			c: constraint.QueryConstraint{
				Persons:      []string{"lê lợi", "nguyễn trãi"},
				RelationType: constraint.RelationLiveDuring,
			},
		},
		{
			name: "belong to a dynasty outside the span",
			c: constraint.QueryConstraint{
				Persons:      []string{"hồ chí minh"},
				Dynasties:    []string{"nhà lý"},
				RelationType: constraint.RelationBelongTo,
			},
			bad: true, phase: 3,
			reason: "Hồ Chí Minh (1890–1969) không thuộc thời Nhà Lý (1009–1225).",
		},
		{
			name: "belong to an overlapping dynasty",
			c: constraint.QueryConstraint{
				Persons:      []string{"lê lợi"},
				Dynasties:    []string{"nhà trần"},
				RelationType: constraint.RelationBelongTo,
			},
		},
		{
			name: "no relation means no pairwise check",
			c: constraint.QueryConstraint{
				Persons:   []string{"hồ chí minh"},
				Dynasties: []string{"nhà lý"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := d.Detect(&tt.c)
			assert.Equal(t, tt.bad, v.IsConflicting)
			if tt.bad {
				assert.Equal(t, tt.phase, v.Phase)
				assert.Equal(t, tt.reason, v.Reason)
			}
		})
	}
}

// Soundness: a conflict is only ever reported for a year outside a span.
func TestDetectSoundness(t *testing.T) {
	snap := kbtest.Snapshot(t)
	d := NewDetector(snap)
	for _, p := range snap.Knowledge().Persons {
		sp, ok := p.Span()
		if !ok {
			continue
		}
		for _, y := range []int{sp.From, (sp.From + sp.To) / 2, sp.To} {
			c := constraint.QueryConstraint{Persons: []string{p.Name}, Years: constraint.Single(y)}
			assert.False(t, d.Detect(&c).IsConflicting, "%s in %d", p.Name, y)
		}
		c := constraint.QueryConstraint{Persons: []string{p.Name}, Years: constraint.Single(sp.To + 1)}
		assert.True(t, d.Detect(&c).IsConflicting, "%s after %d", p.Name, sp.To)
	}
}
