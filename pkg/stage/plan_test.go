package stage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNewPlanOrdering(t *testing.T) {
	p, err := NewPlan(Counts{Rigid: 2, Affine: 1, Diffeo: 2})
	require.NoError(t, err)

	wantGroup := []string{
		"dti_step1_bootstrapping",
		"dti_step2_rigid_inter1",
		"dti_step2_rigid_inter2",
		"dti_step3_affine_inter1a",
		"dti_step3_affine_inter1b",
		"dti_step4_diffeo_inter1",
		"dti_step4_diffeo_inter2",
	}
	wantIndividual := []string{
		"dti_step2_rigid_iter1",
		"dti_step2_rigid_iter2",
		"dti_step3_affine_iter1a",
		"dti_step3_affine_iter1b",
		"dti_step4_diffeo_iter1",
		"dti_step4_diffeo_iter2",
	}
	if diff := cmp.Diff(wantGroup, p.GroupNames()); diff != "" {
		t.Fatalf("group names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantIndividual, p.IndividualNames()); diff != "" {
		t.Fatalf("individual names mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPlanDefaultCounts(t *testing.T) {
	p, err := NewPlan(Counts{Rigid: 3, Affine: 3, Diffeo: 6})
	require.NoError(t, err)
	require.Len(t, p.Individual, 3+2*3+6)
	require.Len(t, p.Group, len(p.Individual)+1)
	require.Len(t, p.All(), len(p.Group)+len(p.Individual))
}

func TestNewPlanMarksLastIteration(t *testing.T) {
	p, err := NewPlan(Counts{Rigid: 2, Affine: 2, Diffeo: 1})
	require.NoError(t, err)

	last := map[string]bool{}
	for _, s := range p.All() {
		last[s.Name] = s.Last
	}
	require.False(t, last["dti_step2_rigid_inter1"])
	require.True(t, last["dti_step2_rigid_inter2"])
	require.False(t, last["dti_step3_affine_inter1b"])
	require.True(t, last["dti_step3_affine_inter2a"])
	require.True(t, last["dti_step3_affine_inter2b"])
	require.True(t, last["dti_step4_diffeo_iter1"])
}

func TestNewPlanZeroPhasesCollapse(t *testing.T) {
	p, err := NewPlan(Counts{Rigid: 0, Affine: 1, Diffeo: 0})
	require.NoError(t, err)
	require.Equal(t, []string{"dti_step1_bootstrapping", "dti_step3_affine_inter1a", "dti_step3_affine_inter1b"}, p.GroupNames())

	p, err = NewPlan(Counts{})
	require.NoError(t, err)
	require.Equal(t, []string{"dti_step1_bootstrapping"}, p.GroupNames())
	require.Empty(t, p.Individual)
}

func TestNewPlanRejectsNegative(t *testing.T) {
	_, err := NewPlan(Counts{Rigid: -1})
	require.Error(t, err)
}
