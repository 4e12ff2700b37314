package script

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sameehj/dtitk-condor/pkg/stage"
	"github.com/stretchr/testify/require"
)

var params = Params{
	DTITKRoot: "/opt/dtitk",
	RegType:   "NMI",
	SepCoarse: 4,
	Voxel:     Voxel{X: 2, Y: 2, Z: 1.5},
}

// body strips the shared header so tests compare only stage commands.
func body(t *testing.T, s stage.Stage, p Params) string {
	t.Helper()
	out, err := Render(s, p)
	require.NoError(t, err)
	header := Header(p.DTITKRoot)
	require.True(t, strings.HasPrefix(string(out), header), "missing header:\n%s", out)
	return strings.TrimPrefix(string(out), header)
}

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

func TestHeader(t *testing.T) {
	want := lines(
		"#!/bin/bash",
		"#Utilizing elements created by Gary Hui Zhang (garyhuizhang@gmail.com), see credits in main script.",
		"#Adapted for use in HTCondor and DAG by Andrew Schoen (schoen.andrewj@gmail.com)",
		"#",
		". /opt/dtitk/scripts/dtitk_common.sh",
		"export DTITK_ROOT=/opt/dtitk",
	)
	if diff := cmp.Diff(want, Header("/opt/dtitk")); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestBootstrap(t *testing.T) {
	got := body(t, stage.Stage{Name: "dti_step1_bootstrapping", Phase: stage.PhaseBootstrap, Scope: stage.ScopeGroup}, params)
	want := lines(
		"echo 'DTI Step 1: Bootstrapping for all scans'",
		"TVMean -in scan_list_file.txt -out dti_mean_initial.nii.gz",
		"TVResample -in dti_mean_initial.nii.gz -vsize 2.0 2.0 1.5 -size 128 128 64",
		"cp dti_mean_initial.nii.gz mean_rigid0.nii.gz",
		"echo 'DTI Step 1: Bootstrapping for all scans -> COMPLETE!'",
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("bootstrap mismatch (-want +got):\n%s", diff)
	}
}

func TestRigidIterFirstAndLater(t *testing.T) {
	first := body(t, stage.Stage{Phase: stage.PhaseRigid, Scope: stage.ScopeIndividual, Iteration: 1}, params)
	want := lines(
		"scan=$1",
		`echo "Current Scan: ${scan}"`,
		"echo 'DTI Step 2.1: Rigid Alignment, Iteration 1'",
		"/opt/dtitk/scripts/dti_rigid_reg mean_rigid0.nii.gz ${scan}_spd.nii.gz NMI 4 4 4 0.01",
		"echo 'DTI Step 2.1: Rigid Alignment, Iteration 1 -> COMPLETE!'",
	)
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("rigid iter1 mismatch (-want +got):\n%s", diff)
	}

	rat := params
	rat.SepCoarse = 0.4
	second := body(t, stage.Stage{Phase: stage.PhaseRigid, Scope: stage.ScopeIndividual, Iteration: 2}, rat)
	require.Contains(t, second, "/opt/dtitk/scripts/dti_rigid_reg mean_rigid1.nii.gz ${scan}_spd.nii.gz NMI 0.4 0.4 0.4 0.01 1\n")
}

func TestAffineIterParts(t *testing.T) {
	a := body(t, stage.Stage{Phase: stage.PhaseAffine, Scope: stage.ScopeIndividual, Iteration: 2, Part: "a"}, params)
	require.Contains(t, a, "echo 'DTI Step 3.2a: Affine Alignment, Iteration 2, Part A'\n")
	require.Contains(t, a, "/opt/dtitk/scripts/dti_affine_reg mean_affine1.nii.gz ${scan}_spd.nii.gz NMI 4 4 4 0.01 1\n")

	b := body(t, stage.Stage{Phase: stage.PhaseAffine, Scope: stage.ScopeIndividual, Iteration: 2, Part: "b"}, params)
	want := lines(
		"scan=$1",
		`echo "Current Scan: ${scan}"`,
		"echo 'DTI Step 3.2b: Affine Alignment, Iteration 2, Part B'",
		"affine3Dtool -in ${scan}_spd.aff -compose average_inv.aff -out ${scan}_spd.aff",
		"affineSymTensor3DVolume -in ${scan}_spd.nii.gz -trans ${scan}_spd.aff -target mean_affine1.nii.gz -out ${scan}_spd_aff.nii.gz",
		"echo 'DTI Step 3.2b: Affine Alignment, Iteration 2, Part B -> COMPLETE!'",
	)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("affine iter b mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffeoIter(t *testing.T) {
	got := body(t, stage.Stage{Phase: stage.PhaseDiffeo, Scope: stage.ScopeIndividual, Iteration: 3}, params)
	require.Contains(t, got, "/opt/dtitk/scripts/dti_diffeomorphic_reg mean_diffeomorphic_initial.nii.gz ${scan}_spd_aff.nii.gz mask.nii.gz 1 3 0.002\n")
}

func TestRigidInterHandOff(t *testing.T) {
	mid := body(t, stage.Stage{Phase: stage.PhaseRigid, Scope: stage.ScopeGroup, Iteration: 1}, params)
	require.Contains(t, mid, "TVtool -in mean_rigid0.nii.gz -sm mean_rigid1.nii.gz -SMOption  NMI | grep Similarity | tee -a rigid_normalization.log\n")
	require.NotContains(t, mid, "mean_affine0")

	last := body(t, stage.Stage{Phase: stage.PhaseRigid, Scope: stage.ScopeGroup, Iteration: 3, Last: true}, params)
	require.True(t, strings.HasSuffix(last, "cp mean_rigid3.nii.gz mean_affine0.nii.gz\n"), last)
}

func TestAffineInter(t *testing.T) {
	a := body(t, stage.Stage{Phase: stage.PhaseAffine, Scope: stage.ScopeGroup, Iteration: 1, Part: "a", Last: true}, params)
	want := lines(
		`echo "DTI Step 3.1a.1: Adjusting Affine Average for all scans, Iteration 1"`,
		"affine3DShapeAverage affine.txt mean_affine0.nii.gz average_inv.aff 1",
		`echo "DTI Step 3.1a.1: Adjusting Affine Average for all scans, Iteration 1 -> COMPLETE!"`,
	)
	if diff := cmp.Diff(want, a); diff != "" {
		t.Fatalf("affine inter a mismatch (-want +got):\n%s", diff)
	}

	b := body(t, stage.Stage{Phase: stage.PhaseAffine, Scope: stage.ScopeGroup, Iteration: 3, Part: "b", Last: true}, params)
	want = lines(
		`echo "DTI Step 3.3b.1: Adjusting Affine Average for all scans, Iteration 3"`,
		"rm -fr average_inv.aff",
		"TVMean -in scan_list_file_aff.txt -out mean_affine3.nii.gz",
		"TVtool -in mean_affine2.nii.gz -sm mean_affine3.nii.gz -SMOption  NMI | grep Similarity | tee -a affine_normalization.log",
		`echo "DTI Step 3.3b.1: Adjusting Affine Average for all scans, Iteration 3 -> COMPLETE!"`,
		"echo 'Preparing for Diffeomorphic Alignment'",
		"TVtool -tr -in mean_affine3.nii.gz",
		"BinaryThresholdImageFilter mean_affine3_tr.nii.gz mask.nii.gz 0 .01 100 1 0",
		"#Prepare for the diffeomorphic alignment in the next step by copying over the file we just created.",
		"cp mean_affine3.nii.gz mean_diffeomorphic0.nii.gz",
		"ln -sf mean_diffeomorphic0.nii.gz mean_diffeomorphic_initial.nii.gz",
	)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("affine inter b mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffeoInter(t *testing.T) {
	mid := body(t, stage.Stage{Phase: stage.PhaseDiffeo, Scope: stage.ScopeGroup, Iteration: 2}, params)
	require.Contains(t, mid, "#Make the new working file.\nln -sf mean_diffeomorphic2.nii.gz mean_diffeomorphic_initial.nii.gz\n")
	require.NotContains(t, mid, "ALL DONE")

	last := body(t, stage.Stage{Phase: stage.PhaseDiffeo, Scope: stage.ScopeGroup, Iteration: 6, Last: true}, params)
	want := lines(
		"echo 'DTI Step 4.6.1: Adjusting Diffeomorphic Average for all scans, Iteration 6'",
		"TVMean -in scan_list_file_aff_diffeo.txt -out mean_diffeomorphic6.nii.gz",
		"VVMean -in diffeo.txt -out mean_df.nii.gz",
		"dfToInverse -in mean_df.nii.gz",
		"deformationSymTensor3DVolume -in mean_diffeomorphic6.nii.gz -out mean_diffeomorphic6.nii.gz -trans mean_df_inv.nii.gz",
		"#Clear up the temporary files",
		"rm -fr mean_diffeomorphic_initial.nii.gz",
		"echo 'DTI Step 4.6.1: Adjusting Diffeomorphic Average for all scans, Iteration 6 -> COMPLETE!'",
		"echo '#'",
		"echo 'ALL DONE'",
	)
	if diff := cmp.Diff(want, last); diff != "" {
		t.Fatalf("diffeo inter mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderEveryPlannedStage(t *testing.T) {
	plan, err := stage.NewPlan(stage.Counts{Rigid: 3, Affine: 3, Diffeo: 6})
	require.NoError(t, err)
	for _, s := range plan.All() {
		_, err := Render(s, params)
		require.NoError(t, err, s.Name)
	}
}

func TestRenderUnknownStage(t *testing.T) {
	_, err := Render(stage.Stage{Name: "mystery", Phase: "warp", Scope: stage.ScopeGroup}, params)
	require.ErrorContains(t, err, "mystery")
}

func TestFormatVoxel(t *testing.T) {
	require.Equal(t, "2.0", FormatVoxel(2))
	require.Equal(t, "1.5", FormatVoxel(1.5))
	require.Equal(t, "0.25", FormatVoxel(0.25))
	require.Equal(t, "4", FormatCoefficient(4))
	require.Equal(t, "0.2", FormatCoefficient(0.2))
}
