// Package script renders the bash scripts that condor runs for each stage.
// Individual-stage scripts take the subject identifier as $1; group-stage
// scripts take no arguments. All scripts run inside the normalization
// directory.
package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sameehj/dtitk-condor/pkg/stage"
)

// Voxel is the resampling voxel size used by the bootstrapping step.
type Voxel struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Params carries the run-wide values substituted into scripts.
type Params struct {
	DTITKRoot string
	RegType   string
	SepCoarse float64
	Voxel     Voxel
}

// Header is the preamble every script starts with.
func Header(dtitkRoot string) string {
	return "#!/bin/bash\n" +
		"#Utilizing elements created by Gary Hui Zhang (garyhuizhang@gmail.com), see credits in main script.\n" +
		"#Adapted for use in HTCondor and DAG by Andrew Schoen (schoen.andrewj@gmail.com)\n" +
		"#\n" +
		". " + dtitkRoot + "/scripts/dtitk_common.sh\n" +
		"export DTITK_ROOT=" + dtitkRoot + "\n"
}

type writer struct {
	strings.Builder
}

func (w *writer) line(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
	w.WriteByte('\n')
}

// subjectPrologue reads the subject from the first argument.
func (w *writer) subjectPrologue() {
	w.line("scan=$1")
	w.line(`echo "Current Scan: ${scan}"`)
}

// Render returns the script for s.
func Render(s stage.Stage, p Params) ([]byte, error) {
	w := &writer{}
	w.WriteString(Header(p.DTITKRoot))

	switch {
	case s.Phase == stage.PhaseBootstrap:
		bootstrap(w, p)
	case s.Scope == stage.ScopeIndividual && s.Phase == stage.PhaseRigid:
		rigidIter(w, s, p)
	case s.Scope == stage.ScopeIndividual && s.Phase == stage.PhaseAffine && s.Part == "a":
		affineIterA(w, s, p)
	case s.Scope == stage.ScopeIndividual && s.Phase == stage.PhaseAffine && s.Part == "b":
		affineIterB(w, s)
	case s.Scope == stage.ScopeIndividual && s.Phase == stage.PhaseDiffeo:
		diffeoIter(w, s, p)
	case s.Scope == stage.ScopeGroup && s.Phase == stage.PhaseRigid:
		rigidInter(w, s, p)
	case s.Scope == stage.ScopeGroup && s.Phase == stage.PhaseAffine && s.Part == "a":
		affineInterA(w, s)
	case s.Scope == stage.ScopeGroup && s.Phase == stage.PhaseAffine && s.Part == "b":
		affineInterB(w, s, p)
	case s.Scope == stage.ScopeGroup && s.Phase == stage.PhaseDiffeo:
		diffeoInter(w, s)
	default:
		return nil, fmt.Errorf("no script template for stage %s (%s %s)", s.Name, s.Scope, s.Phase)
	}
	return []byte(w.String()), nil
}

func bootstrap(w *writer, p Params) {
	w.line("echo 'DTI Step 1: Bootstrapping for all scans'")
	w.line("TVMean -in scan_list_file.txt -out dti_mean_initial.nii.gz")
	w.line("TVResample -in dti_mean_initial.nii.gz -vsize %s %s %s -size 128 128 64",
		FormatVoxel(p.Voxel.X), FormatVoxel(p.Voxel.Y), FormatVoxel(p.Voxel.Z))
	w.line("cp dti_mean_initial.nii.gz mean_rigid0.nii.gz")
	w.line("echo 'DTI Step 1: Bootstrapping for all scans -> COMPLETE!'")
}

func rigidIter(w *writer, s stage.Stage, p Params) {
	i, prev := s.Iteration, s.Iteration-1
	sep := FormatCoefficient(p.SepCoarse)
	w.subjectPrologue()
	w.line("echo 'DTI Step 2.%d: Rigid Alignment, Iteration %d'", i, i)
	reg := fmt.Sprintf("%s/scripts/dti_rigid_reg mean_rigid%d.nii.gz ${scan}_spd.nii.gz %s %s %s %s 0.01",
		p.DTITKRoot, prev, p.RegType, sep, sep, sep)
	if i > 1 {
		reg += " 1"
	}
	w.line("%s", reg)
	w.line("echo 'DTI Step 2.%d: Rigid Alignment, Iteration %d -> COMPLETE!'", i, i)
}

func affineIterA(w *writer, s stage.Stage, p Params) {
	i, prev := s.Iteration, s.Iteration-1
	sep := FormatCoefficient(p.SepCoarse)
	w.subjectPrologue()
	w.line("echo 'DTI Step 3.%da: Affine Alignment, Iteration %d, Part A'", i, i)
	w.line("%s/scripts/dti_affine_reg mean_affine%d.nii.gz ${scan}_spd.nii.gz %s %s %s %s 0.01 1",
		p.DTITKRoot, prev, p.RegType, sep, sep, sep)
	w.line("echo 'DTI Step 3.%da: Affine Alignment, Iteration %d, Part A -> COMPLETE!'", i, i)
}

func affineIterB(w *writer, s stage.Stage) {
	i, prev := s.Iteration, s.Iteration-1
	w.subjectPrologue()
	w.line("echo 'DTI Step 3.%db: Affine Alignment, Iteration %d, Part B'", i, i)
	w.line("affine3Dtool -in ${scan}_spd.aff -compose average_inv.aff -out ${scan}_spd.aff")
	w.line("affineSymTensor3DVolume -in ${scan}_spd.nii.gz -trans ${scan}_spd.aff -target mean_affine%d.nii.gz -out ${scan}_spd_aff.nii.gz", prev)
	w.line("echo 'DTI Step 3.%db: Affine Alignment, Iteration %d, Part B -> COMPLETE!'", i, i)
}

func diffeoIter(w *writer, s stage.Stage, p Params) {
	i := s.Iteration
	w.subjectPrologue()
	w.line("echo 'DTI Step 4.%d: Diffeomorphic Alignment, Iteration %d'", i, i)
	w.line("%s/scripts/dti_diffeomorphic_reg mean_diffeomorphic_initial.nii.gz ${scan}_spd_aff.nii.gz mask.nii.gz 1 %d 0.002", p.DTITKRoot, i)
	w.line("echo 'DTI Step 4.%d: Diffeomorphic Alignment, Iteration %d -> COMPLETE!'", i, i)
}

func rigidInter(w *writer, s stage.Stage, p Params) {
	i, prev := s.Iteration, s.Iteration-1
	w.line(`echo "DTI Step 2.%d.1: Adjusting Rigid Average for all scans, Iteration %d"`, i, i)
	w.line("TVMean -in scan_list_file_aff.txt -out mean_rigid%d.nii.gz", i)
	w.line("TVtool -in mean_rigid%d.nii.gz -sm mean_rigid%d.nii.gz -SMOption  %s | grep Similarity | tee -a rigid_normalization.log", prev, i, p.RegType)
	w.line(`echo "DTI Step 2.%d.1: Adjusting Rigid Average for all scans, Iteration %d -> COMPLETE!"`, i, i)
	if s.Last {
		w.line("#Prepare for the affine alignment in the next step by copying over the file we just created.")
		w.line("cp mean_rigid%d.nii.gz mean_affine0.nii.gz", i)
	}
}

func affineInterA(w *writer, s stage.Stage) {
	i, prev := s.Iteration, s.Iteration-1
	w.line(`echo "DTI Step 3.%da.1: Adjusting Affine Average for all scans, Iteration %d"`, i, i)
	w.line("affine3DShapeAverage affine.txt mean_affine%d.nii.gz average_inv.aff 1", prev)
	w.line(`echo "DTI Step 3.%da.1: Adjusting Affine Average for all scans, Iteration %d -> COMPLETE!"`, i, i)
}

func affineInterB(w *writer, s stage.Stage, p Params) {
	i, prev := s.Iteration, s.Iteration-1
	w.line(`echo "DTI Step 3.%db.1: Adjusting Affine Average for all scans, Iteration %d"`, i, i)
	w.line("rm -fr average_inv.aff")
	w.line("TVMean -in scan_list_file_aff.txt -out mean_affine%d.nii.gz", i)
	w.line("TVtool -in mean_affine%d.nii.gz -sm mean_affine%d.nii.gz -SMOption  %s | grep Similarity | tee -a affine_normalization.log", prev, i, p.RegType)
	w.line(`echo "DTI Step 3.%db.1: Adjusting Affine Average for all scans, Iteration %d -> COMPLETE!"`, i, i)
	if s.Last {
		w.line("echo 'Preparing for Diffeomorphic Alignment'")
		w.line("TVtool -tr -in mean_affine%d.nii.gz", i)
		w.line("BinaryThresholdImageFilter mean_affine%d_tr.nii.gz mask.nii.gz 0 .01 100 1 0", i)
		w.line("#Prepare for the diffeomorphic alignment in the next step by copying over the file we just created.")
		w.line("cp mean_affine%d.nii.gz mean_diffeomorphic0.nii.gz", i)
		w.line("ln -sf mean_diffeomorphic0.nii.gz mean_diffeomorphic_initial.nii.gz")
	}
}

func diffeoInter(w *writer, s stage.Stage) {
	i := s.Iteration
	w.line("echo 'DTI Step 4.%d.1: Adjusting Diffeomorphic Average for all scans, Iteration %d'", i, i)
	w.line("TVMean -in scan_list_file_aff_diffeo.txt -out mean_diffeomorphic%d.nii.gz", i)
	w.line("VVMean -in diffeo.txt -out mean_df.nii.gz")
	w.line("dfToInverse -in mean_df.nii.gz")
	w.line("deformationSymTensor3DVolume -in mean_diffeomorphic%d.nii.gz -out mean_diffeomorphic%d.nii.gz -trans mean_df_inv.nii.gz", i, i)
	w.line("#Clear up the temporary files")
	w.line("rm -fr mean_diffeomorphic_initial.nii.gz")
	if !s.Last {
		w.line("#Make the new working file.")
		w.line("ln -sf mean_diffeomorphic%d.nii.gz mean_diffeomorphic_initial.nii.gz", i)
	}
	w.line("echo 'DTI Step 4.%d.1: Adjusting Diffeomorphic Average for all scans, Iteration %d -> COMPLETE!'", i, i)
	if s.Last {
		w.line("echo '#'")
		w.line("echo 'ALL DONE'")
	}
}

// FormatVoxel prints a voxel size with at least one decimal place, so a
// whole number renders as "2.0".
func FormatVoxel(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// FormatCoefficient prints a smoothing coefficient in its shortest form.
func FormatCoefficient(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
