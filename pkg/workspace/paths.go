package workspace

import "path/filepath"

const (
	SubmitDir = "condorsubmit"
	LogsDir   = "condorlogs"

	ScanList          = "scan_list_file.txt"
	ScanListAff       = "scan_list_file_aff.txt"
	ScanListAffDiffeo = "scan_list_file_aff_diffeo.txt"
	AffineList        = "affine.txt"
	DiffeoList        = "diffeo.txt"
	ManifestFile      = "dtitk_manifest.yaml"
	archivedDirSuffix = "_archived"
	scriptExt         = ".sh"
	submitExt         = ".condor"
)

// Layout resolves artifact paths under the scripts and normalization
// directories.
type Layout struct {
	ScriptsDir string
	NormDir    string
}

// Script is the shell script for a stage.
func (l Layout) Script(stage string) string {
	return filepath.Join(l.ScriptsDir, stage+scriptExt)
}

// Submit is the submit descriptor for a DAG job ID.
func (l Layout) Submit(jobID string) string {
	return filepath.Join(l.ScriptsDir, SubmitDir, "cs_"+jobID+submitExt)
}

// Log is the scheduler log file for a job ID; kind is log, out or err.
func (l Layout) Log(jobID, kind string) string {
	return filepath.Join(l.ScriptsDir, LogsDir, jobID+"_"+kind+".txt")
}

// DAG is the DAGMan file path.
func (l Layout) DAG(name string) string {
	return filepath.Join(l.ScriptsDir, SubmitDir, name)
}

// Manifest is the generation manifest path.
func (l Layout) Manifest() string {
	return filepath.Join(l.ScriptsDir, ManifestFile)
}

// Norm resolves name inside the normalization directory.
func (l Layout) Norm(name string) string {
	return filepath.Join(l.NormDir, name)
}

// LinkedInput is the name under which a subject's input is linked into the
// normalization directory.
func LinkedInput(id string) string {
	return id + "_spd.nii.gz"
}
