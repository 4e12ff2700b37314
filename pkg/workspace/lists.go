package workspace

import (
	"strings"

	"github.com/sameehj/dtitk-condor/pkg/subject"
)

// ListFile is one of the subject list files DTI-TK reads from the
// normalization directory.
type ListFile struct {
	Name    string
	Content []byte
}

// scanLists pairs each list file with the per-subject entry it holds.
var scanLists = []struct {
	name   string
	suffix string
}{
	{ScanList, "_spd.nii.gz"},
	{ScanListAff, "_spd_aff.nii.gz"},
	{ScanListAffDiffeo, "_spd_aff_diffeo.nii.gz"},
	{AffineList, "_spd.aff"},
	{DiffeoList, "_spd_aff_diffeo.df.nii.gz"},
}

// ScanLists renders the list files, one line per subject in table order.
func ScanLists(subjects []subject.Subject) []ListFile {
	files := make([]ListFile, 0, len(scanLists))
	for _, list := range scanLists {
		var b strings.Builder
		for _, s := range subjects {
			b.WriteString(s.ID + list.suffix + "\n")
		}
		files = append(files, ListFile{Name: list.name, Content: []byte(b.String())})
	}
	return files
}
