// Package system inspects the submit host: platform details and whether the
// DTI-TK, FSL and HTCondor programs the generated workflow relies on can be
// found.
package system

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// DTITKBins are the DTI-TK programs invoked directly by generated scripts.
var DTITKBins = []string{
	"TVMean", "TVResample", "TVtool", "VVMean",
	"affine3Dtool", "affine3DShapeAverage", "affineSymTensor3DVolume",
	"BinaryThresholdImageFilter", "dfToInverse", "deformationSymTensor3DVolume",
}

// DTITKScripts live under $DTITK_ROOT/scripts.
var DTITKScripts = []string{"dtitk_common.sh", "dti_rigid_reg", "dti_affine_reg", "dti_diffeomorphic_reg"}

// HostBins are optional programs used around the workflow.
var HostBins = []string{"condor_submit_dag", "fslval"}

type Profile struct {
	OS            string
	Distro        string
	Version       string
	Kernel        string
	Arch          string
	AvailableBins []string
}

// Detect describes the current host. dirs are searched for programs in
// addition to PATH.
func Detect(dirs ...string) (*Profile, error) {
	profile := &Profile{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	switch runtime.GOOS {
	case "linux":
		profile.Distro, profile.Version = parseOSRelease("/etc/os-release")
		profile.Kernel, _ = uname("-r")
	case "darwin":
		profile.Distro = "macos"
		profile.Kernel, _ = uname("-r")
	}

	profile.AvailableBins = scanBins(append(filepath.SplitList(os.Getenv("PATH")), dirs...))
	return profile, nil
}

// MissingBins returns the entries of bins not found on the host.
func (p *Profile) MissingBins(bins []string) []string {
	if len(bins) == 0 {
		return nil
	}
	available := make(map[string]bool, len(p.AvailableBins))
	for _, bin := range p.AvailableBins {
		available[bin] = true
	}
	missing := []string{}
	for _, bin := range bins {
		if !available[bin] {
			missing = append(missing, bin)
		}
	}
	return missing
}

// MissingScripts returns the DTI-TK helper scripts absent from root.
func MissingScripts(root string) []string {
	missing := []string{}
	for _, name := range DTITKScripts {
		if _, err := os.Stat(filepath.Join(root, "scripts", name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

func parseOSRelease(path string) (string, string) {
	file, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer file.Close()

	var distro, version string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "ID="); ok {
			distro = strings.Trim(v, "\"'")
		}
		if v, ok := strings.CutPrefix(line, "VERSION_ID="); ok {
			version = strings.Trim(v, "\"'")
		}
	}
	return distro, version
}

func uname(arg string) (string, error) {
	out, err := exec.Command("uname", arg).Output()
	if err != nil {
		return "", fmt.Errorf("uname %s: %w", arg, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func scanBins(dirs []string) []string {
	bins := make(map[string]bool)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			bins[entry.Name()] = true
		}
	}

	out := make([]string, 0, len(bins))
	for name := range bins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
