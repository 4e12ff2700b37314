// Package manifest records what a generation run produced.
package manifest

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest is written next to the generated scripts.
type Manifest struct {
	RunID       string    `yaml:"run_id"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Tool        string    `yaml:"tool"`
	Inputs      Inputs    `yaml:"inputs"`
	Subjects    []string  `yaml:"subjects"`
	Stages      Stages    `yaml:"stages"`
	DAG         string    `yaml:"dag"`
	Artifacts   Artifacts `yaml:"artifacts"`
}

type Inputs struct {
	SubjectFile   string    `yaml:"subject_file"`
	DTITKRoot     string    `yaml:"dtitk_root"`
	ScriptsDir    string    `yaml:"scripts_dir"`
	NormDir       string    `yaml:"norm_dir"`
	RegType       string    `yaml:"reg_type"`
	Species       string    `yaml:"species"`
	SepCoarse     float64   `yaml:"sep_coarse"`
	SepFine       float64   `yaml:"sep_fine"`
	Rigid         int       `yaml:"rigid"`
	Affine        int       `yaml:"affine"`
	Diffeo        int       `yaml:"diffeo"`
	RequestMemory int       `yaml:"request_memory"`
	VoxelSize     []float64 `yaml:"voxel_size,flow"`
}

type Stages struct {
	Group      []string `yaml:"group"`
	Individual []string `yaml:"individual"`
}

type Artifacts struct {
	Scripts   int `yaml:"scripts"`
	Submits   int `yaml:"submits"`
	ScanLists int `yaml:"scan_lists"`
	Jobs      int `yaml:"jobs"`
	Edges     int `yaml:"edges"`
}

// New stamps a manifest with a fresh run ID and the current UTC time.
func New(tool string) *Manifest {
	return &Manifest{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Tool:        tool,
	}
}

// Marshal encodes m as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Load reads a manifest previously written by a run.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
