package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewStampsRun(t *testing.T) {
	a := New("dtitk-condor dev")
	b := New("dtitk-condor dev")
	_, err := uuid.Parse(a.RunID)
	require.NoError(t, err)
	require.NotEqual(t, a.RunID, b.RunID)
	require.False(t, a.GeneratedAt.IsZero())
	require.Equal(t, "UTC", a.GeneratedAt.Location().String())
}

func TestMarshalAndLoad(t *testing.T) {
	m := New("dtitk-condor dev")
	m.Inputs = Inputs{Species: "HUMAN", Rigid: 1, VoxelSize: []float64{2, 2, 1}}
	m.Subjects = []string{"S01", "S02"}
	m.Stages = Stages{
		Group:      []string{"dti_step1_bootstrapping", "dti_step2_rigid_inter1"},
		Individual: []string{"dti_step2_rigid_iter1"},
	}
	m.Artifacts = Artifacts{Scripts: 3, Submits: 4, Jobs: 4, Edges: 2}

	data, err := m.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(data), "run_id: "+m.RunID)
	require.Contains(t, string(data), "voxel_size: [2, 2, 1]")

	path := filepath.Join(t.TempDir(), "dtitk_manifest.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m.RunID, got.RunID)
	require.True(t, m.GeneratedAt.Equal(got.GeneratedAt))
	require.Equal(t, m.Stages, got.Stages)
	require.Equal(t, m.Artifacts, got.Artifacts)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read manifest")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run_id: [unterminated"), 0o644))
	_, err = Load(path)
	require.ErrorContains(t, err, "parse manifest")
}
