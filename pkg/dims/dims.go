// Package dims resolves the voxel size used to resample the bootstrap
// template, either from configuration or by probing an input with FSL.
package dims

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sameehj/dtitk-condor/pkg/exec"
	"github.com/sameehj/dtitk-condor/pkg/script"
	"github.com/sameehj/dtitk-condor/pkg/subject"
)

// FSLVal is the FSL header query tool.
const FSLVal = "fslval"

// templateExtent is the grid size the bootstrap template is resampled to
// along each axis.
const templateExtent = 128

// Runner is the subset of exec.SafeExecutor the resolver needs.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) (*exec.Result, error)
}

// Resolver picks the bootstrap voxel size.
type Resolver struct {
	runner Runner
	logger *slog.Logger
}

func NewResolver(runner Runner, logger *slog.Logger) *Resolver {
	return &Resolver{runner: runner, logger: logger}
}

// Resolve returns configured when every axis is set. Otherwise it probes the
// first subject's input with fslval: size = ceil(dim * pixdim / 128).
func (r *Resolver) Resolve(ctx context.Context, configured script.Voxel, subjects []subject.Subject) (script.Voxel, error) {
	if configured.X > 0 && configured.Y > 0 && configured.Z > 0 {
		r.logger.Info("using configured voxel size", "x", configured.X, "y", configured.Y, "z", configured.Z)
		return configured, nil
	}
	if len(subjects) == 0 {
		return script.Voxel{}, subject.ErrNoSubjects
	}
	if _, err := r.runner.LookPath(FSLVal); err != nil {
		return script.Voxel{}, fmt.Errorf("%s not found on PATH; pass --xsize, --ysize and --zsize to set the voxel size", FSLVal)
	}

	probe := subjects[0]
	r.logger.Info("probing voxel size with FSL", "subject", probe.ID, "path", probe.Path)

	var size [3]float64
	for axis := 1; axis <= 3; axis++ {
		dim, err := r.query(ctx, probe.Path, fmt.Sprintf("dim%d", axis))
		if err != nil {
			return script.Voxel{}, err
		}
		pixdim, err := r.query(ctx, probe.Path, fmt.Sprintf("pixdim%d", axis))
		if err != nil {
			return script.Voxel{}, err
		}
		size[axis-1] = math.Ceil(dim * pixdim / templateExtent)
	}
	v := script.Voxel{X: size[0], Y: size[1], Z: size[2]}
	r.logger.Info("voxel size resolved", "x", v.X, "y", v.Y, "z", v.Z)
	return v, nil
}

func (r *Resolver) query(ctx context.Context, path, field string) (float64, error) {
	res, err := r.runner.Run(ctx, FSLVal, path, field)
	if err != nil {
		return 0, fmt.Errorf("%s %s %s: %w", FSLVal, path, field, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("%s %s %s: unexpected output %q", FSLVal, path, field, res.Stdout)
	}
	return v, nil
}
