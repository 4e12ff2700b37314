// Package generate drives one generation run: it reads the subject table,
// lays out the stages, renders every script, submit descriptor and the DAG
// in memory, and only then touches the scripts and normalization
// directories.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sameehj/dtitk-condor/pkg/artifact"
	"github.com/sameehj/dtitk-condor/pkg/condor"
	"github.com/sameehj/dtitk-condor/pkg/config"
	"github.com/sameehj/dtitk-condor/pkg/dag"
	"github.com/sameehj/dtitk-condor/pkg/dims"
	"github.com/sameehj/dtitk-condor/pkg/manifest"
	"github.com/sameehj/dtitk-condor/pkg/script"
	"github.com/sameehj/dtitk-condor/pkg/stage"
	"github.com/sameehj/dtitk-condor/pkg/subject"
	"github.com/sameehj/dtitk-condor/pkg/version"
	"github.com/sameehj/dtitk-condor/pkg/workspace"
)

// Options tweak a run.
type Options struct {
	// DryRun renders everything but writes nothing.
	DryRun bool
}

// Result summarizes a run.
type Result struct {
	RunID            string
	Subjects         int
	GroupStages      int
	IndividualStages int
	Scripts          int
	Submits          int
	ScanLists        int
	Jobs             int
	Edges            int
	Voxel            script.Voxel
	DAGPath          string
	ManifestPath     string
	DryRun           bool
}

// Generator produces the artifacts for one configuration.
type Generator struct {
	cfg    *config.Config
	layout workspace.Layout
	dims   *dims.Resolver
	logger *slog.Logger
	opts   Options
}

// New returns a Generator. runner is used to probe voxel sizes when they are
// not configured.
func New(cfg *config.Config, runner dims.Runner, logger *slog.Logger, opts Options) *Generator {
	return &Generator{
		cfg:    cfg,
		layout: workspace.Layout{ScriptsDir: cfg.ScriptsDir, NormDir: cfg.NormDir},
		dims:   dims.NewResolver(runner, logger),
		logger: logger,
		opts:   opts,
	}
}

// Run performs the generation. Nothing on disk changes until every artifact
// has been rendered successfully.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	g.section("Argument Parsing")
	g.logInputs()

	g.section("Subject File Parsing")
	g.logger.Info("parsing subject file", "path", g.cfg.SubjectFile)
	subjects, err := subject.ReadFile(g.cfg.SubjectFile)
	if err != nil {
		return nil, err
	}
	g.logger.Info("subjects loaded", "count", len(subjects))

	g.section("Script List Creation")
	plan, err := stage.NewPlan(g.cfg.Counts())
	if err != nil {
		return nil, err
	}
	g.logger.Info("stages planned", "group", len(plan.Group), "individual", len(plan.Individual))

	g.section("Voxel Size")
	voxel, err := g.dims.Resolve(ctx, g.cfg.ConfiguredVoxel(), subjects)
	if err != nil {
		return nil, err
	}

	set := artifact.NewSet()

	g.section("Scan List Creation")
	if err := g.addScanLists(set, subjects); err != nil {
		return nil, err
	}

	g.section("Condor Submit File Creation")
	if err := g.addSubmits(set, plan, subjects); err != nil {
		return nil, err
	}

	g.section("DAG File Creation")
	graph, err := dag.Build(plan.GroupNames(), plan.IndividualNames(), subject.IDs(subjects), g.layout.Submit)
	if err != nil {
		return nil, err
	}
	dagPath := g.layout.DAG(dag.FileName)
	if err := set.Add(artifact.File{Path: dagPath, Kind: artifact.KindDAG, Content: graph.Render()}); err != nil {
		return nil, err
	}
	g.logger.Info("DAG built", "jobs", len(graph.Jobs()), "edges", len(graph.Edges))

	g.section("Script Creation")
	if err := g.addScripts(set, plan, voxel); err != nil {
		return nil, err
	}

	res := &Result{
		Subjects:         len(subjects),
		GroupStages:      len(plan.Group),
		IndividualStages: len(plan.Individual),
		Scripts:          set.Count(artifact.KindScript),
		Submits:          set.Count(artifact.KindSubmit),
		ScanLists:        set.Count(artifact.KindList),
		Jobs:             len(graph.Jobs()),
		Edges:            len(graph.Edges),
		Voxel:            voxel,
		DAGPath:          dagPath,
		ManifestPath:     g.layout.Manifest(),
		DryRun:           g.opts.DryRun,
	}

	m := g.manifest(res, subjects, plan)
	res.RunID = m.RunID
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	if err := set.Add(artifact.File{Path: res.ManifestPath, Kind: artifact.KindManifest, Content: data}); err != nil {
		return nil, err
	}

	if g.opts.DryRun {
		for _, f := range set.Files() {
			g.logger.Debug("would write", "path", f.Path, "kind", f.Kind, "bytes", len(f.Content))
		}
		g.logger.Info("dry run complete, nothing written", "artifacts", set.Len())
		return res, nil
	}

	g.section("Directory Creation and Cleanup")
	if err := workspace.Prepare(g.layout, g.logger); err != nil {
		return nil, err
	}

	g.section("Scan Link Creation")
	if err := workspace.LinkSubjects(g.layout, subjects, g.logger); err != nil {
		return nil, err
	}

	g.section("Writing Artifacts")
	if err := set.Flush(); err != nil {
		return nil, err
	}
	for _, k := range set.Kinds() {
		g.logger.Info("artifacts written", "kind", k, "count", set.Count(k))
	}
	g.logger.Info("DTITK DAG setup complete", "dag", dagPath, "run_id", res.RunID)
	return res, nil
}

func (g *Generator) section(name string) {
	g.logger.Info("## " + name + " ##")
}

func (g *Generator) logInputs() {
	c := g.cfg
	g.logger.Info("inputs",
		"subject_file", c.SubjectFile,
		"dtitk_root", c.DTITKRoot,
		"scripts_dir", c.ScriptsDir,
		"norm_dir", c.NormDir,
		"reg_type", c.RegType,
		"species", c.Species,
		"sep_coarse", c.SepCoarse,
		"sep_fine", c.SepFine,
		"rigid", c.Rigid,
		"affine", c.Affine,
		"diffeo", c.Diffeo,
		"request_memory", c.RequestMemory,
	)
	for _, w := range c.Warnings {
		g.logger.Warn(w)
	}
}

func (g *Generator) addScanLists(set *artifact.Set, subjects []subject.Subject) error {
	for _, list := range workspace.ScanLists(subjects) {
		f := artifact.File{Path: g.layout.Norm(list.Name), Kind: artifact.KindList, Content: list.Content}
		if err := set.Add(f); err != nil {
			return err
		}
		g.logger.Debug("scan list rendered", "file", list.Name, "subjects", len(subjects))
	}
	return nil
}

func (g *Generator) addSubmits(set *artifact.Set, plan *stage.Plan, subjects []subject.Subject) error {
	for _, s := range subjects {
		for _, st := range plan.Individual {
			job := dag.TaskID(s.ID, st.Name)
			sub := g.submit(st.Name, job)
			sub.Arguments = s.ID
			if err := set.Add(artifact.File{Path: g.layout.Submit(job), Kind: artifact.KindSubmit, Content: sub.Render()}); err != nil {
				return err
			}
		}
		g.logger.Debug("individual submit files rendered", "subject", s.ID, "count", len(plan.Individual))
	}
	for _, st := range plan.Group {
		sub := g.submit(st.Name, st.Name)
		if err := set.Add(artifact.File{Path: g.layout.Submit(st.Name), Kind: artifact.KindSubmit, Content: sub.Render()}); err != nil {
			return err
		}
	}
	g.logger.Info("submit files rendered", "count", set.Count(artifact.KindSubmit))
	return nil
}

func (g *Generator) submit(stageName, job string) condor.Submit {
	return condor.Submit{
		InitialDir:    g.cfg.NormDir,
		RequestMemory: g.cfg.RequestMemory,
		Executable:    g.layout.Script(stageName),
		Log:           g.layout.Log(job, "log"),
		Output:        g.layout.Log(job, "out"),
		Error:         g.layout.Log(job, "err"),
	}
}

func (g *Generator) addScripts(set *artifact.Set, plan *stage.Plan, voxel script.Voxel) error {
	params := g.cfg.ScriptParams(voxel)
	for _, st := range plan.All() {
		body, err := script.Render(st, params)
		if err != nil {
			return err
		}
		f := artifact.File{Path: g.layout.Script(st.Name), Kind: artifact.KindScript, Mode: artifact.ModeExecutable, Content: body}
		if err := set.Add(f); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
	}
	g.logger.Info("scripts rendered", "count", set.Count(artifact.KindScript))
	return nil
}

func (g *Generator) manifest(res *Result, subjects []subject.Subject, plan *stage.Plan) *manifest.Manifest {
	c := g.cfg
	m := manifest.New(version.String())
	m.Inputs = manifest.Inputs{
		SubjectFile:   c.SubjectFile,
		DTITKRoot:     c.DTITKRoot,
		ScriptsDir:    c.ScriptsDir,
		NormDir:       c.NormDir,
		RegType:       c.RegType,
		Species:       c.Species,
		SepCoarse:     c.SepCoarse,
		SepFine:       c.SepFine,
		Rigid:         c.Rigid,
		Affine:        c.Affine,
		Diffeo:        c.Diffeo,
		RequestMemory: c.RequestMemory,
		VoxelSize:     []float64{res.Voxel.X, res.Voxel.Y, res.Voxel.Z},
	}
	m.Subjects = subject.IDs(subjects)
	m.Stages = manifest.Stages{Group: plan.GroupNames(), Individual: plan.IndividualNames()}
	m.DAG = res.DAGPath
	m.Artifacts = manifest.Artifacts{
		Scripts:   res.Scripts,
		Submits:   res.Submits,
		ScanLists: res.ScanLists,
		Jobs:      res.Jobs,
		Edges:     res.Edges,
	}
	return m
}
