// Package stage lays out the ordered group and per-subject steps of a
// DTI-TK normalization across the bootstrapping, rigid, affine and
// diffeomorphic phases.
package stage

import "fmt"

// Phase is one registration phase.
type Phase string

const (
	PhaseBootstrap Phase = "bootstrap"
	PhaseRigid     Phase = "rigid"
	PhaseAffine    Phase = "affine"
	PhaseDiffeo    Phase = "diffeo"
)

// Scope says whether a stage runs once for the group or once per subject.
type Scope string

const (
	ScopeGroup      Scope = "group"
	ScopeIndividual Scope = "individual"
)

// Stage is a named unit of work. Part is "a" or "b" for the two halves of an
// affine iteration and empty otherwise.
type Stage struct {
	Name      string
	Phase     Phase
	Scope     Scope
	Iteration int
	Part      string
	// Last marks the final iteration of its phase.
	Last bool
}

// Counts holds the number of iterations for each phase.
type Counts struct {
	Rigid  int `yaml:"rigid"`
	Affine int `yaml:"affine"`
	Diffeo int `yaml:"diffeo"`
}

// Validate rejects negative iteration counts.
func (c Counts) Validate() error {
	if c.Rigid < 0 || c.Affine < 0 || c.Diffeo < 0 {
		return fmt.Errorf("iteration counts must be >= 0 (rigid=%d affine=%d diffeo=%d)", c.Rigid, c.Affine, c.Diffeo)
	}
	return nil
}

// Plan is the ordered stage layout. Group always has one more entry than
// Individual: Group[k] feeds Individual[k], which feeds Group[k+1].
type Plan struct {
	Group      []Stage
	Individual []Stage
}

// NewPlan builds the stage layout for c.
func NewPlan(c Counts) (*Plan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &Plan{
		Group: []Stage{{Name: "dti_step1_bootstrapping", Phase: PhaseBootstrap, Scope: ScopeGroup, Last: true}},
	}
	for i := 1; i <= c.Rigid; i++ {
		last := i == c.Rigid
		p.Individual = append(p.Individual, Stage{
			Name: fmt.Sprintf("dti_step2_rigid_iter%d", i), Phase: PhaseRigid, Scope: ScopeIndividual, Iteration: i, Last: last,
		})
		p.Group = append(p.Group, Stage{
			Name: fmt.Sprintf("dti_step2_rigid_inter%d", i), Phase: PhaseRigid, Scope: ScopeGroup, Iteration: i, Last: last,
		})
	}
	for i := 1; i <= c.Affine; i++ {
		last := i == c.Affine
		for _, part := range []string{"a", "b"} {
			p.Individual = append(p.Individual, Stage{
				Name: fmt.Sprintf("dti_step3_affine_iter%d%s", i, part), Phase: PhaseAffine, Scope: ScopeIndividual, Iteration: i, Part: part, Last: last,
			})
			p.Group = append(p.Group, Stage{
				Name: fmt.Sprintf("dti_step3_affine_inter%d%s", i, part), Phase: PhaseAffine, Scope: ScopeGroup, Iteration: i, Part: part, Last: last,
			})
		}
	}
	for i := 1; i <= c.Diffeo; i++ {
		last := i == c.Diffeo
		p.Individual = append(p.Individual, Stage{
			Name: fmt.Sprintf("dti_step4_diffeo_iter%d", i), Phase: PhaseDiffeo, Scope: ScopeIndividual, Iteration: i, Last: last,
		})
		p.Group = append(p.Group, Stage{
			Name: fmt.Sprintf("dti_step4_diffeo_inter%d", i), Phase: PhaseDiffeo, Scope: ScopeGroup, Iteration: i, Last: last,
		})
	}
	return p, nil
}

// GroupNames returns the group stage names in pipeline order.
func (p *Plan) GroupNames() []string {
	return names(p.Group)
}

// IndividualNames returns the per-subject stage names in pipeline order.
func (p *Plan) IndividualNames() []string {
	return names(p.Individual)
}

// All returns every stage, group stages first.
func (p *Plan) All() []Stage {
	all := make([]Stage, 0, len(p.Group)+len(p.Individual))
	all = append(all, p.Group...)
	return append(all, p.Individual...)
}

func names(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name
	}
	return out
}
