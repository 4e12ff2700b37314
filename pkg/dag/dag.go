// Package dag builds the HTCondor DAGMan description of a normalization run.
//
// The graph alternates between group stages and per-subject stages: group
// stage k gates every subject's individual stage k, and group stage k+1 waits
// for all of them. Stage indices only increase along an edge, so the graph is
// acyclic by construction.
package dag

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoSubjects is returned when there are no subjects to fan out to.
	ErrNoSubjects = errors.New("dag: at least one subject is required")
	// ErrStageMismatch is returned when the group list is not exactly one
	// longer than the individual list.
	ErrStageMismatch = errors.New("dag: group stages must outnumber individual stages by one")
)

// jobToken matches identifiers DAGMan reads as a single job name that can
// also appear in a submit file path.
var jobToken = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileName is the DAGMan file written into the submit directory.
const FileName = "DAG_DTITK.dag"

// Node is one JOB declaration.
type Node struct {
	ID         string
	SubmitFile string
}

// Edge is one PARENT ... CHILD ... declaration.
type Edge struct {
	Parents  []string
	Children []string
}

// String renders the edge the way DAGMan reads it.
func (e Edge) String() string {
	return "PARENT " + strings.Join(e.Parents, " ") + " CHILD " + strings.Join(e.Children, " ")
}

// Graph is the full job graph.
type Graph struct {
	Group      []Node
	Individual []Node
	Edges      []Edge
}

// SubmitPathFunc maps a job ID to the path of its submit descriptor.
type SubmitPathFunc func(jobID string) string

// TaskID names the job that runs stage for subject.
func TaskID(subject, stage string) string {
	return subject + "_" + stage
}

// Build wires group stages, individual stages and subjects into a Graph.
// Individual jobs are declared stage-major so all subjects of one step sit
// together, matching the dependency lines that reference them.
func Build(group, individual, subjects []string, submitPath SubmitPathFunc) (*Graph, error) {
	if len(subjects) == 0 {
		return nil, ErrNoSubjects
	}
	if len(group) != len(individual)+1 {
		return nil, fmt.Errorf("%w: got %d group and %d individual", ErrStageMismatch, len(group), len(individual))
	}
	seen := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		if s == "" {
			return nil, errors.New("dag: empty subject identifier")
		}
		if !jobToken.MatchString(s) {
			return nil, fmt.Errorf("dag: subject identifier %q cannot name a job", s)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("dag: duplicate subject identifier %s", s)
		}
		seen[s] = struct{}{}
	}

	g := &Graph{
		Group:      make([]Node, 0, len(group)),
		Individual: make([]Node, 0, len(individual)*len(subjects)),
		Edges:      make([]Edge, 0, 2*len(individual)),
	}
	for _, name := range group {
		g.Group = append(g.Group, Node{ID: name, SubmitFile: submitPath(name)})
	}
	for _, stage := range individual {
		for _, subject := range subjects {
			id := TaskID(subject, stage)
			g.Individual = append(g.Individual, Node{ID: id, SubmitFile: submitPath(id)})
		}
	}

	for k, stage := range individual {
		tasks := make([]string, len(subjects))
		for i, subject := range subjects {
			tasks[i] = TaskID(subject, stage)
		}
		g.Edges = append(g.Edges,
			Edge{Parents: []string{group[k]}, Children: tasks},
			Edge{Parents: tasks, Children: []string{group[k+1]}},
		)
	}
	return g, nil
}

// Render returns the DAGMan file contents.
func (g *Graph) Render() []byte {
	var b strings.Builder
	b.WriteString("#File name: " + FileName + "\n")
	b.WriteString("#\n")
	b.WriteString("#Group Components\n")
	for _, n := range g.Group {
		fmt.Fprintf(&b, "JOB %s %s\n", n.ID, n.SubmitFile)
	}
	b.WriteString("#Individual Components\n")
	for _, n := range g.Individual {
		fmt.Fprintf(&b, "JOB %s %s\n", n.ID, n.SubmitFile)
	}
	b.WriteString("#Dependencies\n")
	for _, e := range g.Edges {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Jobs returns every declared job ID.
func (g *Graph) Jobs() []string {
	ids := make([]string, 0, len(g.Group)+len(g.Individual))
	for _, n := range g.Group {
		ids = append(ids, n.ID)
	}
	for _, n := range g.Individual {
		ids = append(ids, n.ID)
	}
	return ids
}
