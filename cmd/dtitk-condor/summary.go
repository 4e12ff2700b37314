package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sameehj/dtitk-condor/pkg/config"
	"github.com/sameehj/dtitk-condor/pkg/generate"
	"github.com/sameehj/dtitk-condor/pkg/script"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Width(14)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func renderSummary(cfg *config.Config, res *generate.Result) string {
	title := "DTI-TK DAG ready"
	if res.DryRun {
		title = "DTI-TK DAG (dry run, nothing written)"
	}
	rows := [][2]string{
		{"run", res.RunID},
		{"subjects", fmt.Sprint(res.Subjects)},
		{"stages", fmt.Sprintf("%d group, %d individual", res.GroupStages, res.IndividualStages)},
		{"iterations", fmt.Sprintf("rigid %d, affine %d, diffeo %d", cfg.Rigid, cfg.Affine, cfg.Diffeo)},
		{"species", fmt.Sprintf("%s (sep %s)", cfg.Species, script.FormatCoefficient(cfg.SepCoarse))},
		{"voxel", fmt.Sprintf("%s %s %s", script.FormatVoxel(res.Voxel.X), script.FormatVoxel(res.Voxel.Y), script.FormatVoxel(res.Voxel.Z))},
		{"scripts", fmt.Sprint(res.Scripts)},
		{"submit files", fmt.Sprint(res.Submits)},
		{"jobs", fmt.Sprintf("%d (%d dependencies)", res.Jobs, res.Edges)},
		{"dag", res.DAGPath},
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, titleStyle.Render(title))
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+r[1])
	}
	if !res.DryRun {
		lines = append(lines, "", "submit with: condor_submit_dag "+res.DAGPath)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
