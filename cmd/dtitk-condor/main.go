package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sameehj/dtitk-condor/pkg/config"
	"github.com/sameehj/dtitk-condor/pkg/env"
	"github.com/sameehj/dtitk-condor/pkg/exec"
	"github.com/sameehj/dtitk-condor/pkg/generate"
	"github.com/sameehj/dtitk-condor/pkg/logging"
	"github.com/sameehj/dtitk-condor/pkg/stage"
	"github.com/sameehj/dtitk-condor/pkg/subject"
	"github.com/sameehj/dtitk-condor/pkg/system"
	"github.com/sameehj/dtitk-condor/pkg/version"
	"github.com/spf13/cobra"
)

const (
	probeTimeout   = 30 * time.Second
	probeMaxOutput = 64 * 1024
)

const generateLong = `Reads the subject CSV (ID and PATH columns) and writes one bash script per
stage, one condor submit file per job, the scan lists and DAG_DTITK.dag.
Arguments may instead come from the config file or DTITK_* variables.`

var cfgFile string

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           version.Name,
		Short:         "Generate HTCondor DAGMan workflows for DTI-TK population template building",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")

	root.AddCommand(generateCmd())
	root.AddCommand(planCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())
	return root
}

func generateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate SUBJECT_FILE DTITK_ROOT SCRIPTS_DIR NORM_DIR",
		Short: "Write the stage scripts, submit files and DAG",
		Long:  generateLong,
		Args:  cobra.MaximumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.LoadFromDir("."); err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile, cmd.Flags(), args)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			executor := &exec.SafeExecutor{Timeout: probeTimeout, MaxOutput: probeMaxOutput}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := generate.New(cfg, executor, logger, generate.Options{DryRun: dryRun}).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(cfg, res))
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render everything but write nothing")
	return cmd
}

func planCmd() *cobra.Command {
	var counts stage.Counts

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the group and individual stage names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := stage.NewPlan(counts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "group (%d):\n", len(plan.Group))
			for _, name := range plan.GroupNames() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintf(out, "individual (%d):\n", len(plan.Individual))
			for _, name := range plan.IndividualNames() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&counts.Rigid, "rigid", 3, "number of rigid iterations")
	cmd.Flags().IntVar(&counts.Affine, "affine", 3, "number of affine iterations")
	cmd.Flags().IntVar(&counts.Diffeo, "diffeo", 6, "number of diffeomorphic iterations")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate SUBJECT_FILE",
		Short: "Check a subject CSV without generating anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subjects, err := subject.ReadFile(args[0])
			if err != nil {
				return err
			}
			missing := 0
			for _, s := range subjects {
				if _, err := os.Stat(s.Path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s not found\n", s.ID, s.Path)
					missing++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d subjects: %s\n", len(subjects), strings.Join(subject.IDs(subjects), " "))
			if missing > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d input files missing\n", missing)
			}
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [DTITK_ROOT]",
		Short: "Check the host for the programs the workflow runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := os.Getenv("DTITK_ROOT")
			if len(args) == 1 {
				root = args[0]
			}
			var extra []string
			if root != "" {
				extra = append(extra, filepath.Join(root, "bin"))
			}
			profile, err := system.Detect(extra...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "OS: %s\nDistro: %s %s\nKernel: %s\nArch: %s\n",
				profile.OS, profile.Distro, profile.Version, profile.Kernel, profile.Arch)
			fmt.Fprintf(out, "DTITK_ROOT: %s\n", root)
			report(out, "DTI-TK programs", profile.MissingBins(system.DTITKBins))
			if root != "" {
				report(out, "DTI-TK scripts", system.MissingScripts(root))
			}
			report(out, "host programs", profile.MissingBins(system.HostBins))
			return nil
		},
	}
}

func report(out io.Writer, what string, missing []string) {
	if len(missing) == 0 {
		fmt.Fprintf(out, "%s: ok\n", what)
		return
	}
	fmt.Fprintf(out, "%s: missing %s\n", what, strings.Join(missing, ", "))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
