package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/types"
)

func newScenariosCommand(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "scenarios --file risks.csv",
		Short: "Generate risk scenarios from a CSV of risks",
		Example: `  riskscope scenarios --file risks.csv
  riskscope scenarios -f risks.csv --export pdf --out reports/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.file == "" {
				return fmt.Errorf("--file is required")
			}
			file, err := readFile(opts.file)
			if err != nil {
				return err
			}
			return opts.run(cmd, root, &types.Job{Kind: types.JobKindScenarioIdentification, File: file})
		},
	}
	opts.bind(cmd)
	return cmd
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}
	var paramsPath string
	var trials int
	cmd := &cobra.Command{
		Use:   "simulate (--file scenarios.csv | --params params.yaml)",
		Short: "Run a Monte Carlo simulation",
		Long: `Run a Monte Carlo simulation either from a CSV of scenarios or from a
parameters file listing variables, their distributions and a formula:

  formula: downtime_hours * hourly_cost
  num_trials: 10000
  variables:
    - name: downtime_hours
      distribution: triangular
      parameters: {min: 1, mode: 4, max: 48}
    - name: hourly_cost
      distribution: normal
      parameters: {mean: 5000, stddev: 800}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job := &types.Job{Kind: types.JobKindSimulation}
			switch {
			case opts.file != "" && paramsPath != "":
				return fmt.Errorf("--file and --params are mutually exclusive")
			case opts.file != "":
				file, err := readFile(opts.file)
				if err != nil {
					return err
				}
				job.File = file
			case paramsPath != "":
				params, err := readParams(paramsPath)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("trials") {
					params.NumTrials = trials
				}
				job.Parameters = params
			default:
				return fmt.Errorf("one of --file or --params is required")
			}
			return opts.run(cmd, root, job)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&paramsPath, "params", "p", "", "YAML or JSON parameters file")
	cmd.Flags().IntVar(&trials, "trials", types.DefaultNumTrials, "number of trials, overrides the parameters file")
	return cmd
}

func readParams(path string) (*types.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p types.Parameters
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &p, nil
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show the state of an asynchronous task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			st, err := svc.Status(cmd.Context(), types.TaskHandle(args[0]))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), rerrors.Notice(err))
				return quiet(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], st.State)
			if st.State == types.TaskStateSuccess && len(st.Result) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), string(st.Result))
			}
			return nil
		},
	}
}
