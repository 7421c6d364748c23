package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/riskscope/riskscope/pkg/config"
	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/export"
	"github.com/riskscope/riskscope/pkg/render"
	"github.com/riskscope/riskscope/pkg/service"
	"github.com/riskscope/riskscope/pkg/submission"
	"github.com/riskscope/riskscope/pkg/types"
)

type rootOptions struct {
	configPath string
	logLevel   string
	baseURL    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "riskscope",
		Short:         "Monte Carlo risk scenario and simulation client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "backend", "", "compute service base URL")

	cmd.AddCommand(
		newScenariosCommand(opts),
		newSimulateCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

// open loads the config and builds a service whose alerts go to stderr
func (o *rootOptions) open(cmd *cobra.Command) (*service.Service, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.baseURL != "" {
		cfg.Backend.BaseURL = o.baseURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	stderr := cmd.ErrOrStderr()
	return service.New(cmd.Context(), cfg, types.NotifierFunc(func(msg string) {
		fmt.Fprintln(stderr, msg)
	}))
}

type submitOptions struct {
	file   string
	export string
	out    string
}

func (o *submitOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "CSV file to upload")
	cmd.Flags().StringVar(&o.export, "export", "", "after completion: csv, pdf or print")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "directory for exported files")
}

func (o *submitOptions) action() (export.Action, error) {
	switch o.export {
	case "":
		return "", nil
	case "csv":
		return export.ActionDownloadCSV, nil
	case "pdf":
		return export.ActionDownloadPDF, nil
	case "print":
		return export.ActionPrint, nil
	}
	return "", fmt.Errorf("unknown export %q (want csv, pdf or print)", o.export)
}

// run submits job, prints the rendered result and performs the export
func (o *submitOptions) run(cmd *cobra.Command, root *rootOptions, job *types.Job) error {
	action, err := o.action()
	if err != nil {
		return err
	}
	svc, err := root.open(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()
	if o.out != "" {
		svc.Config.Export.Dir = o.out
		svc.Downloader.Dir = o.out
	}

	out, err := svc.Submit(cmd.Context(), job)
	if err != nil {
		return quiet(err)
	}
	if err := printOutcome(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	if action == "" {
		return nil
	}
	path, err := svc.Export(cmd.Context(), action)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), rerrors.Notice(err))
		return quiet(err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}

func printOutcome(w io.Writer, out *submission.Outcome) error {
	if out.Result.Empty() {
		fmt.Fprintln(w, "No results to display.")
		return nil
	}
	return render.Render(w, out.Result)
}

func readFile(path string) (*types.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &types.File{Name: filepath.Base(path), Data: data}, nil
}

// quietError marks an error whose notice was already shown
type quietError struct{ error }

func (e quietError) Unwrap() error { return e.error }

func quiet(err error) error {
	return quietError{err}
}
