package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/riskscope/riskscope/pkg/classify"
	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/remote"
	"github.com/riskscope/riskscope/pkg/types"
)

// Output file names
const (
	ScenarioCSVFile   = "risk_scenarios.csv"
	ScenarioPDFFile   = "risk_scenarios.pdf"
	SimulationPDFFile = "simulation_results.pdf"
	PrintFile         = "simulation_print.pdf"
)

// NoDataMessage is shown when there is nothing to export
const NoDataMessage = "No data available for download."

// Exporter asks the service to render a payload
type Exporter interface {
	Export(ctx context.Context, path string, payload json.RawMessage) ([]byte, error)
}

// Downloader fetches generated documents and writes them to Dir
type Downloader struct {
	Exporter  Exporter
	Endpoints remote.Endpoints
	Dir       string
	Attempts  uint
	Delay     time.Duration
}

// NewDownloader creates a downloader with three attempts one second apart
func NewDownloader(e Exporter, endpoints remote.Endpoints, dir string) *Downloader {
	return &Downloader{
		Exporter:  e,
		Endpoints: endpoints,
		Dir:       dir,
		Attempts:  3,
		Delay:     time.Second,
	}
}

// target picks endpoint and file name for an action
func (d *Downloader) target(action Action, kind types.JobKind) (string, string, error) {
	switch {
	case action == ActionDownloadCSV && kind == types.JobKindScenarioIdentification:
		return d.Endpoints.CSV, ScenarioCSVFile, nil
	case action == ActionDownloadPDF && kind == types.JobKindScenarioIdentification:
		return d.Endpoints.PDF, ScenarioPDFFile, nil
	case action == ActionDownloadPDF && kind == types.JobKindSimulation:
		return d.Endpoints.SimulationPDF, SimulationPDFFile, nil
	}
	return "", "", rerrors.New(rerrors.ErrValidation, fmt.Sprintf("%s is not available for %s results", action, kind))
}

// Download exports res through the service and returns the written path.
// Server errors and transport failures are retried; 4xx answers are not.
func (d *Downloader) Download(ctx context.Context, action Action, kind types.JobKind, res *classify.Result) (string, error) {
	if res.Empty() {
		return "", rerrors.New(rerrors.ErrNoData, "empty result").WithUserMessage(NoDataMessage)
	}
	path, name, err := d.target(action, kind)
	if err != nil {
		return "", err
	}

	var blob []byte
	err = retry.Do(
		func() error {
			var err error
			blob, err = d.Exporter.Export(ctx, path, res.Raw)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(d.Attempts),
		retry.Delay(d.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("export %s attempt %d failed: %v", name, n+1, err)
		}),
	)
	if err != nil {
		if rerrors.Code(err) == "" {
			err = rerrors.Wrap(err, rerrors.ErrExportFailed, "export failed")
		}
		return "", err
	}

	out := filepath.Join(d.Dir, name)
	if err := writeFile(out, blob); err != nil {
		return "", rerrors.Wrap(err, rerrors.ErrExportFailed, "failed to write export").WithContext("path", out)
	}
	logger.Infof("wrote %s (%d bytes)", out, len(blob))
	return out, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var herr *remote.HTTPError
	if errors.As(err, &herr) {
		return herr.Temporary()
	}
	return true
}

// writeFile replaces path via a temp file in the same directory
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
