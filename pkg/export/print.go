package export

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/riskscope/riskscope/pkg/classify"
	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/render"
	"github.com/riskscope/riskscope/pkg/types"
)

const (
	pageWidth    = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 20.0
	contentWidth = pageWidth - marginLeft - marginRight

	histogramBins   = 30
	histogramHeight = 60.0
)

type printReport struct {
	pdf *fpdf.Fpdf
}

// Print renders a simulation result to PDF bytes
func Print(res *classify.Result) ([]byte, error) {
	if res.Empty() {
		return nil, rerrors.New(rerrors.ErrNoData, "empty result").WithUserMessage(NoDataMessage)
	}

	r := &printReport{pdf: fpdf.New("P", "mm", "A4", "")}
	r.pdf.SetMargins(marginLeft, marginTop, marginRight)
	r.pdf.SetAutoPageBreak(true, marginBottom)
	r.pdf.SetTitle("Monte Carlo Risk Simulation", false)

	switch res.Category {
	case types.CategorySingleSimulation:
		r.pdf.AddPage()
		r.header("Results")
		r.summary(res.Simulation.Summary)
		r.histogram(res.Simulation.Samples)
	case types.CategoryMultiScenarioSimulation:
		for _, e := range res.Scenarios {
			r.pdf.AddPage()
			r.entry(e)
		}
	default:
		return nil, rerrors.New(rerrors.ErrValidation, fmt.Sprintf("cannot print %s results", res.Category))
	}

	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrExportFailed, "failed to render PDF")
	}
	return buf.Bytes(), nil
}

// WritePrint renders res and writes it as simulation_print.pdf under dir
func WritePrint(dir string, res *classify.Result) (string, error) {
	blob, err := Print(res)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, PrintFile)
	if err := writeFile(out, blob); err != nil {
		return "", rerrors.Wrap(err, rerrors.ErrExportFailed, "failed to write print").WithContext("path", out)
	}
	return out, nil
}

func (r *printReport) header(title string) {
	r.pdf.SetFont("Arial", "B", 16)
	r.pdf.SetTextColor(43, 48, 58)
	r.pdf.CellFormat(contentWidth, 10, title, "", 1, "L", false, 0, "")
	r.pdf.SetFont("Arial", "", 9)
	r.pdf.SetTextColor(120, 120, 120)
	r.pdf.CellFormat(contentWidth, 5, time.Now().Format("2 January 2006 15:04"), "", 1, "L", false, 0, "")
	r.pdf.Ln(4)
}

func (r *printReport) entry(e types.SimulationEntry) {
	r.header(e.Risk)

	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.SetFont("Arial", "B", 11)
	r.pdf.CellFormat(contentWidth, 6, "Scenario:", "", 1, "L", false, 0, "")
	r.pdf.SetFont("Arial", "", 11)
	r.pdf.MultiCell(contentWidth, 5, e.Scenario, "", "L", false)
	r.pdf.Ln(3)

	if e.Formula != "" {
		r.pdf.SetFont("Arial", "B", 11)
		r.pdf.CellFormat(contentWidth, 6, "Formula:", "", 1, "L", false, 0, "")
		r.pdf.SetFont("Courier", "", 10)
		r.pdf.MultiCell(contentWidth, 5, render.Formula(e), "", "L", false)
		r.pdf.Ln(3)
	}

	if len(e.Variables) > 0 {
		r.pdf.SetFillColor(245, 247, 250)
		r.pdf.SetDrawColor(200, 200, 200)
		for _, v := range e.Variables {
			r.pdf.SetFont("Courier", "B", 10)
			r.pdf.CellFormat(contentWidth, 6, fmt.Sprintf("%s  (%s)", v.Name, v.Distribution), "1", 1, "L", true, 0, "")
			r.pdf.SetFont("Courier", "", 9)
			for _, p := range render.ParameterNames(v) {
				line := fmt.Sprintf("    %s: %s", p, strconv.FormatFloat(v.Parameters[p], 'f', -1, 64))
				r.pdf.CellFormat(contentWidth, 5, line, "LR", 1, "L", false, 0, "")
			}
			r.pdf.CellFormat(contentWidth, 0, "", "T", 1, "L", false, 0, "")
			r.pdf.Ln(2)
		}
	}

	r.summary(e.Summary)
	r.histogram(e.Samples)
}

func (r *printReport) summary(s types.Summary) {
	r.pdf.Ln(2)
	r.pdf.SetFont("Arial", "", 11)
	r.pdf.SetTextColor(0, 0, 0)
	for _, l := range render.SummaryLines(s) {
		r.pdf.CellFormat(contentWidth, 6, l, "", 1, "L", false, 0, "")
	}
	r.pdf.Ln(4)
}

// histogram draws the outcome distribution as filled bars
func (r *printReport) histogram(samples []float64) {
	bins := render.Histogram(samples, histogramBins)
	if len(bins) == 0 {
		return
	}
	maxCount := 0
	for _, b := range bins {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}

	r.pdf.SetFont("Arial", "B", 11)
	r.pdf.CellFormat(contentWidth, 6, "Outcome Distribution", "", 1, "L", false, 0, "")

	if r.pdf.GetY()+histogramHeight+12 > 297-marginBottom {
		r.pdf.AddPage()
	}
	top := r.pdf.GetY() + 2
	bottom := top + histogramHeight
	barWidth := contentWidth / float64(len(bins))

	r.pdf.SetFillColor(43, 48, 58)
	for i, b := range bins {
		h := histogramHeight * float64(b.Count) / float64(maxCount)
		if h > 0 {
			r.pdf.Rect(marginLeft+float64(i)*barWidth, bottom-h, barWidth*0.9, h, "F")
		}
	}
	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.Line(marginLeft, bottom, marginLeft+contentWidth, bottom)
	r.pdf.Line(marginLeft, top, marginLeft, bottom)

	r.pdf.SetFont("Arial", "", 8)
	r.pdf.SetXY(marginLeft, bottom+1)
	r.pdf.CellFormat(contentWidth/2, 4, render.Money(bins[0].Low), "", 0, "L", false, 0, "")
	r.pdf.CellFormat(contentWidth/2, 4, render.Money(bins[len(bins)-1].High), "", 1, "R", false, 0, "")
	r.pdf.SetXY(marginLeft, top-1)
	r.pdf.CellFormat(contentWidth, 4, fmt.Sprintf("max %d", maxCount), "", 1, "R", false, 0, "")
	r.pdf.SetY(bottom + 8)
}
