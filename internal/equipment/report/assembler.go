// Package report renders the PDF summary of a stored dataset.
package report

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgerror"
)

const (
	Title      = "Chemical Equipment Parameter Report"
	dateLayout = "2006-01-02 15:04"

	marginLeft  = 35.0 // mm
	marginTop   = 20.0
	lineHeight  = 6.0
	titleHeight = 10.0
)

// Lines returns the report body in print order. The first line is the title.
func Lines(d entity.Dataset) []string {
	s := d.Summary

	lines := []string{
		Title,
		"Dataset: " + d.Filename,
		"Date: " + d.CreatedAt.UTC().Format(dateLayout),
		"",
		"--- Summary Statistics ---",
		fmt.Sprintf("Total Equipment: %d", s.RowCount),
		fmt.Sprintf("Avg Flowrate: %.2f m3/h", s.MeanFlowrate),
		fmt.Sprintf("Avg Pressure: %.2f bar", s.MeanPressure),
		fmt.Sprintf("Avg Temp: %.2f C", s.MeanTemperature),
	}

	if len(s.DistributionByType) > 0 {
		lines = append(lines, "", "--- Distribution by Type ---")

		types := make([]string, 0, len(s.DistributionByType))
		for t := range s.DistributionByType {
			types = append(types, t)
		}
		slices.Sort(types)

		for _, t := range types {
			lines = append(lines, fmt.Sprintf("%s: %d", t, s.DistributionByType[t]))
		}
	}

	return lines
}

// Assembler renders one-page A4 reports. The zero value is ready to use.
type Assembler struct {
	// Creator is written to the document metadata when set.
	Creator string
}

func NewAssembler(creator string) *Assembler {
	return &Assembler{Creator: creator}
}

// Render builds the PDF for dataset on behalf of owner. A dataset that owner
// does not own is reported as pkgerror.ErrNotFound, the same as a missing one.
//
// Output depends only on the dataset: rendering it twice yields identical bytes.
func (a *Assembler) Render(ctx context.Context, owner string, d entity.Dataset) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.OwnerID == "" || d.OwnerID != owner {
		return nil, pkgerror.ErrNotFound
	}

	stamp := d.CreatedAt.UTC()
	if stamp.IsZero() {
		stamp = time.Unix(0, 0).UTC()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(true)
	pdf.SetTitle(Title, true)
	if a.Creator != "" {
		pdf.SetCreator(a.Creator, true)
	}
	pdf.SetMargins(marginLeft, marginTop, marginLeft)
	pdf.SetAutoPageBreak(false, 0)

	// Core fonts only cover cp1252; filenames may be arbitrary UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	lines := Lines(d)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, titleHeight, tr(lines[0]), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range lines[1:] {
		if line == "" {
			pdf.Ln(lineHeight / 2)
			continue
		}
		pdf.CellFormat(0, lineHeight, tr(line), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report for dataset %d: %w", d.ID, err)
	}

	return buf.Bytes(), nil
}
