package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	settlement "energytrade-cloud/internal/settlement/domain"
)

// CycleReport aggregates the settlements of one settlement cycle for export.
type CycleReport struct {
	CycleID        string
	GeneratedAt    time.Time
	TotalLegs      int
	SettledLegs    int
	ContractedKWh  float64
	DeliveredKWh   float64
	NetDeviationKW float64
}

// BuildCycleReport summarizes a batch of settlement legs.
func BuildCycleReport(cycleID string, legs []*settlement.Settlement, now time.Time) CycleReport {
	report := CycleReport{CycleID: cycleID, GeneratedAt: now}
	for _, leg := range legs {
		report.TotalLegs++
		report.ContractedKWh += leg.ContractedQuantity
		if leg.Status.Terminal() {
			report.SettledLegs++
		}
		if leg.ActualDelivered != nil {
			report.DeliveredKWh += *leg.ActualDelivered
		}
		if leg.DeviationKWh != nil {
			report.NetDeviationKW += *leg.DeviationKWh
		}
	}
	return report
}

// BuildCycleReportPDF renders a minimal PDF for a settlement cycle.
func BuildCycleReportPDF(report CycleReport, legs []*settlement.Settlement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Settlement Cycle Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Cycle: %s", report.CycleID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Legs: %d (settled %d)", report.TotalLegs, report.SettledLegs))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Contracted (kWh): %.3f", report.ContractedKWh))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Delivered (kWh): %.3f", report.DeliveredKWh))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Net Deviation (kWh): %.3f", report.NetDeviationKW))
	pdf.Ln(8)

	// Legs table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 6, "Transaction", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Role", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Contracted (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Deviation (kWh)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, leg := range legs {
		pdf.CellFormat(55, 6, leg.TransactionID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, string(leg.Role), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, string(leg.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", leg.ContractedQuantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, formatDeviation(leg.DeviationKWh), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCycleReportXLSX renders a minimal XLSX for a settlement cycle.
func BuildCycleReportXLSX(report CycleReport, legs []*settlement.Settlement) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	legsSheet := "settlements"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(legsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Settlement Cycle Report")
	_ = f.SetCellValue(summarySheet, "A3", "Cycle")
	_ = f.SetCellValue(summarySheet, "B3", report.CycleID)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", report.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Legs")
	_ = f.SetCellValue(summarySheet, "B5", report.TotalLegs)
	_ = f.SetCellValue(summarySheet, "A6", "Settled Legs")
	_ = f.SetCellValue(summarySheet, "B6", report.SettledLegs)
	_ = f.SetCellValue(summarySheet, "A7", "Contracted (kWh)")
	_ = f.SetCellValue(summarySheet, "B7", report.ContractedKWh)
	_ = f.SetCellValue(summarySheet, "A8", "Delivered (kWh)")
	_ = f.SetCellValue(summarySheet, "B8", report.DeliveredKWh)
	_ = f.SetCellValue(summarySheet, "A9", "Net Deviation (kWh)")
	_ = f.SetCellValue(summarySheet, "B9", report.NetDeviationKW)

	_ = f.SetCellValue(legsSheet, "A1", "Transaction")
	_ = f.SetCellValue(legsSheet, "B1", "Role")
	_ = f.SetCellValue(legsSheet, "C1", "Status")
	_ = f.SetCellValue(legsSheet, "D1", "Contracted (kWh)")
	_ = f.SetCellValue(legsSheet, "E1", "Delivered (kWh)")
	_ = f.SetCellValue(legsSheet, "F1", "Deviation (kWh)")
	_ = f.SetCellValue(legsSheet, "G1", "Settled At")
	for i, leg := range legs {
		row := i + 2
		_ = f.SetCellValue(legsSheet, fmt.Sprintf("A%d", row), leg.TransactionID)
		_ = f.SetCellValue(legsSheet, fmt.Sprintf("B%d", row), string(leg.Role))
		_ = f.SetCellValue(legsSheet, fmt.Sprintf("C%d", row), string(leg.Status))
		_ = f.SetCellValue(legsSheet, fmt.Sprintf("D%d", row), leg.ContractedQuantity)
		if leg.ActualDelivered != nil {
			_ = f.SetCellValue(legsSheet, fmt.Sprintf("E%d", row), *leg.ActualDelivered)
		}
		if leg.DeviationKWh != nil {
			_ = f.SetCellValue(legsSheet, fmt.Sprintf("F%d", row), *leg.DeviationKWh)
		}
		if leg.SettledAt != nil {
			_ = f.SetCellValue(legsSheet, fmt.Sprintf("G%d", row), leg.SettledAt.Format(time.RFC3339))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDeviation(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *value)
}
