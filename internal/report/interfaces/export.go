package interfaces

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	report "building-energy/internal/report/application"
	tariff "building-energy/internal/tariff/domain"
)

const notAvailable = "n/a"

// BuildStatementPDF renders a monthly cost statement.
func BuildStatementPDF(stmt report.Statement, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Energy Cost Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", stmt.Month))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Electricity: %.3f kWh, %s", stmt.Electricity.UsageKWh, money(stmt.Electricity.Total())))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("District heat: %.3f kWh, %s", stmt.Heat.UsageKWh, money(stmt.Heat.Total())))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %s", money(stmt.Total())))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Electricity kWh", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Cost", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Heat kWh", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Cost", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, day := range stmt.Days {
		pdf.CellFormat(30, 6, day.Date.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", day.ElectricityKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, money(day.ElectricityCost), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", day.HeatKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, money(day.HeatCost), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Cost lines")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	for _, part := range []struct {
		name string
		cost tariff.Breakdown
	}{{"Electricity", stmt.Electricity}, {"District heat", stmt.Heat}} {
		for _, group := range []tariff.Components{part.cost.Variable, part.cost.Static} {
			for _, label := range group.Labels() {
				pdf.CellFormat(50, 6, part.name, "1", 0, "L", false, 0, "")
				pdf.CellFormat(80, 6, label, "1", 0, "L", false, 0, "")
				pdf.CellFormat(30, 6, money(group[label]), "1", 0, "R", false, 0, "")
				pdf.Ln(-1)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTableXLSX renders the report tables, one sheet per table.
func BuildTableXLSX(rep *report.Report) ([]byte, error) {
	if rep == nil {
		return nil, report.ErrNoReport
	}
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name string
		rows []report.TableRow
	}{
		{"last days", rep.Table.LastDays},
		{"monthly", rep.Table.Monthly},
		{"yearly", rep.Table.Yearly},
		{fmt.Sprintf("year to day %d", rep.Table.YearlyToThisDate.UntilDayIncl), rep.Table.YearlyToThisDate.Data},
	}
	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			return nil, err
		}
		writeTable(f, sheet.name, sheet.rows)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var tableHeader = []string{
	"Period", "Temperature", "Spot price",
	"Electricity kWh", "Electricity cost", "Electricity datapoints",
	"Heat kWh", "Heat cost", "Heat datapoints",
}

func writeTable(f *excelize.File, sheet string, rows []report.TableRow) {
	for col, title := range tableHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, row := range rows {
		values := []interface{}{
			row.Name,
			cellValue(row.Temperature.Float()),
			cellValue(row.SpotPrice.Float()),
			row.Electricity.UsageKWh,
			cellValue(row.Electricity.Total()),
			row.ElectricityDatapoints,
			row.Heat.UsageKWh,
			cellValue(row.Heat.Total()),
			row.HeatDatapoints,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}
}

func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return v
}

func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return fmt.Sprintf("%.2f", v)
}
