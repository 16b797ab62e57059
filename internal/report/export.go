package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/marcoskonzen/trustedge/pkg/apperror"
)

// WriteJSON renders rm as the run's metrics.json.
func WriteJSON(path string, rm *RunMetrics) error {
	raw, err := json.MarshalIndent(rm, "", "  ")
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "encoding run metrics")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "writing metrics file")
	}
	return nil
}

// WriteXLSX renders a one-workbook human summary of rm: a key figures
// sheet plus a per-server reliability table.
func WriteXLSX(path string, rm *RunMetrics) error {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	f.SetSheetName("Sheet1", summarySheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	row := 1
	writeHeader := func(label string) {
		cell := fmt.Sprintf("A%d", row)
		f.SetCellValue(summarySheet, cell, label)
		f.MergeCell(summarySheet, cell, fmt.Sprintf("B%d", row))
		f.SetCellStyle(summarySheet, cell, fmt.Sprintf("B%d", row), headerStyle)
		row++
	}
	writeRow := func(label string, value any) {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), label)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), value)
		row++
	}

	writeHeader("Run parameters")
	writeRow("Algorithm", rm.Parameters.Algorithm)
	writeRow("Seed", rm.Parameters.Seed)
	writeRow("Time steps", rm.Parameters.TimeSteps)
	writeRow("Reliability threshold", rm.Parameters.ReliabilityThreshold)
	writeRow("Lookahead", rm.Parameters.Lookahead)
	row++

	writeHeader("Execution")
	writeRow("Total time (minutes)", rm.Execution.TotalTimeMinutes)
	row++

	writeHeader("SLA")
	writeRow("Total delay SLA violations", rm.SLA.TotalDelaySLAViolations)
	writeRow("Total downtime SLA violations", rm.SLA.TotalDowntimeSLAViolations)
	writeRow("Total perceived downtime", rm.SLA.TotalPerceivedDowntime)
	writeRow("Average delay", rm.SLA.AvgDelay)
	row++

	writeHeader("Provisioning & migration")
	writeRow("Total migrations", rm.ProvisioningAndMigration.TotalMigrations)
	row++

	writeHeader("Prediction quality")
	writeRow("Precision", rm.PredictionQuality.Precision)
	writeRow("Recall", rm.PredictionQuality.Recall)

	f.SetColWidth(summarySheet, "A", "A", 30)
	f.SetColWidth(summarySheet, "B", "B", 20)

	const reliabilitySheet = "Server reliability"
	f.NewSheet(reliabilitySheet)
	headers := []string{"Server ID", "MTBF", "MTTR", "Total failures", "Uptime steps", "Downtime steps"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(reliabilitySheet, cell, h)
		f.SetCellStyle(reliabilitySheet, cell, cell, headerStyle)
	}

	ids := make([]string, 0, len(rm.ServerReliability))
	for id := range rm.ServerReliability {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		summary := rm.ServerReliability[id]
		r := i + 2
		f.SetCellValue(reliabilitySheet, fmt.Sprintf("A%d", r), id)
		f.SetCellValue(reliabilitySheet, fmt.Sprintf("B%d", r), summary.MTBF)
		f.SetCellValue(reliabilitySheet, fmt.Sprintf("C%d", r), summary.MTTR)
		f.SetCellValue(reliabilitySheet, fmt.Sprintf("D%d", r), summary.TotalFailures)
		f.SetCellValue(reliabilitySheet, fmt.Sprintf("E%d", r), summary.UptimeSteps)
		f.SetCellValue(reliabilitySheet, fmt.Sprintf("F%d", r), summary.DowntimeSteps)
	}
	f.SetColWidth(reliabilitySheet, "A", "F", 16)

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "writing xlsx report")
	}
	return nil
}
