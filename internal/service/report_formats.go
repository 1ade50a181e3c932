package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/propwatch/propwatch/internal/models"
)

// FormatReport renders data in the requested output format. Every format
// carries the same summary and rows; only the layout differs.
func FormatReport(data *models.ReportData, format string) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch format {
	case models.ReportFormatHTML:
		out, err = FormatHTML(data)
	case models.ReportFormatCSV:
		out, err = FormatCSV(data)
	case models.ReportFormatExcel:
		out, err = FormatExcel(data)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return nil, err
	}
	reportsGenerated.WithLabelValues(data.Metadata.ReportType, format).Inc()
	return out, nil
}

// ReportContentType returns the MIME type for a report format.
func ReportContentType(format string) string {
	switch format {
	case models.ReportFormatCSV:
		return "text/csv"
	case models.ReportFormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/html; charset=utf-8"
	}
}

func summaryKeys(summary map[string]interface{}) []string {
	keys := make([]string, 0, len(summary))
	for key := range summary {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// FormatHTML renders a standalone HTML document with a summary list and the
// data table.
func FormatHTML(data *models.ReportData) ([]byte, error) {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	b.WriteString(fmt.Sprintf("<title>%s report</title>", html.EscapeString(data.Metadata.ReportType)))
	b.WriteString("<style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>")
	b.WriteString("</head><body>")

	b.WriteString(fmt.Sprintf("<h1>%s report</h1>", html.EscapeString(data.Metadata.ReportType)))
	b.WriteString(fmt.Sprintf("<p>Period: %s to %s. Generated %s.</p>",
		data.Metadata.PeriodStart.Format("2006-01-02 15:04"),
		data.Metadata.PeriodEnd.Format("2006-01-02 15:04"),
		data.Metadata.GeneratedAt.Format(time.RFC3339)))

	b.WriteString("<h2>Summary</h2><ul>")
	for _, key := range summaryKeys(data.Summary) {
		b.WriteString(fmt.Sprintf("<li><b>%s</b>: %s</li>",
			html.EscapeString(key), html.EscapeString(fmt.Sprintf("%v", data.Summary[key]))))
	}
	b.WriteString("</ul>")

	b.WriteString("<h2>Details</h2><table><tr>")
	for _, column := range data.Columns {
		b.WriteString(fmt.Sprintf("<th>%s</th>", html.EscapeString(column)))
	}
	b.WriteString("</tr>")
	for _, row := range data.Rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString(fmt.Sprintf("<td>%s</td>", html.EscapeString(fmt.Sprintf("%v", cell))))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")

	return []byte(b.String()), nil
}

// FormatCSV renders the data table preceded by summary comment lines.
func FormatCSV(data *models.ReportData) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"# report_type", data.Metadata.ReportType}); err != nil {
		return nil, err
	}
	if err := w.Write([]string{"# period",
		data.Metadata.PeriodStart.Format(time.RFC3339),
		data.Metadata.PeriodEnd.Format(time.RFC3339)}); err != nil {
		return nil, err
	}
	for _, key := range summaryKeys(data.Summary) {
		if err := w.Write([]string{"# " + key, fmt.Sprintf("%v", data.Summary[key])}); err != nil {
			return nil, err
		}
	}

	if err := w.Write(data.Columns); err != nil {
		return nil, err
	}
	for _, row := range data.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = fmt.Sprintf("%v", cell)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// FormatExcel renders a workbook with a Summary sheet and a Data sheet.
func FormatExcel(data *models.ReportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	const dataSheet = "Data"

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(dataSheet); err != nil {
		return nil, err
	}

	rowIdx := 1
	setSummaryRow := func(key string, value interface{}) error {
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", rowIdx), key); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", rowIdx), fmt.Sprintf("%v", value)); err != nil {
			return err
		}
		rowIdx++
		return nil
	}

	if err := setSummaryRow("report_type", data.Metadata.ReportType); err != nil {
		return nil, err
	}
	if err := setSummaryRow("period_start", data.Metadata.PeriodStart.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := setSummaryRow("period_end", data.Metadata.PeriodEnd.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	for _, key := range summaryKeys(data.Summary) {
		if err := setSummaryRow(key, data.Summary[key]); err != nil {
			return nil, err
		}
	}

	header := make([]interface{}, len(data.Columns))
	for i, column := range data.Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(dataSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range data.Rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(dataSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
