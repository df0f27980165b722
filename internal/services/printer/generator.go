package printer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/reporting"
)

// LabelConfig holds the sheet layout for request labels
type LabelConfig struct {
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	MarginTop  float64 `json:"marginTop"`
	MarginLeft float64 `json:"marginLeft"`
	GapX       float64 `json:"gapX"`
	GapY       float64 `json:"gapY"`
}

// DefaultLabelConfig fits 3 x 8 labels on an A4 sheet
var DefaultLabelConfig = LabelConfig{Cols: 3, Rows: 8, MarginTop: 10, MarginLeft: 8, GapX: 3, GapY: 2}

// RequestURL is the link encoded in a request's QR code
func RequestURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/requests/" + id
}

func registerQR(pdf *gofpdf.Fpdf, name, content string) (gofpdf.ImageOptions, error) {
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}

	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return opts, fmt.Errorf("qr encode: %w", err)
	}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	return opts, pdf.Error()
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateRequestSlip renders a one-page summary of a request with a QR link back to it
func GenerateRequestSlip(r *models.Request, baseURL string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(140, 9, tr("Service Request"), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(140, 5, r.ID, "", 1, "L", false, 0, "")

	opts, err := registerQR(pdf, "qr_slip", RequestURL(baseURL, r.ID))
	if err != nil {
		return nil, err
	}
	pdf.ImageOptions("qr_slip", 160, 12, 35, 35, false, opts, 0, "")

	pdf.Ln(8)
	date := "-"
	if d, ok := reporting.UsableDate(r.Date); ok {
		date = d.UTC().Format("2006-01-02 15:04 MST")
	}
	rows := [][2]string{
		{"Title", r.Title},
		{"Requester", strings.TrimSpace(r.Requester + " " + r.RequesterEmail)},
		{"Site", r.Site},
		{"Status", r.Status},
		{"Priority", r.Priority},
		{"Technician", r.Technician},
		{"Submitted", date},
	}
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = "-"
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(35, 7, tr(row[0]), "B", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(105, 7, tr(value), "B", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, tr("Description"), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, tr(r.Description), "", "L", false)

	if len(r.Attachments) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("Attachments (%d)", len(r.Attachments))), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, a := range r.Attachments {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("- %s (%s, %d KB)", a.FileName, a.FileType, a.FileSize/1024)), "", 1, "L", false, 0, "")
		}
	}

	return output(pdf)
}

// GenerateReportPDF renders the statistics and detail list of a report
func GenerateReportPDF(rep reporting.Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	title := "Weekly Report"
	if rep.Timeframe == reporting.Monthly {
		title = "Monthly Report"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 9, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, "Generated "+rep.GeneratedAt.UTC().Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	cardW := 273.0 / float64(len(rep.Cards))
	pdf.SetFillColor(235, 240, 250)
	pdf.SetFont("Arial", "B", 9)
	for _, c := range rep.Cards {
		pdf.CellFormat(cardW, 7, tr(c.Title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 12)
	for _, c := range rep.Cards {
		pdf.CellFormat(cardW, 9, fmt.Sprintf("%d", c.Count), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	if rep.Filter == reporting.FilterNone {
		return output(pdf)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s (%d)", rep.ListTitle, len(rep.Requests))), "", 1, "L", false, 0, "")

	widths := []float64{32, 70, 45, 28, 30, 40, 28}
	headers := []string{"Date", "Title", "Requester", "Status", "Priority", "Technician", "Site"}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rep.Requests {
		date := ""
		if d, ok := reporting.UsableDate(r.Date); ok {
			date = d.UTC().Format("2006-01-02 15:04")
		}
		cells := []string{date, r.Title, r.Requester, r.Status, models.PriorityLevel(r.Priority), r.Technician, r.Site}
		for i, v := range cells {
			pdf.CellFormat(widths[i], 6, tr(truncate(v, widths[i])), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// GenerateLabelsPDF creates a sheet of QR labels, one per request, for tagging
// equipment handed in for repair
func GenerateLabelsPDF(requests []models.Request, baseURL string, cfg LabelConfig) ([]byte, error) {
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		cfg = DefaultLabelConfig
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)

	pageWidth, pageHeight := 210.0, 297.0
	totalGapX := float64(cfg.Cols-1) * cfg.GapX
	totalGapY := float64(cfg.Rows-1) * cfg.GapY
	availW := pageWidth - (cfg.MarginLeft * 2)
	availH := pageHeight - (cfg.MarginTop * 2)
	labelW := (availW - totalGapX) / float64(cfg.Cols)
	labelH := (availH - totalGapY) / float64(cfg.Rows)

	labelsPerPage := cfg.Cols * cfg.Rows
	if len(requests) == 0 {
		pdf.AddPage()
	}

	for i, r := range requests {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		indexOnPage := i % labelsPerPage
		col := indexOnPage % cfg.Cols
		row := indexOnPage / cfg.Cols
		x := cfg.MarginLeft + float64(col)*(labelW+cfg.GapX)
		y := cfg.MarginTop + float64(row)*(labelH+cfg.GapY)

		imgName := fmt.Sprintf("qr_%d", i)
		opts, err := registerQR(pdf, imgName, RequestURL(baseURL, r.ID))
		if err != nil {
			return nil, err
		}

		// QR on the left, text on the right
		qrSize := labelH * 0.85
		if qrSize > labelW*0.45 {
			qrSize = labelW * 0.45
		}
		pdf.ImageOptions(imgName, x+1, y+(labelH-qrSize)/2, qrSize, qrSize, false, opts, 0, "")

		textX := x + qrSize + 2
		textW := labelW - qrSize - 3
		pdf.SetXY(textX, y+3)
		pdf.SetFontSize(8)
		pdf.CellFormat(textW, 4, tr(truncate(r.Title, textW)), "", 2, "L", false, 0, "")
		pdf.SetFontSize(6)
		pdf.CellFormat(textW, 3, tr(truncate(r.Requester, textW)), "", 2, "L", false, 0, "")
		pdf.CellFormat(textW, 3, tr(truncate(r.Site, textW)), "", 2, "L", false, 0, "")
		pdf.CellFormat(textW, 3, shortID(r.ID), "", 2, "L", false, 0, "")
	}

	return output(pdf)
}

// truncate shortens text to roughly fit a cell of width mm at small font sizes
func truncate(s string, width float64) string {
	limit := int(width / 1.6)
	runes := []rune(s)
	if len(runes) <= limit || limit < 2 {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
