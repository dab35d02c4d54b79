package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"rumble-backup/pkg/models"
)

// ExportFormat represents different export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

var videoColumns = []string{
	"Channel", "Video ID", "Title", "Uploader", "Duration",
	"View Count", "Like Count", "Upload Date", "Size", "Media Path", "Downloaded At",
}

var runColumns = []string{
	"Channel", "Found", "Downloaded", "Skipped", "Failed", "Started At", "Completed At",
}

const dateFormat = "2006-01-02 15:04:05"

// Exporter writes catalog contents to CSV, Excel or JSON files.
type Exporter struct {
	format   ExportFormat
	filePath string
}

// NewExporter creates an exporter for the given format and destination.
func NewExporter(format ExportFormat, filePath string) (*Exporter, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}
	switch format {
	case FormatCSV, FormatXLSX, FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
	return &Exporter{format: format, filePath: filePath}, nil
}

// GetSupportedFormats returns list of supported export formats
func GetSupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV, FormatXLSX, FormatJSON}
}

// ExportVideos exports video records to the configured format.
func (e *Exporter) ExportVideos(videos []*models.VideoRecord) error {
	if err := os.MkdirAll(filepath.Dir(e.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	switch e.format {
	case FormatCSV:
		return e.videosToCSV(videos)
	case FormatXLSX:
		return e.videosToXLSX(videos)
	case FormatJSON:
		return e.videosToJSON(videos)
	default:
		return fmt.Errorf("unsupported export format: %s", e.format)
	}
}

// ExportRuns exports run history to the configured format.
func (e *Exporter) ExportRuns(runs []*models.RunRecord) error {
	if err := os.MkdirAll(filepath.Dir(e.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	switch e.format {
	case FormatCSV:
		return e.runsToCSV(runs)
	case FormatXLSX:
		return e.runsToXLSX(runs)
	case FormatJSON:
		return e.runsToJSON(runs)
	default:
		return fmt.Errorf("unsupported export format: %s", e.format)
	}
}

func (e *Exporter) videosToCSV(videos []*models.VideoRecord) error {
	file, err := os.Create(e.filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(videoColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, video := range videos {
		if err := writer.Write(videoRow(video)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}

func (e *Exporter) videosToXLSX(videos []*models.VideoRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Videos"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, column := range videoColumns {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, column)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	columnWidths := map[string]float64{
		"A": 25, // Channel
		"B": 15, // Video ID
		"C": 50, // Title
		"D": 25, // Uploader
		"E": 12, // Duration
		"F": 12, // View Count
		"G": 12, // Like Count
		"H": 14, // Upload Date
		"I": 14, // Size
		"J": 60, // Media Path
		"K": 20, // Downloaded At
	}
	for col, width := range columnWidths {
		f.SetColWidth(sheetName, col, col, width)
	}

	for i, video := range videos {
		for j, value := range videoRow(video) {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	endRange := fmt.Sprintf("%c%d", 'A'+len(videoColumns)-1, len(videos)+1)
	f.AutoFilter(sheetName, "A1:"+endRange, []excelize.AutoFilterOptions{})

	// Freeze first row
	f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true,
		Split:  false,
		XSplit: 0,
		YSplit: 1,
	})

	if err := f.SaveAs(e.filePath); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}
	return nil
}

func (e *Exporter) videosToJSON(videos []*models.VideoRecord) error {
	exportData := struct {
		ExportedAt time.Time             `json:"exported_at"`
		Count      int                   `json:"count"`
		Videos     []*models.VideoRecord `json:"videos"`
	}{
		ExportedAt: time.Now(),
		Count:      len(videos),
		Videos:     videos,
	}

	data, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(e.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

func (e *Exporter) runsToCSV(runs []*models.RunRecord) error {
	file, err := os.Create(e.filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(runColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, run := range runs {
		if err := writer.Write(runRow(run)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}

func (e *Exporter) runsToXLSX(runs []*models.RunRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Runs"
	f.SetSheetName("Sheet1", sheetName)

	for i, column := range runColumns {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, column)
	}

	for i, run := range runs {
		for j, value := range runRow(run) {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	return f.SaveAs(e.filePath)
}

func (e *Exporter) runsToJSON(runs []*models.RunRecord) error {
	exportData := struct {
		ExportedAt time.Time           `json:"exported_at"`
		Count      int                 `json:"count"`
		Runs       []*models.RunRecord `json:"runs"`
	}{
		ExportedAt: time.Now(),
		Count:      len(runs),
		Runs:       runs,
	}

	data, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return os.WriteFile(e.filePath, data, 0644)
}

func videoRow(video *models.VideoRecord) []string {
	return []string{
		video.Channel,
		video.VideoID,
		video.Title,
		video.Uploader,
		fmt.Sprintf("%d", video.Duration),
		fmt.Sprintf("%d", video.ViewCount),
		fmt.Sprintf("%d", video.LikeCount),
		video.UploadDate,
		fmt.Sprintf("%d", video.Size),
		video.MediaPath,
		video.DownloadedAt.Format(dateFormat),
	}
}

func runRow(run *models.RunRecord) []string {
	return []string{
		run.Channel,
		fmt.Sprintf("%d", run.VideosFound),
		fmt.Sprintf("%d", run.VideosDownloaded),
		fmt.Sprintf("%d", run.VideosSkipped),
		fmt.Sprintf("%d", run.VideosFailed),
		run.StartedAt.Format(dateFormat),
		run.CompletedAt.Format(dateFormat),
	}
}
