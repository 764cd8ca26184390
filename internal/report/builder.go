package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"benchhub/internal/model"
)

// Header is the fixed campaign report column order.
var Header = []string{
	"Status", "JobId", "FileName", "FileSize", "ComputeUnits",
	"DeviceName", "DeviceYear", "Soc", "Ram", "DiscreteGpu", "VRam",
	"DeviceOs", "DeviceOsVersion",
	"LoadMsMedian", "LoadMsStdDev", "LoadMsAverage", "LoadMsFirst",
	"PeakLoadRamUsage",
	"InferenceMsMedian", "InferenceMsStdDev", "InferenceMsAverage",
	"InferenceMsFirst", "PeakInferenceRamUsage",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func record(row *model.ReportRow) []string {
	return []string{
		row.Status,
		row.JobID,
		row.FileName,
		strconv.FormatInt(row.FileSize, 10),
		row.ComputeUnits,
		row.DeviceName,
		row.DeviceYear,
		row.Soc,
		row.Ram,
		row.DiscreteGpu,
		row.VRam,
		row.DeviceOs,
		row.DeviceOsVersion,
		formatFloat(row.LoadMsMedian),
		formatFloat(row.LoadMsStdDev),
		formatFloat(row.LoadMsAverage),
		formatFloat(row.LoadMsFirst),
		formatFloat(row.PeakLoadRamUsage),
		formatFloat(row.InferenceMsMedian),
		formatFloat(row.InferenceMsStdDev),
		formatFloat(row.InferenceMsAverage),
		formatFloat(row.InferenceMsFirst),
		formatFloat(row.PeakInferenceRamUsage),
	}
}

// WriteCSV renders report rows as CSV, header first.
func WriteCSV(w io.Writer, rows []*model.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(record(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName names the on-disk report for a campaign.
func FileName(campaignID string) string {
	return campaignID + ".csv"
}

// WriteFile renders a campaign report into dir, creating it if needed, and
// returns the file path. Regeneration overwrites.
func WriteFile(dir, campaignID string, rows []*model.ReportRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports dir: %w", err)
	}
	path := filepath.Join(dir, FileName(campaignID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// ListFiles returns the generated report file names in dir, sorted.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
