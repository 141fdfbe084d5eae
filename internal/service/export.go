package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"site_registry/internal/domain"
)

const exportSheet = "Sites"

// exportColumn is one column of the site export
type exportColumn struct {
	Header string
	Width  float64
	Value  func(s domain.Site) interface{}
}

func detailValue(kind domain.PowerSourceKind, field string) func(domain.Site) interface{} {
	return func(s domain.Site) interface{} {
		ps, ok := s.PowerSourceDetails.Get(kind)
		if !ok {
			return nil
		}
		return ps.Values()[field]
	}
}

var exportColumns = []exportColumn{
	{"ID", 10, func(s domain.Site) interface{} { return s.ID }},
	{"Name", 20, func(s domain.Site) interface{} { return s.Name }},
	{"Address", 30, func(s domain.Site) interface{} { return s.Address }},
	{"Status", 15, func(s domain.Site) interface{} { return string(s.Status) }},
	{"Height", 10, func(s domain.Site) interface{} { return s.Height }},
	{"Uptime", 10, func(s domain.Site) interface{} { return s.Uptime }},
	{"Latitude", 15, func(s domain.Site) interface{} { return s.Location.Lat }},
	{"Longitude", 15, func(s domain.Site) interface{} { return s.Location.Lng }},
	{"Power Sources", 20, func(s domain.Site) interface{} { return joinKinds(s.PowerSources) }},
	{"Capacity", 15, func(s domain.Site) interface{} { return string(s.Capacity) }},
	{"Installation Date", 15, func(s domain.Site) interface{} {
		if s.InstallationDate == nil {
			return nil
		}
		return s.InstallationDate.Format("2006-01-02")
	}},
	{"Last Maintenance", 15, func(s domain.Site) interface{} {
		if s.LastMaintenance == nil {
			return nil
		}
		return s.LastMaintenance.Format("2006-01-02")
	}},
	{"Technician Name", 20, func(s domain.Site) interface{} {
		if s.Technician == nil {
			return nil
		}
		return s.Technician.Name
	}},
	{"Technician Phone", 15, func(s domain.Site) interface{} {
		if s.Technician == nil {
			return nil
		}
		return s.Technician.Phone
	}},
	{"Tags", 20, func(s domain.Site) interface{} { return strings.Join(s.Tags, ", ") }},
	{"Notes", 30, func(s domain.Site) interface{} { return s.Notes }},
	{"Generator Type", 20, detailValue(domain.Generator, "type")},
	{"Generator Capacity (kVA)", 15, detailValue(domain.Generator, "capacity")},
	{"Generator Load (kW)", 15, detailValue(domain.Generator, "load")},
	{"Generator Autonomy (hours)", 15, detailValue(domain.Generator, "autonomy")},
	{"Generator Fuel Tank (litres)", 15, detailValue(domain.Generator, "fuelTank")},
	{"Battery Type", 20, detailValue(domain.Battery, "type")},
	{"Battery Capacity (kWh)", 15, detailValue(domain.Battery, "capacity")},
	{"Battery Voltage (V)", 15, detailValue(domain.Battery, "voltage")},
	{"Battery Depth (%)", 15, detailValue(domain.Battery, "depth")},
	{"Battery Quantity (packs)", 15, detailValue(domain.Battery, "quantity")},
	{"Solar Type", 20, detailValue(domain.Solar, "type")},
	{"Solar Capacity (kW)", 15, detailValue(domain.Solar, "capacity")},
	{"Solar Tilt (degrees)", 15, detailValue(domain.Solar, "tilt")},
	{"Solar Inverter Size (kW)", 15, detailValue(domain.Solar, "inverterSize")},
	{"Solar Autonomy (kWh)", 15, detailValue(domain.Solar, "autonomy")},
	{"Grid Connection Type", 20, detailValue(domain.Grid, "connectionType")},
	{"Grid Voltage (V)", 15, detailValue(domain.Grid, "voltage")},
	{"Grid Load (kW)", 15, detailValue(domain.Grid, "load")},
}

// ExportHeaders returns the export column headers in order
func ExportHeaders() []string {
	headers := make([]string, len(exportColumns))
	for i, c := range exportColumns {
		headers[i] = c.Header
	}
	return headers
}

// ExportSites renders sites as an xlsx workbook with one row per site
func ExportSites(sites []domain.Site) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, c := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, c.Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheet, col, col, c.Width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, site := range sites {
		row := r + 2
		for i, c := range exportColumns {
			value := c.Value(site)
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

func joinKinds(kinds []domain.PowerSourceKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
