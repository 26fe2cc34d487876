package session

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ExportSheetName 导出工作表名称
const ExportSheetName = "Session Log"

// ExportXLSX 把会话 CSV 日志转换成单工作表的 Excel 文件
func (m *Manager) ExportXLSX(id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, notFound(id)
	}
	file, err := os.Open(m.LogPath(id))
	if err != nil {
		return nil, notFound(id)
	}
	defer file.Close()

	records, err := readLog(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read session log %s: %w", id, err)
	}
	return generateSessionExcel(records)
}

// readLog 读取日志全部行；容忍列数不一致（进程崩溃可能留下半行）
func readLog(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func generateSessionExcel(records [][]string) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(ExportSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
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

	numeric := map[int]bool{}
	if len(records) > 0 {
		for c, name := range records[0] {
			numeric[c] = numericColumns[name]
		}
	}

	width := 0
	for r, record := range records {
		if len(record) > width {
			width = len(record)
		}
		for c, value := range record {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(ExportSheetName, cell, cellValue(r > 0 && numeric[c], value)); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			if r == 0 {
				if err := f.SetCellStyle(ExportSheetName, cell, cell, headerStyle); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to set header style: %w", err)
				}
			}
		}
	}

	for i := 0; i < width; i++ {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		w := 14.0
		if i == 0 {
			w = 26 // Timestamp
		}
		if err := f.SetColWidth(ExportSheetName, col, col, w); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(ExportSheetName, &excelize.Panes{
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

var numericColumns = map[string]bool{
	"Accel_X": true, "Accel_Y": true, "Accel_Z": true,
	"Temperature": true, "Humidity": true, "CO2": true, "TVOC": true,
}

// cellValue 数值列写成数值单元格，标识列（如 "001"）保持文本
func cellValue(numeric bool, value string) interface{} {
	if !numeric {
		return value
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	return value
}
