package usecase

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes an upload into a RowSet.
//
// The first record is the header. Required columns are matched exactly (after
// trimming surrounding whitespace); extra columns are ignored. The first cell
// that is not a finite number rejects the whole upload. An upload without data
// rows yields an empty RowSet.
func Parse(r io.Reader) (entity.RowSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &entity.FormatError{Err: err}
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return entity.RowSet{}, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &entity.FormatError{Err: err}
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	rows := entity.RowSet{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &entity.FormatError{Err: err}
		}

		line, _ := reader.FieldPos(0)
		row, err := parseRecord(record, index, line)
		if err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return rows, nil
}

type columns struct {
	name, category, flowrate, pressure, temperature int
}

func (c columns) max() int {
	return max(c.name, c.category, c.flowrate, c.pressure, c.temperature)
}

func columnIndex(header []string) (columns, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, seen := positions[h]; !seen {
			positions[h] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	c := columns{
		name:        lookup(entity.ColumnName),
		category:    lookup(entity.ColumnType),
		flowrate:    lookup(entity.ColumnFlowrate),
		pressure:    lookup(entity.ColumnPressure),
		temperature: lookup(entity.ColumnTemperature),
	}
	if len(missing) > 0 {
		return columns{}, &entity.SchemaError{Missing: missing}
	}

	return c, nil
}

func parseRecord(record []string, c columns, line int) (entity.EquipmentRow, error) {
	if len(record) <= c.max() {
		return entity.EquipmentRow{}, &entity.FormatError{
			Err: fmt.Errorf("line %d: expected at least %d fields, got %d", line, c.max()+1, len(record)),
		}
	}

	flowrate, err := parseNumber(record[c.flowrate], entity.ColumnFlowrate, line)
	if err != nil {
		return entity.EquipmentRow{}, err
	}

	pressure, err := parseNumber(record[c.pressure], entity.ColumnPressure, line)
	if err != nil {
		return entity.EquipmentRow{}, err
	}

	temperature, err := parseNumber(record[c.temperature], entity.ColumnTemperature, line)
	if err != nil {
		return entity.EquipmentRow{}, err
	}

	return entity.EquipmentRow{
		Name:        strings.TrimSpace(record[c.name]),
		Category:    strings.TrimSpace(record[c.category]),
		Flowrate:    flowrate,
		Pressure:    pressure,
		Temperature: temperature,
	}, nil
}

func parseNumber(raw, column string, line int) (float64, error) {
	value := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &entity.ValueError{Line: line, Column: column, Value: value}
	}
	return f, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and '\t' on the header
// line, preferring ',' on ties.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}

	best, bestCount := ',', bytes.Count(first, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
