package usecase

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

const sampleCSV = "Equipment Name,Type,Flowrate,Pressure,Temperature\n" +
	"Reactor-1,Reactor,120.5,5.2,110\n" +
	"Pump-1,Pump,45.2,3.1,40\n" +
	"HX-1,Heat Exchanger,210.0,4.8,95.5\n" +
	"Valve-1,Valve,15.0,2.0,30\n"

func TestParseValidUpload(t *testing.T) {
	t.Parallel()

	rows, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Parse() len = %d, want 4", len(rows))
	}

	want := entity.EquipmentRow{Name: "HX-1", Category: "Heat Exchanger", Flowrate: 210, Pressure: 4.8, Temperature: 95.5}
	if !reflect.DeepEqual(rows[2], want) {
		t.Fatalf("Parse() row = %+v, want %+v", rows[2], want)
	}
}

func TestParseReorderedAndExtraColumns(t *testing.T) {
	t.Parallel()

	csv := "Temperature, Notes ,Flowrate,Type,Pressure,Equipment Name\n" +
		"30,spare,15,Valve,2,Valve-1\n"

	rows, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	want := entity.EquipmentRow{Name: "Valve-1", Category: "Valve", Flowrate: 15, Pressure: 2, Temperature: 30}
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("Parse() = %+v, want [%+v]", rows, want)
	}
}

func TestParseDelimiters(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"semicolon": "Equipment Name;Type;Flowrate;Pressure;Temperature\nP;Pump;1.5;2;3\n",
		"tab":       "Equipment Name\tType\tFlowrate\tPressure\tTemperature\nP\tPump\t1.5\t2\t3\n",
		"bom":       "\xEF\xBB\xBFEquipment Name,Type,Flowrate,Pressure,Temperature\nP,Pump,1.5,2,3\n",
		"quoted":    "\"Equipment Name\",Type,Flowrate,Pressure,Temperature\n\"P, north\",Pump,1.5,2,3\n",
	}

	for name, csv := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := Parse(strings.NewReader(csv))
			if err != nil {
				t.Fatalf("Parse() err = %v", err)
			}
			if len(rows) != 1 || rows[0].Flowrate != 1.5 || rows[0].Category != "Pump" {
				t.Fatalf("Parse() = %+v", rows)
			}
		})
	}
}

func TestParseMissingColumns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		header  string
		missing []string
	}{
		{"one", "Equipment Name,Type,Flowrate,Temperature", []string{"Pressure"}},
		{"case sensitive", "equipment name,Type,flowrate,Pressure,Temperature", []string{"Equipment Name", "Flowrate"}},
		{"all", "a,b,c", entity.RequiredColumns()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.header + "\n1,2,3,4,5\n"))

			var schemaErr *entity.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("Parse() err = %v, want SchemaError", err)
			}
			if !reflect.DeepEqual(schemaErr.Missing, tc.missing) {
				t.Fatalf("Missing = %v, want %v", schemaErr.Missing, tc.missing)
			}
		})
	}
}

func TestParseRejectsBadNumbers(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"abc", "", "NaN", "Inf", "-inf", "1e400"} {
		csv := "Equipment Name,Type,Flowrate,Pressure,Temperature\n" +
			"P,Pump,1,2,3\n" +
			"Q,Pump,4," + bad + ",6\n"

		_, err := Parse(strings.NewReader(csv))

		var valueErr *entity.ValueError
		if !errors.As(err, &valueErr) {
			t.Fatalf("Parse(%q) err = %v, want ValueError", bad, err)
		}
		if valueErr.Line != 3 || valueErr.Column != entity.ColumnPressure || valueErr.Value != bad {
			t.Fatalf("Parse(%q) ValueError = %+v", bad, valueErr)
		}
	}
}

func TestParseShortRecordIsFormatError(t *testing.T) {
	t.Parallel()

	csv := "Equipment Name,Type,Flowrate,Pressure,Temperature\nP,Pump,1\n"
	_, err := Parse(strings.NewReader(csv))

	var formatErr *entity.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Parse() err = %v, want FormatError", err)
	}
}

func TestParseBrokenQuotingIsFormatError(t *testing.T) {
	t.Parallel()

	csv := "Equipment Name,Type,Flowrate,Pressure,Temperature\n\"P,Pump,1,2,3\n"
	_, err := Parse(strings.NewReader(csv))

	var formatErr *entity.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Parse() err = %v, want FormatError", err)
	}
}

func TestParseEmptyInputs(t *testing.T) {
	t.Parallel()

	for _, csv := range []string{"", "  \n", "Equipment Name,Type,Flowrate,Pressure,Temperature\n"} {
		rows, err := Parse(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("Parse(%q) err = %v", csv, err)
		}
		if len(rows) != 0 {
			t.Fatalf("Parse(%q) len = %d, want 0", csv, len(rows))
		}
	}
}

func TestSummarizeMatchesReferenceMean(t *testing.T) {
	t.Parallel()

	rows, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}

	summary, err := Summarize(rows)
	if err != nil {
		t.Fatalf("Summarize() err = %v", err)
	}

	if summary.RowCount != 4 {
		t.Fatalf("RowCount = %d, want 4", summary.RowCount)
	}
	if math.Abs(summary.MeanFlowrate-97.675) > 1e-9 {
		t.Fatalf("MeanFlowrate = %v, want 97.675", summary.MeanFlowrate)
	}

	var pressure float64
	for _, p := range []float64{5.2, 3.1, 4.8, 2.0} {
		pressure += p
	}
	if summary.MeanPressure != pressure/4 {
		t.Fatalf("MeanPressure = %v, want %v", summary.MeanPressure, pressure/4)
	}

	want := map[string]int{"Reactor": 1, "Pump": 1, "Heat Exchanger": 1, "Valve": 1}
	if !reflect.DeepEqual(summary.DistributionByType, want) {
		t.Fatalf("DistributionByType = %v, want %v", summary.DistributionByType, want)
	}
}

func TestSummarizeDistributionSumsToRowCount(t *testing.T) {
	t.Parallel()

	rows := entity.RowSet{
		{Category: "Pump", Flowrate: 1},
		{Category: "Pump", Flowrate: 2},
		{Category: "Valve", Flowrate: 3},
	}

	summary, err := Summarize(rows)
	if err != nil {
		t.Fatalf("Summarize() err = %v", err)
	}

	total := 0
	for _, n := range summary.DistributionByType {
		total += n
	}
	if total != summary.RowCount || summary.DistributionByType["Pump"] != 2 {
		t.Fatalf("unexpected distribution %v", summary.DistributionByType)
	}
	if summary.MeanFlowrate != 2 {
		t.Fatalf("MeanFlowrate = %v, want 2", summary.MeanFlowrate)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	summary, err := Summarize(entity.RowSet{})
	if !errors.Is(err, entity.ErrEmptyInput) {
		t.Fatalf("Summarize() err = %v, want ErrEmptyInput", err)
	}
	if !reflect.DeepEqual(summary, entity.Summary{}) {
		t.Fatalf("Summarize() returned a summary for empty input: %+v", summary)
	}
}
