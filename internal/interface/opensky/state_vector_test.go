package opensky

import (
	"encoding/json"
	"testing"

	"flightwatch-service/internal/domain/entity"
)

func TestDecodeStateVectorFullRow(t *testing.T) {
	row := json.RawMessage(`["abc123","UAL123  ","United States",1700000000,1700000001,-122.4,37.6,10000.5,false,230.1,90.0,-1.5,[1,2],10200.0,"7500",false,0,3]`)

	sv, ok := DecodeStateVector(row)
	if !ok {
		t.Fatal("row not decoded")
	}
	if sv.Icao24 == nil || *sv.Icao24 != "abc123" {
		t.Errorf("Icao24 = %v", sv.Icao24)
	}
	if sv.TimePosition == nil || *sv.TimePosition != 1700000000 {
		t.Errorf("TimePosition = %v", sv.TimePosition)
	}
	if len(sv.Sensors) != 2 {
		t.Errorf("Sensors = %v", sv.Sensors)
	}
	if sv.Category == nil || *sv.Category != 3 {
		t.Errorf("Category = %v", sv.Category)
	}

	f := sv.ToFlight()
	if f.FlightNumber != "UAL123" {
		t.Errorf("FlightNumber = %q, want trimmed callsign", f.FlightNumber)
	}
	if f.Airline != "United States" {
		t.Errorf("Airline = %q", f.Airline)
	}
	if f.Altitude == nil || *f.Altitude != 10200.0 {
		t.Errorf("Altitude = %v, want geometric altitude", f.Altitude)
	}
	if f.Direction == nil || *f.Direction != 90.0 {
		t.Errorf("Direction = %v", f.Direction)
	}
	if f.FlightStatus != entity.FlightStatusInFlight {
		t.Errorf("FlightStatus = %q", f.FlightStatus)
	}
	if f.CategoryDescription == nil || *f.CategoryDescription != "Small" {
		t.Errorf("CategoryDescription = %v", f.CategoryDescription)
	}
}

func TestDecodeStateVectorShortRow(t *testing.T) {
	sv, ok := DecodeStateVector(json.RawMessage(`["abc123",null,"Spain",null,null,2.1,41.3]`))
	if !ok {
		t.Fatal("short row must decode")
	}
	if sv.Callsign != nil || sv.GeoAltitude != nil || sv.Category != nil || sv.OnGround != nil {
		t.Errorf("missing slots must be nil: %+v", sv)
	}
	if !sv.Airborne() {
		t.Error("row with position and unknown on_ground counts as airborne")
	}
	if got := sv.ToFlight().FlightNumber; got != "abc123" {
		t.Errorf("FlightNumber = %q, want icao24 fallback", got)
	}
}

func TestDecodeStateVectorMismatchedTypes(t *testing.T) {
	row := json.RawMessage(`[42,"CALL","X","soon",null,"west",true,null,"no",null,null,null,"none",null,7700,null,null,1.5]`)

	sv, ok := DecodeStateVector(row)
	if !ok {
		t.Fatal("row must decode")
	}
	if sv.Icao24 != nil {
		t.Errorf("numeric icao24 must decode to nil, got %q", *sv.Icao24)
	}
	if sv.TimePosition != nil || sv.Longitude != nil || sv.Latitude != nil {
		t.Error("mistyped numeric slots must be nil")
	}
	if sv.OnGround != nil || sv.Squawk != nil || sv.Sensors != nil || sv.Category != nil {
		t.Errorf("mistyped slots must be nil: %+v", sv)
	}
	if sv.Airborne() {
		t.Error("row without position is not airborne")
	}
}

func TestToFlightFallsBackToBarometricAltitude(t *testing.T) {
	sv, _ := DecodeStateVector(json.RawMessage(`["a1","  ","C",null,null,1,2,3500,false,null,null,null,null,null]`))
	f := sv.ToFlight()
	if f.Altitude == nil || *f.Altitude != 3500 {
		t.Errorf("Altitude = %v, want barometric fallback", f.Altitude)
	}
	if f.FlightNumber != "a1" {
		t.Errorf("blank callsign must fall back to icao24, got %q", f.FlightNumber)
	}
}

func TestStateVectorsToleratesMissingStates(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"null states", `{"time":1,"states":null}`, 0},
		{"missing states", `{"time":1}`, 0},
		{"object states", `{"time":1,"states":{"a":1}}`, 0},
		{"non-array rows skipped", `{"time":1,"states":[["a"],"junk",7,["b"]]}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp StatesResponse
			if err := json.Unmarshal([]byte(tt.body), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := len(resp.StateVectors()); got != tt.want {
				t.Errorf("vectors = %d, want %d", got, tt.want)
			}
		})
	}
}
