package opensky

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/pkg/utils"
)

// Slot positions of a state vector row
const (
	slotIcao24 = iota
	slotCallsign
	slotOriginCountry
	slotTimePosition
	slotLastContact
	slotLongitude
	slotLatitude
	slotBaroAltitude
	slotOnGround
	slotVelocity
	slotTrueTrack
	slotVerticalRate
	slotSensors
	slotGeoAltitude
	slotSquawk
	slotSPI
	slotPositionSource
	slotCategory

	stateVectorSlots
)

// StatesResponse is the body of GET /states/all
type StatesResponse struct {
	Time   int64           `json:"time"`
	States json.RawMessage `json:"states"`
}

// StateVector is one decoded row. Every field is nil when its slot is
// missing, null, or holds a value of the wrong type.
type StateVector struct {
	Icao24         *string
	Callsign       *string
	OriginCountry  *string
	TimePosition   *int64
	LastContact    *int64
	Longitude      *float64
	Latitude       *float64
	BaroAltitude   *float64
	OnGround       *bool
	Velocity       *float64
	TrueTrack      *float64
	VerticalRate   *float64
	Sensors        []int
	GeoAltitude    *float64
	Squawk         *string
	SPI            *bool
	PositionSource *int
	Category       *int
}

// StateVectors decodes the states array. A missing, null or non-array
// states value yields no vectors; rows that are not arrays are skipped.
func (r *StatesResponse) StateVectors() []StateVector {
	raw := bytes.TrimSpace(r.States)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil
	}

	vectors := make([]StateVector, 0, len(rows))
	for _, row := range rows {
		if sv, ok := DecodeStateVector(row); ok {
			vectors = append(vectors, sv)
		}
	}
	return vectors
}

// DecodeStateVector decodes one positional row. It reports false only when
// the row is not a JSON array; short rows and mistyped slots are tolerated.
func DecodeStateVector(row json.RawMessage) (StateVector, bool) {
	dec := json.NewDecoder(bytes.NewReader(row))
	dec.UseNumber()

	var slots []interface{}
	if err := dec.Decode(&slots); err != nil {
		return StateVector{}, false
	}

	return StateVector{
		Icao24:         stringAt(slots, slotIcao24),
		Callsign:       stringAt(slots, slotCallsign),
		OriginCountry:  stringAt(slots, slotOriginCountry),
		TimePosition:   int64At(slots, slotTimePosition),
		LastContact:    int64At(slots, slotLastContact),
		Longitude:      floatAt(slots, slotLongitude),
		Latitude:       floatAt(slots, slotLatitude),
		BaroAltitude:   floatAt(slots, slotBaroAltitude),
		OnGround:       boolAt(slots, slotOnGround),
		Velocity:       floatAt(slots, slotVelocity),
		TrueTrack:      floatAt(slots, slotTrueTrack),
		VerticalRate:   floatAt(slots, slotVerticalRate),
		Sensors:        intsAt(slots, slotSensors),
		GeoAltitude:    floatAt(slots, slotGeoAltitude),
		Squawk:         stringAt(slots, slotSquawk),
		SPI:            boolAt(slots, slotSPI),
		PositionSource: intAt(slots, slotPositionSource),
		Category:       intAt(slots, slotCategory),
	}, true
}

// Airborne reports whether the vector has a position and is not on the ground
func (sv StateVector) Airborne() bool {
	return sv.Latitude != nil && sv.Longitude != nil && !(sv.OnGround != nil && *sv.OnGround)
}

// ToFlight maps the vector to a Flight. Callers check Airborne first.
func (sv StateVector) ToFlight() entity.Flight {
	flight := entity.Flight{
		FlightNumber: identifier(sv),
		Icao24:       deref(sv.Icao24),
		Airline:      deref(sv.OriginCountry),
		Velocity:     sv.Velocity,
		Direction:    sv.TrueTrack,
		VerticalRate: sv.VerticalRate,
		Squawk:       sv.Squawk,
		OnGround:     sv.OnGround != nil && *sv.OnGround,
		FlightStatus: entity.FlightStatusInFlight,
		Category:     sv.Category,
	}
	if flight.OnGround {
		flight.FlightStatus = entity.FlightStatusOnGround
	}
	if sv.Latitude != nil {
		flight.Latitude = *sv.Latitude
	}
	if sv.Longitude != nil {
		flight.Longitude = *sv.Longitude
	}
	flight.Altitude = sv.GeoAltitude
	if flight.Altitude == nil {
		flight.Altitude = sv.BaroAltitude
	}
	flight.CategoryDescription = utils.CategoryShort(sv.Category)
	return flight
}

// identifier prefers the trimmed callsign and falls back to the ICAO24 address
func identifier(sv StateVector) string {
	if sv.Callsign != nil {
		if cs := strings.TrimSpace(*sv.Callsign); cs != "" {
			return cs
		}
	}
	return strings.TrimSpace(deref(sv.Icao24))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func slotAt(slots []interface{}, i int) interface{} {
	if i >= len(slots) {
		return nil
	}
	return slots[i]
}

func stringAt(slots []interface{}, i int) *string {
	if s, ok := slotAt(slots, i).(string); ok {
		return &s
	}
	return nil
}

func floatAt(slots []interface{}, i int) *float64 {
	n, ok := slotAt(slots, i).(json.Number)
	if !ok {
		return nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func int64At(slots []interface{}, i int) *int64 {
	n, ok := slotAt(slots, i).(json.Number)
	if !ok {
		return nil
	}
	v, ok := integral(n)
	if !ok {
		return nil
	}
	return &v
}

func intAt(slots []interface{}, i int) *int {
	v := int64At(slots, i)
	if v == nil || *v > math.MaxInt32 || *v < math.MinInt32 {
		return nil
	}
	iv := int(*v)
	return &iv
}

func boolAt(slots []interface{}, i int) *bool {
	if b, ok := slotAt(slots, i).(bool); ok {
		return &b
	}
	return nil
}

func intsAt(slots []interface{}, i int) []int {
	list, ok := slotAt(slots, i).([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		n, ok := item.(json.Number)
		if !ok {
			continue
		}
		if v, ok := integral(n); ok {
			out = append(out, int(v))
		}
	}
	return out
}

// integral accepts integer literals and floats with no fractional part
func integral(n json.Number) (int64, bool) {
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}
