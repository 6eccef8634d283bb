package entity

// Flight is one airborne aircraft returned by the telemetry provider.
// It only lives as long as the event it is carried in.
type Flight struct {
	FlightNumber        string   `bson:"flightNumber" json:"flightNumber"`
	Icao24              string   `bson:"icao24" json:"icao24"`
	Airline             string   `bson:"airline" json:"airline"`
	Latitude            float64  `bson:"latitude" json:"latitude"`
	Longitude           float64  `bson:"longitude" json:"longitude"`
	Altitude            *float64 `bson:"altitude,omitempty" json:"altitude,omitempty"`
	Velocity            *float64 `bson:"velocity,omitempty" json:"velocity,omitempty"`
	Direction           *float64 `bson:"direction,omitempty" json:"direction,omitempty"`
	VerticalRate        *float64 `bson:"verticalRate,omitempty" json:"verticalRate,omitempty"`
	Squawk              *string  `bson:"squawk,omitempty" json:"squawk,omitempty"`
	OnGround            bool     `bson:"onGround" json:"onGround"`
	FlightStatus        string   `bson:"flightStatus" json:"flightStatus"`
	Category            *int     `bson:"category,omitempty" json:"category,omitempty"`
	CategoryDescription *string  `bson:"categoryDescription,omitempty" json:"categoryDescription,omitempty"`
}

const (
	FlightStatusInFlight = "in_flight"
	FlightStatusOnGround = "on_ground"
)

// FlightNumbers returns the identifiers of flights in order
func FlightNumbers(flights []Flight) []string {
	numbers := make([]string, 0, len(flights))
	for _, f := range flights {
		numbers = append(numbers, f.FlightNumber)
	}
	return numbers
}
