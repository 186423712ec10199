package stands

import "encoding/json"

// AircraftData is one feed record. Extra carries any feed fields outside the
// fixed schema (flight plan, transponder, ...).
type AircraftData struct {
	Callsign    string         `json:"callsign"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Altitude    float64        `json:"altitude"`    // feet
	Groundspeed float64        `json:"groundspeed"` // knots
	Extra       map[string]any `json:"extra,omitempty"`
}

// Aircraft is a candidate aircraft for one cycle and the stand it was matched to
type Aircraft struct {
	AircraftData
	standKey string
}

// StandKey returns the name of the stand the aircraft was matched to, or ""
func (a *Aircraft) StandKey() string { return a.standKey }

// OnStand reports whether the aircraft was matched to a stand
func (a *Aircraft) OnStand() bool { return a.standKey != "" }

// Field looks up a feed field by name. Schema fields are always present; other
// names come from Extra and report false when the feed did not supply them.
func (a *Aircraft) Field(name string) (any, bool) {
	switch name {
	case "callsign":
		return a.Callsign, true
	case "latitude":
		return a.Latitude, true
	case "longitude":
		return a.Longitude, true
	case "altitude":
		return a.Altitude, true
	case "groundspeed":
		return a.Groundspeed, true
	}
	v, ok := a.Extra[name]
	return v, ok
}

// StandLookup resolves stands by name
type StandLookup interface {
	Stand(name string) (Stand, bool)
}

// Stand resolves the matched stand through the given registry
func (a *Aircraft) Stand(stands StandLookup) (Stand, bool) {
	if a.standKey == "" {
		return Stand{}, false
	}
	return stands.Stand(a.standKey)
}

type aircraftJSON struct {
	AircraftData
	Stand string `json:"stand,omitempty"`
}

// MarshalJSON renders the feed record with the matched stand
func (a Aircraft) MarshalJSON() ([]byte, error) {
	return json.Marshal(aircraftJSON{AircraftData: a.AircraftData, Stand: a.standKey})
}
