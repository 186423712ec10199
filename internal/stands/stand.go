package stands

import "encoding/json"

// StandData is one row of a stand source: a name and a decimal position
type StandData struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Stand is a parking position and its occupancy for the latest cycle.
// Values returned by Status are snapshots and safe to keep.
type Stand struct {
	name      string
	latitude  float64
	longitude float64
	occupier  *Aircraft
	pattern   *Pattern
}

// Name returns the stand's unique identifier, e.g. "25L"
func (s Stand) Name() string { return s.name }

// Latitude returns the stand latitude in decimal degrees
func (s Stand) Latitude() float64 { return s.latitude }

// Longitude returns the stand longitude in decimal degrees
func (s Stand) Longitude() float64 { return s.longitude }

// Occupier returns the aircraft occupying the stand, or nil
func (s Stand) Occupier() *Aircraft { return s.occupier }

// IsOccupied reports whether an aircraft occupies the stand
func (s Stand) IsOccupied() bool { return s.occupier != nil }

// IsPartOfOccupiedGroup reports whether the stand is occupied only because a
// sibling in its group was matched.
func (s Stand) IsPartOfOccupiedGroup() bool {
	return s.occupier != nil && s.occupier.StandKey() != s.name
}

// Root returns the numeric root of the stand name, or "" when the name does
// not follow the naming template.
func (s Stand) Root() string {
	if s.pattern == nil {
		return ""
	}
	root, _, _ := s.pattern.Match(s.name)
	return root
}

// Extension returns the side extension of the stand name, or "" when absent
func (s Stand) Extension() string {
	if s.pattern == nil {
		return ""
	}
	_, ext, _ := s.pattern.Match(s.name)
	return ext
}

type standJSON struct {
	Name                string    `json:"name"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	Root                string    `json:"root,omitempty"`
	Extension           string    `json:"extension,omitempty"`
	Occupied            bool      `json:"occupied"`
	PartOfOccupiedGroup bool      `json:"part_of_occupied_group"`
	Occupier            *Aircraft `json:"occupier,omitempty"`
}

// MarshalJSON renders the stand with its derived fields
func (s Stand) MarshalJSON() ([]byte, error) {
	return json.Marshal(standJSON{
		Name:                s.name,
		Latitude:            s.latitude,
		Longitude:           s.longitude,
		Root:                s.Root(),
		Extension:           s.Extension(),
		Occupied:            s.IsOccupied(),
		PartOfOccupiedGroup: s.IsPartOfOccupiedGroup(),
		Occupier:            s.occupier,
	})
}
