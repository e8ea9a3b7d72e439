package models

import (
	"encoding/json"
	"strconv"
)

// Sport is the activity kind Komoot records for a tour.
//
// Values mirror Komoot's sport identifiers. Unknown identifiers decode to [SportOther].
type Sport string

const (
	SportHike                 Sport = "hike"
	SportMountaineering       Sport = "mountaineering"
	SportMountainBike         Sport = "mtb"
	SportMountainBikeEasy     Sport = "mtb_easy"
	SportMountainBikeAdvanced Sport = "mtb_advanced"
	SportEMountainBike        Sport = "e_mtb"
	SportRaceBike             Sport = "racebike"
	SportERaceBike            Sport = "e_racebike"
	SportTouringBike          Sport = "touringbicycle"
	SportETouringBike         Sport = "e_touringbicycle"
	SportCityBike             Sport = "citybike"
	SportJogging              Sport = "jogging"
	SportOther                Sport = "other"
)

// Strava activity types produced by [Sport.ActivityType].
const (
	ActivityHike = "hike"
	ActivityRide = "ride"
)

var knownSports = map[Sport]struct{}{
	SportHike:                 {},
	SportMountaineering:       {},
	SportMountainBike:         {},
	SportMountainBikeEasy:     {},
	SportMountainBikeAdvanced: {},
	SportEMountainBike:        {},
	SportRaceBike:             {},
	SportERaceBike:            {},
	SportTouringBike:          {},
	SportETouringBike:         {},
	SportCityBike:             {},
	SportJogging:              {},
	SportOther:                {},
}

// Sports returns every enumerated sport, including [SportOther].
func Sports() []Sport {
	return []Sport{
		SportHike, SportMountaineering, SportMountainBike, SportMountainBikeEasy,
		SportMountainBikeAdvanced, SportEMountainBike, SportRaceBike, SportERaceBike,
		SportTouringBike, SportETouringBike, SportCityBike, SportJogging, SportOther,
	}
}

// ParseSport converts a Komoot sport identifier into a [Sport].
func ParseSport(s string) Sport {
	if _, ok := knownSports[Sport(s)]; ok {
		return Sport(s)
	}
	return SportOther
}

// UnmarshalJSON decodes a sport identifier without ever failing on unknown values.
func (s *Sport) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = SportOther
		return nil
	}
	*s = ParseSport(raw)
	return nil
}

// ActivityType maps the sport onto Strava's activity vocabulary.
func (s Sport) ActivityType() string {
	if s == SportHike {
		return ActivityHike
	}
	return ActivityRide
}

func (s Sport) String() string { return string(s) }

// Tour is a recorded tour as listed by Komoot.
type Tour struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Type   string `json:"type"`
	Date   string `json:"date"`
	Sport  Sport  `json:"sport"`
}

// ExternalID is the identifier Strava stores for de-duplication: the tour id in decimal.
func (t Tour) ExternalID() string {
	return strconv.FormatUint(uint64(t.ID), 10)
}

// TourPage is one page of a tour listing.
//
// TotalPages is the count reported with this page; only the value seen on page 0 is authoritative.
type TourPage struct {
	Index      int
	TotalPages int
	Tours      []Tour
}
