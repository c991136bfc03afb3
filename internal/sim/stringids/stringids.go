// Package stringids holds the user-facing message identifiers that game
// commands leave in their error slot. Clients localise them.
package stringids

type ID string

const (
	Empty ID = ""

	TrackRoadUnsuitableForStation  ID = "track_road_unsuitable_for_station"
	TooManyObjectsInGame           ID = "too_many_objects_in_game"
	NoTrackPresent                 ID = "no_track_present"
	StationInTheWay                ID = "station_in_the_way"
	OwnedByAnotherCompany          ID = "owned_by_another_company"
	StationTooLarge                ID = "station_too_large"
	StationTooSpreadOut            ID = "station_too_spread_out"
	SignalInTheWay                 ID = "signal_in_the_way"
	LevelCrossingInTheWay          ID = "level_crossing_in_the_way"
	StationCannotBeBuiltOnJunction ID = "station_cannot_be_built_on_a_junction"
	TooManyStationsInGame          ID = "too_many_stations_in_game"
	UnknownObject                  ID = "unknown_object"
	NotEnoughCash                  ID = "not_enough_cash_requires"

	// Clearance collisions.
	OffEdgeOfMap     ID = "off_edge_of_map"
	TooHigh          ID = "too_high"
	TrackInTheWay    ID = "track_in_the_way"
	BuildingInTheWay ID = "building_in_the_way"
	RaiseOrLowerLand ID = "raise_or_lower_land_first"
	ObjectInTheWay   ID = "object_in_the_way"
)
