package placement

import (
	"fmt"

	"stationworks.ai/internal/sim/stringids"
)

type Code string

const (
	CodeIncompatiblePiece     Code = "incompatible_piece"
	CodeOutOfSpace            Code = "out_of_space"
	CodeNoTrackPresent        Code = "no_track_present"
	CodeStationInTheWay       Code = "station_in_the_way"
	CodePermission            Code = "permission"
	CodeStationTooLarge       Code = "station_too_large"
	CodeStationTooSpreadOut   Code = "station_too_spread_out"
	CodeSignalInTheWay        Code = "signal_in_the_way"
	CodeLevelCrossingInTheWay Code = "level_crossing_in_the_way"
	CodeJunction              Code = "junction"
	CodeClearance             Code = "clearance"
	CodeGhostConflict         Code = "ghost_conflict"
	CodeUnknownObject         Code = "unknown_object"
	CodeTooManyStations       Code = "too_many_stations"
)

// Error is a placement failure. Sentinels below match any Error with the
// same Code under errors.Is; the Message may differ (clearance failures
// name the obstacle).
type Error struct {
	Code    Code
	Message stringids.ID
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Message != stringids.Empty {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) MessageID() stringids.ID { return e.Message }
func (e *Error) Unwrap() error           { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrIncompatiblePiece     = &Error{Code: CodeIncompatiblePiece, Message: stringids.TrackRoadUnsuitableForStation}
	ErrOutOfSpace            = &Error{Code: CodeOutOfSpace, Message: stringids.TooManyObjectsInGame}
	ErrNoTrackPresent        = &Error{Code: CodeNoTrackPresent, Message: stringids.NoTrackPresent}
	ErrStationInTheWay       = &Error{Code: CodeStationInTheWay, Message: stringids.StationInTheWay}
	ErrPermission            = &Error{Code: CodePermission, Message: stringids.OwnedByAnotherCompany}
	ErrStationTooLarge       = &Error{Code: CodeStationTooLarge, Message: stringids.StationTooLarge}
	ErrStationTooSpreadOut   = &Error{Code: CodeStationTooSpreadOut, Message: stringids.StationTooSpreadOut}
	ErrSignalInTheWay        = &Error{Code: CodeSignalInTheWay, Message: stringids.SignalInTheWay}
	ErrLevelCrossingInTheWay = &Error{Code: CodeLevelCrossingInTheWay, Message: stringids.LevelCrossingInTheWay}
	ErrJunction              = &Error{Code: CodeJunction, Message: stringids.StationCannotBeBuiltOnJunction}
	ErrClearance             = &Error{Code: CodeClearance, Message: stringids.ObjectInTheWay}
	ErrGhostConflict         = &Error{Code: CodeGhostConflict, Message: stringids.Empty}
	ErrUnknownObject         = &Error{Code: CodeUnknownObject, Message: stringids.UnknownObject}
	ErrTooManyStations       = &Error{Code: CodeTooManyStations, Message: stringids.TooManyStationsInGame}
)
