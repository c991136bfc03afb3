package protocol

import (
	"errors"

	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/placement"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session/routing.
	ErrUnknownCompany = "E_UNKNOWN_COMPANY"
	ErrBusy           = "E_BUSY"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrBlocked       = "E_BLOCKED"
	ErrConflict      = "E_CONFLICT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrUnknownCompany:  {},
	ErrBusy:            {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrNoResource:      {},
	ErrInvalidTarget:   {},
	ErrBlocked:         {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

var placementCodes = map[placement.Code]string{
	placement.CodeIncompatiblePiece:     ErrInvalidTarget,
	placement.CodeNoTrackPresent:        ErrInvalidTarget,
	placement.CodeUnknownObject:         ErrBadRequest,
	placement.CodeStationTooLarge:       ErrInvalidTarget,
	placement.CodeStationTooSpreadOut:   ErrInvalidTarget,
	placement.CodeJunction:              ErrInvalidTarget,
	placement.CodePermission:            ErrNoPermission,
	placement.CodeOutOfSpace:            ErrNoResource,
	placement.CodeTooManyStations:       ErrNoResource,
	placement.CodeStationInTheWay:       ErrBlocked,
	placement.CodeSignalInTheWay:        ErrBlocked,
	placement.CodeLevelCrossingInTheWay: ErrBlocked,
	placement.CodeClearance:             ErrBlocked,
	placement.CodeGhostConflict:         ErrConflict,
}

// CodeFor maps a command error to a wire code and a finer reason string.
func CodeFor(err error) (code, reason string) {
	if err == nil {
		return "", ""
	}
	var pe *placement.Error
	if errors.As(err, &pe) {
		if c, ok := placementCodes[pe.Code]; ok {
			return c, string(pe.Code)
		}
		return ErrInternal, string(pe.Code)
	}
	var ce *commands.CashError
	if errors.As(err, &ce) {
		return ErrNoResource, "not_enough_cash"
	}
	if errors.Is(err, commands.ErrUnknownCompany) {
		return ErrUnknownCompany, "unknown_company"
	}
	return ErrInternal, ""
}
