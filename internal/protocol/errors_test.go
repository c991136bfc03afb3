package protocol

import (
	"errors"
	"fmt"
	"testing"

	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/placement"
	"stationworks.ai/internal/sim/tiles"
)

func TestIsKnownCode(t *testing.T) {
	for c := range knownCodes {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if !IsKnownCode("") {
		t.Fatalf("empty code means success")
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeFor(t *testing.T) {
	blocked := &placement.Error{Code: placement.CodeClearance, Err: &tiles.ClearanceError{}}
	cases := []struct {
		err    error
		code   string
		reason string
	}{
		{nil, "", ""},
		{placement.ErrNoTrackPresent, ErrInvalidTarget, "no_track_present"},
		{fmt.Errorf("wrapped: %w", placement.ErrPermission), ErrNoPermission, "permission"},
		{blocked, ErrBlocked, "clearance"},
		{placement.ErrGhostConflict, ErrConflict, "ghost_conflict"},
		{placement.ErrTooManyStations, ErrNoResource, "too_many_stations"},
		{&commands.CashError{Required: 10, Cash: 1}, ErrNoResource, "not_enough_cash"},
		{commands.ErrUnknownCompany, ErrUnknownCompany, "unknown_company"},
		{errors.New("boom"), ErrInternal, ""},
	}
	for _, tc := range cases {
		code, reason := CodeFor(tc.err)
		if code != tc.code || reason != tc.reason {
			t.Fatalf("%v: got %s/%s want %s/%s", tc.err, code, reason, tc.code, tc.reason)
		}
		if !IsKnownCode(code) {
			t.Fatalf("%v mapped to undeclared code %q", tc.err, code)
		}
	}
	for pc, code := range placementCodes {
		if !IsKnownCode(code) {
			t.Fatalf("%s maps to undeclared code %q", pc, code)
		}
	}
}
