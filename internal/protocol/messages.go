package protocol

import (
	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/sim/placement"
	"stationworks.ai/internal/sim/stations"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/viewport"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type              string     `json:"type"`
	ProtocolVersion   string     `json:"protocol_version"`
	SupportedVersions []string   `json:"supported_versions,omitempty"`
	ClientName        string     `json:"client_name"`
	Company           company.ID `json:"company"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Company         company.ID     `json:"company"`
	CompanyName     string         `json:"company_name"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz int  `json:"tick_rate_hz"`
	MonthTicks int  `json:"month_ticks"`
	SizeX      int  `json:"size_x"`
	SizeY      int  `json:"size_y"`
	EditorMode bool `json:"editor_mode,omitempty"`
}

type CatalogDigests struct {
	TrackObjects   DigestRef `json:"track_objects"`
	StationObjects DigestRef `json:"station_objects"`
	TrackPieces    DigestRef `json:"track_pieces"`
	TuningDigest   string    `json:"tuning_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// PLACE_STATION (client -> server)
type PlaceStationMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	RequestID       string     `json:"request_id,omitempty"`
	Pos             tiles.Pos3 `json:"pos"`
	Rotation        uint8      `json:"rotation"`
	TrackObjectID   uint8      `json:"track_object_id"`
	TrackID         uint8      `json:"track_id"`
	Index           uint8      `json:"index"`
	StationObjectID uint8      `json:"station_object_id"`
	Flags           []string   `json:"flags,omitempty"`
}

func (m PlaceStationMsg) Request() placement.Request {
	return placement.Request{
		Pos:             m.Pos,
		Rotation:        m.Rotation,
		TrackObjectID:   m.TrackObjectID,
		TrackID:         m.TrackID,
		Index:           m.Index,
		StationObjectID: m.StationObjectID,
	}
}

func (m PlaceStationMsg) CommandFlags() (commands.Flags, error) {
	return commands.ParseFlags(m.Flags)
}

// RESULT (server -> client), one per PLACE_STATION.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	Tick            uint64 `json:"tick"`
	OK              bool   `json:"ok"`

	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`

	Cost           int64                `json:"cost"`
	Charged        bool                 `json:"charged"`
	Station        *stations.ID         `json:"station,omitempty"`
	NewStation     bool                 `json:"new_station,omitempty"`
	NewStationTile bool                 `json:"new_station_tile,omitempty"`
	Adjoining      *placement.Adjoining `json:"adjoining,omitempty"`
	Position       *tiles.Pos3          `json:"position,omitempty"`
	Dirty          *viewport.Dirty      `json:"dirty,omitempty"`
}

func NewResult(resp game.CommandResponse) ResultMsg {
	res := resp.Result
	out := resp.Outcome
	m := ResultMsg{
		Type:            TypeResult,
		ProtocolVersion: Version,
		RequestID:       resp.ID,
		Tick:            resp.Tick,
		OK:              res.OK(),
		Cost:            res.Cost,
		Charged:         res.Charged,
		NewStation:      out.NewStation,
		NewStationTile:  out.NewStationTile,
	}
	if res.HasPosition {
		p := res.Position
		m.Position = &p
	}
	if !res.OK() {
		m.Code, m.Reason = CodeFor(res.Err)
		m.Message = string(res.ErrorText)
		m.Detail = res.Err.Error()
		return m
	}
	if out.Station != stations.Null {
		id := out.Station
		m.Station = &id
	}
	if out.Adjoining.Valid {
		adj := out.Adjoining
		m.Adjoining = &adj
	}
	if !out.Dirty.Empty() {
		d := out.Dirty
		m.Dirty = &d
	}
	return m
}

// ERROR (server -> client) for messages that never reached the game.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(requestID, code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, RequestID: requestID, Code: code, Message: msg}
}
