package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"stationworks.ai/internal/protocol"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/tiles"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "bot", "client name")
		companyID = flag.Uint("company", 1, "company to act for")
		x         = flag.Int("x", 64, "target x (world units)")
		y         = flag.Int("y", 64, "target y (world units)")
		z         = flag.Int("z", 0, "target z (world units)")
		rot       = flag.Uint("rot", 0, "rotation 0..3")
		trackObj  = flag.Uint("track_object", 0, "track object id")
		trackID   = flag.Uint("track", 0, "track id within the object")
		stnObj    = flag.Uint("station_object", 0, "station object id")
		queryOnly = flag.Bool("query_only", false, "stop after the cost query")
		ghost     = flag.Bool("ghost", false, "place a ghost station")
		ai        = flag.Bool("ai", false, "plan as an AI company; the query may run ahead of laid track")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Company:         company.ID(*companyID),
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	if typ, err := read(conn, &w); err != nil || typ != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME, got %q: %v", typ, err)
	}
	logger.Printf("WELCOME session=%s company=%d (%s) map=%dx%d tuning=%s",
		w.SessionID, w.Company, w.CompanyName, w.WorldParams.SizeX, w.WorldParams.SizeY, w.Catalogs.TuningDigest)

	place := protocol.PlaceStationMsg{
		Type:            protocol.TypePlaceStation,
		ProtocolVersion: protocol.Version,
		Pos:             tiles.Pos3{X: *x, Y: *y, Z: *z},
		Rotation:        uint8(*rot),
		TrackObjectID:   uint8(*trackObj),
		TrackID:         uint8(*trackID),
		StationObjectID: uint8(*stnObj),
	}

	var base []string
	if *ai {
		base = append(base, "ai_allocated")
	}
	if *ghost {
		base = append(base, "ghost")
	}

	place.RequestID = fmt.Sprintf("q-%d", time.Now().UnixNano())
	place.Flags = base
	q, err := roundTrip(conn, place)
	if err != nil {
		logger.Fatalf("query: %v", err)
	}
	logResult(logger, q)
	if !q.OK || *queryOnly {
		if !q.OK {
			os.Exit(1)
		}
		return
	}

	place.RequestID = fmt.Sprintf("a-%d", time.Now().UnixNano())
	place.Flags = append([]string{"apply"}, base...)
	a, err := roundTrip(conn, place)
	if err != nil {
		logger.Fatalf("apply: %v", err)
	}
	logResult(logger, a)
	if !a.OK {
		os.Exit(1)
	}
}

func roundTrip(conn *websocket.Conn, m protocol.PlaceStationMsg) (protocol.ResultMsg, error) {
	var r protocol.ResultMsg
	if err := conn.WriteJSON(m); err != nil {
		return r, err
	}
	b, typ, err := readRaw(conn)
	if err != nil {
		return r, err
	}
	switch typ {
	case protocol.TypeResult:
		err = json.Unmarshal(b, &r)
		return r, err
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(b, &e)
		return r, fmt.Errorf("%s: %s", e.Code, e.Message)
	default:
		return r, fmt.Errorf("unexpected message %q", typ)
	}
}

func read(conn *websocket.Conn, v any) (string, error) {
	b, typ, err := readRaw(conn)
	if err != nil {
		return "", err
	}
	return typ, json.Unmarshal(b, v)
}

func readRaw(conn *websocket.Conn) ([]byte, string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		return nil, "", err
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		return nil, "", err
	}
	return b, base.Type, nil
}

func logResult(logger *log.Logger, r protocol.ResultMsg) {
	if !r.OK {
		logger.Printf("RESULT %s failed code=%s reason=%s message=%s detail=%q", r.RequestID, r.Code, r.Reason, r.Message, r.Detail)
		return
	}
	station := "-"
	if r.Station != nil {
		station = fmt.Sprint(*r.Station)
	}
	logger.Printf("RESULT %s ok tick=%d cost=%d charged=%v station=%s new=%v", r.RequestID, r.Tick, r.Cost, r.Charged, station, r.NewStation)
}
