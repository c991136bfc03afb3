package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed defaults/*.json
var defaultFS embed.FS

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	trackObjectsFile   = "track_objects.json"
	stationObjectsFile = "station_objects.json"
	trackPiecesFile    = "track_pieces.json"
)

// Track piece traits. A piece's CompatibleFlags lists the traits a
// station must support to sit on it.
const (
	TraitDiagonal uint16 = 1 << iota
	TraitLargeCurve
	TraitNormalCurve
	TraitSmallCurve
	TraitVerySmallCurve
	TraitSlope
	TraitSteepSlope
	TraitOneSided
	TraitSlopedCurve
	TraitSBend
	TraitJunction
)

type Catalogs struct {
	TrackObjects   TrackObjectCatalog
	StationObjects StationObjectCatalog
	TrackPieces    TrackPieceCatalog
}

type TrackObjectCatalog struct {
	ByID   map[uint8]TrackObject
	Digest string
}

type TrackObject struct {
	ID                 uint8  `json:"id"`
	Name               string `json:"name"`
	StationTrackPieces uint16 `json:"station_track_pieces"`
}

type StationObjectCatalog struct {
	ByID   map[uint8]StationObject
	Digest string
}

type StationObject struct {
	ID              uint8  `json:"id"`
	Name            string `json:"name"`
	TrackPieces     uint16 `json:"track_pieces"`
	BuildCostFactor int16  `json:"build_cost_factor"`
	SellCostFactor  int16  `json:"sell_cost_factor"`
	CostIndex       uint8  `json:"cost_index"`
	Height          int    `json:"height"` // world units
}

type TrackPieceCatalog struct {
	ByID   map[uint8]TrackPiece
	Digest string
}

type TrackPiece struct {
	ID              uint8     `json:"id"`
	Name            string    `json:"name"`
	CompatibleFlags uint16    `json:"compatible_flags"`
	CostFactor      int64     `json:"cost_factor"`
	Segments        []Segment `json:"segments"`
}

// Segment is one tile of a track piece, relative to segment 0 at rotation 0.
type Segment struct {
	Index        uint8    `json:"index"`
	X            int      `json:"x"`
	Y            int      `json:"y"`
	Z            int      `json:"z"`
	ClearZ       int      `json:"clear_z"`
	ConnectFlags [4]uint8 `json:"connect_flags"`
	Quarter      uint8    `json:"quarter"`
}

// Default returns the catalogs compiled into the binary.
func Default() (*Catalogs, error) {
	sub, err := fs.Sub(defaultFS, "defaults")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// Load reads the catalogs from a config directory.
func Load(configDir string) (*Catalogs, error) {
	return LoadFS(os.DirFS(configDir))
}

func LoadFS(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs
	if err := loadTrackObjects(fsys, &c.TrackObjects); err != nil {
		return nil, err
	}
	if err := loadStationObjects(fsys, &c.StationObjects); err != nil {
		return nil, err
	}
	if err := loadTrackPieces(fsys, &c.TrackPieces); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogs) TrackObject(id uint8) (TrackObject, bool) {
	o, ok := c.TrackObjects.ByID[id]
	return o, ok
}

func (c *Catalogs) StationObject(id uint8) (StationObject, bool) {
	o, ok := c.StationObjects.ByID[id]
	return o, ok
}

func (c *Catalogs) TrackPiece(id uint8) (TrackPiece, bool) {
	p, ok := c.TrackPieces.ByID[id]
	return p, ok
}

// Segment returns segment i of a piece. The boolean is false when out of range.
func (p TrackPiece) Segment(i uint8) (Segment, bool) {
	if int(i) >= len(p.Segments) {
		return Segment{}, false
	}
	return p.Segments[i], true
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// readValidated reads name from fsys and checks it against its schema.
func readValidated(fsys fs.FS, name string) ([]byte, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	schemaName := name[:len(name)-len(".json")] + ".schema.json"
	schemaRaw, err := schemaFS.ReadFile("schemas/" + schemaName)
	if err != nil {
		return nil, fmt.Errorf("%s: schema: %w", name, err)
	}
	schema, err := jsonschema.CompileString(schemaName, string(schemaRaw))
	if err != nil {
		return nil, fmt.Errorf("%s: compile schema: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return raw, nil
}

func loadTrackObjects(fsys fs.FS, out *TrackObjectCatalog) error {
	raw, err := readValidated(fsys, trackObjectsFile)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []TrackObject
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", trackObjectsFile, err)
	}
	out.ByID = make(map[uint8]TrackObject, len(defs))
	for _, d := range defs {
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %d", trackObjectsFile, d.ID)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadStationObjects(fsys fs.FS, out *StationObjectCatalog) error {
	raw, err := readValidated(fsys, stationObjectsFile)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []StationObject
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", stationObjectsFile, err)
	}
	out.ByID = make(map[uint8]StationObject, len(defs))
	for _, d := range defs {
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %d", stationObjectsFile, d.ID)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadTrackPieces(fsys fs.FS, out *TrackPieceCatalog) error {
	raw, err := readValidated(fsys, trackPiecesFile)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []TrackPiece
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", trackPiecesFile, err)
	}
	out.ByID = make(map[uint8]TrackPiece, len(defs))
	for _, d := range defs {
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %d", trackPiecesFile, d.ID)
		}
		// Placement walks segments in catalog order and addresses them by index.
		for i, s := range d.Segments {
			if int(s.Index) != i {
				return fmt.Errorf("%s: piece %d: segment %d has index %d", trackPiecesFile, d.ID, i, s.Index)
			}
		}
		out.ByID[d.ID] = d
	}
	return nil
}

// PieceIDs returns the known track piece ids in ascending order.
func (c *Catalogs) PieceIDs() []uint8 {
	ids := make([]uint8, 0, len(c.TrackPieces.ByID))
	for id := range c.TrackPieces.ByID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
