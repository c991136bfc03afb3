package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/economy"
	"stationworks.ai/internal/sim/stations"
	"stationworks.ai/internal/sim/tiles"
	"stationworks.ai/internal/sim/track"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`
	MonthTicks int `yaml:"month_ticks"`

	World    World    `yaml:"world"`
	Stations Stations `yaml:"stations"`
	Economy  Economy  `yaml:"economy"`

	Companies     []Company     `yaml:"companies"`
	SeedTracks    []track.Piece `yaml:"seed_tracks"`
	SeedBuildings []Building    `yaml:"seed_buildings"`
}

type World struct {
	SizeX           int  `yaml:"size_x"`
	SizeY           int  `yaml:"size_y"`
	ElementCapacity int  `yaml:"element_capacity"`
	MinFreeElements int  `yaml:"min_free_elements"`
	MaxClearZ       int  `yaml:"max_clear_z"`
	EditorMode      bool `yaml:"editor_mode"`
}

type Stations struct {
	MaxStations  int      `yaml:"max_stations"`
	TileCap      int      `yaml:"tile_cap"`
	MaxSpread    int      `yaml:"max_spread"`
	SearchRadius int      `yaml:"search_radius"`
	Names        []string `yaml:"names"`
}

type Economy struct {
	// Per cost index; missing entries start at the base multiplier.
	Multipliers []int64 `yaml:"multipliers"`
	// Monthly inflation per cost index, per mille.
	InflationPermille []int64 `yaml:"inflation_permille"`
}

type Company struct {
	ID   company.ID `yaml:"id"`
	Name string     `yaml:"name"`
	Cash int64      `yaml:"cash"`
}

type Building struct {
	Pos    tiles.Pos2 `yaml:"pos"`
	BaseZ  int        `yaml:"base_z"`
	ClearZ int        `yaml:"clear_z"`
}

func Defaults() Tuning {
	sc := stations.DefaultConfig()
	return Tuning{
		TickRateHz: 10,
		MonthTicks: 300,
		World: World{
			SizeX:           64,
			SizeY:           64,
			MinFreeElements: 16,
			MaxClearZ:       236,
		},
		Stations: Stations{
			MaxStations:  sc.MaxStations,
			TileCap:      sc.TileCap,
			MaxSpread:    sc.MaxSpread,
			SearchRadius: sc.SearchRadius,
			Names:        sc.Names,
		},
		Economy: Economy{
			InflationPermille: []int64{0, 4, 4, 3, 3, 5, 5, 2},
		},
		Companies: []Company{
			{ID: 1, Name: "Player Rail", Cash: 500_000},
			{ID: 2, Name: "AI Freight", Cash: 500_000},
		},
	}
}

// Load reads a YAML tuning file over the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	}
	if t.MonthTicks <= 0 {
		return fmt.Errorf("month_ticks must be positive, got %d", t.MonthTicks)
	}
	if t.World.SizeX <= 0 || t.World.SizeY <= 0 {
		return fmt.Errorf("world size must be positive, got %dx%d", t.World.SizeX, t.World.SizeY)
	}
	if t.Stations.TileCap <= 0 || t.Stations.SearchRadius < 0 {
		return fmt.Errorf("stations: tile_cap=%d search_radius=%d", t.Stations.TileCap, t.Stations.SearchRadius)
	}
	seen := map[company.ID]bool{}
	for _, c := range t.Companies {
		if c.ID == company.Neutral || c.ID == company.Null {
			return fmt.Errorf("company %q uses reserved id %d", c.Name, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate company id %d", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func (t Tuning) GridConfig() tiles.GridConfig {
	return tiles.GridConfig{
		SizeX:     t.World.SizeX,
		SizeY:     t.World.SizeY,
		Capacity:  t.World.ElementCapacity,
		MinFree:   t.World.MinFreeElements,
		MaxClearZ: t.World.MaxClearZ,
	}
}

func (t Tuning) StationConfig() stations.Config {
	return stations.Config{
		MaxStations:  t.Stations.MaxStations,
		TileCap:      t.Stations.TileCap,
		MaxSpread:    t.Stations.MaxSpread,
		SearchRadius: t.Stations.SearchRadius,
		Names:        append([]string(nil), t.Stations.Names...),
	}
}

// CostModel builds the economy from the multiplier and inflation tables,
// padding the shorter one.
func (t Tuning) CostModel() (*economy.CostModel, error) {
	n := len(t.Economy.Multipliers)
	if len(t.Economy.InflationPermille) > n {
		n = len(t.Economy.InflationPermille)
	}
	if n == 0 {
		n = 1
	}
	mult := make([]int64, n)
	rates := make([]int64, n)
	for i := range mult {
		mult[i] = economy.BaseMultiplier
		if i < len(t.Economy.Multipliers) {
			mult[i] = t.Economy.Multipliers[i]
		}
		if i < len(t.Economy.InflationPermille) {
			rates[i] = t.Economy.InflationPermille[i]
		}
	}
	return economy.NewCostModel(mult, rates)
}

// Digest fingerprints the effective tuning for the handshake.
func (t Tuning) Digest() string {
	b, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
