package tiles

const (
	// TileSize is the edge length of one map tile in world units.
	TileSize = 32
	// SmallZStep converts world heights to element heights.
	SmallZStep = 4
)

type Pos2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Pos3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Pos2) Add(o Pos2) Pos2 { return Pos2{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Pos2) Sub(o Pos2) Pos2 { return Pos2{X: p.X - o.X, Y: p.Y - o.Y} }

// TileOrigin snaps p down to the corner of the tile containing it.
func (p Pos2) TileOrigin() Pos2 {
	return Pos2{X: floorDiv(p.X, TileSize) * TileSize, Y: floorDiv(p.Y, TileSize) * TileSize}
}

func (p Pos3) XY() Pos2        { return Pos2{X: p.X, Y: p.Y} }
func (p Pos3) Add(o Pos3) Pos3 { return Pos3{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }
func (p Pos3) Sub(o Pos3) Pos3 { return Pos3{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z} }

func WithZ(p Pos2, z int) Pos3 { return Pos3{X: p.X, Y: p.Y, Z: z} }

// Rotate turns p clockwise by rotation quarter turns (only the low two bits count).
func Rotate(p Pos2, rotation uint8) Pos2 {
	switch rotation & 3 {
	case 1:
		return Pos2{X: p.Y, Y: -p.X}
	case 2:
		return Pos2{X: -p.X, Y: -p.Y}
	case 3:
		return Pos2{X: -p.Y, Y: p.X}
	default:
		return p
	}
}

// Forward is the unit tile step a rotation points along.
func Forward(rotation uint8) Pos2 {
	return Rotate(Pos2{X: TileSize}, rotation)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
