package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_LoadsAndIndexes(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	straight, ok := c.TrackPiece(0)
	if !ok {
		t.Fatalf("missing straight piece")
	}
	if straight.CompatibleFlags != 0 || len(straight.Segments) != 1 || straight.CostFactor != 256 {
		t.Fatalf("unexpected straight piece: %+v", straight)
	}
	st, ok := c.StationObject(1)
	if !ok {
		t.Fatalf("missing station object 1")
	}
	if st.TrackPieces&TraitSlope == 0 || st.TrackPieces&TraitSmallCurve == 0 {
		t.Fatalf("station 1 should support slopes and small curves: %+v", st)
	}
	if c.TrackObjects.Digest == "" || c.StationObjects.Digest == "" || c.TrackPieces.Digest == "" {
		t.Fatalf("digests not set")
	}
	ids := c.PieceIDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("piece ids not sorted: %v", ids)
		}
	}
}

func writeDefaults(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{trackObjectsFile, stationObjectsFile, trackPiecesFile} {
		b, err := defaultFS.ReadFile("defaults/" + name)
		if err != nil {
			t.Fatalf("read default %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestLoad_RejectsSchemaViolation(t *testing.T) {
	dir := t.TempDir()
	writeDefaults(t, dir)
	bad := `[{"id": 0, "name": "Broken", "track_pieces": 0, "build_cost_factor": 60, "sell_cost_factor": 15, "cost_index": 99, "height": 32}]`
	if err := os.WriteFile(filepath.Join(dir, stationObjectsFile), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected schema error")
	}
	if !strings.Contains(err.Error(), stationObjectsFile) {
		t.Fatalf("error should name the file: %v", err)
	}
}

func TestLoad_RejectsOutOfOrderSegments(t *testing.T) {
	dir := t.TempDir()
	writeDefaults(t, dir)
	bad := `[{"id": 0, "name": "straight", "compatible_flags": 0, "cost_factor": 256, "segments": [
		{"index": 1, "x": 0, "y": 0, "z": 0, "connect_flags": [5, 10, 5, 10], "quarter": 15}
	]}]`
	if err := os.WriteFile(filepath.Join(dir, trackPiecesFile), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected segment order error")
	}
}

func TestLoad_DirMatchesDefault(t *testing.T) {
	dir := t.TempDir()
	writeDefaults(t, dir)
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if got.TrackPieces.Digest != want.TrackPieces.Digest {
		t.Fatalf("digest mismatch: %s vs %s", got.TrackPieces.Digest, want.TrackPieces.Digest)
	}
	if _, ok := got.TrackObject(1); !ok {
		t.Fatalf("track object 1 missing")
	}
}
