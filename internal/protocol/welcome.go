package protocol

import (
	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/tuning"
)

func NewWelcome(sessionID string, c *company.Company, cats *catalogs.Catalogs, tune tuning.Tuning) WelcomeMsg {
	return WelcomeMsg{
		Type:            TypeWelcome,
		ProtocolVersion: Version,
		SessionID:       sessionID,
		Company:         c.ID,
		CompanyName:     c.Name,
		WorldParams: WorldParams{
			TickRateHz: tune.TickRateHz,
			MonthTicks: tune.MonthTicks,
			SizeX:      tune.World.SizeX,
			SizeY:      tune.World.SizeY,
			EditorMode: tune.World.EditorMode,
		},
		Catalogs: CatalogDigests{
			TrackObjects:   DigestRef{Digest: cats.TrackObjects.Digest, Count: len(cats.TrackObjects.ByID)},
			StationObjects: DigestRef{Digest: cats.StationObjects.Digest, Count: len(cats.StationObjects.ByID)},
			TrackPieces:    DigestRef{Digest: cats.TrackPieces.Digest, Count: len(cats.TrackPieces.ByID)},
			TuningDigest:   tune.Digest(),
		},
	}
}

// Negotiate picks the protocol version for a HELLO, or "" when none match.
func Negotiate(h HelloMsg) string {
	if h.ProtocolVersion == Version {
		return Version
	}
	for _, v := range h.SupportedVersions {
		if v == Version {
			return Version
		}
	}
	return ""
}
