package placement

import (
	"stationworks.ai/internal/sim/commands"
	"stationworks.ai/internal/sim/economy"
)

const CommandName = "create_train_station"

// TrainStationCommand binds a request to a Placer so the dispatcher can run it.
type TrainStationCommand struct {
	placer *Placer
	req    Request
	last   Outcome
}

func (p *Placer) Command(req Request) *TrainStationCommand {
	return &TrainStationCommand{placer: p, req: req}
}

func (c *TrainStationCommand) Name() string { return CommandName }

func (c *TrainStationCommand) Execute(ctx *commands.Context, flags commands.Flags) (economy.Currency, error) {
	out, err := c.placer.PlaceTrainStation(ctx, c.req, flags)
	c.last = out
	return out.Cost, err
}

// Outcome is the result of the most recent Execute.
func (c *TrainStationCommand) Outcome() Outcome { return c.last }
