package commands

import (
	"errors"
	"fmt"
	"log"

	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/economy"
	"stationworks.ai/internal/sim/stringids"
	"stationworks.ai/internal/sim/tiles"
)

// Context carries the per-invocation slots a command writes: the
// expenditure category, the last action position and the current error.
type Context struct {
	Company     company.ID
	Expenditure company.ExpenditureType
	Position    tiles.Pos3
	HasPosition bool
	ErrorText   stringids.ID
}

func (c *Context) SetExpenditureType(t company.ExpenditureType) { c.Expenditure = t }

func (c *Context) SetPosition(p tiles.Pos3) {
	c.Position = p
	c.HasPosition = true
}

func (c *Context) SetErrorText(id stringids.ID) { c.ErrorText = id }

type Command interface {
	Name() string
	Execute(ctx *Context, flags Flags) (economy.Currency, error)
}

// MessageError is implemented by failures that carry a user-facing message.
type MessageError interface {
	error
	MessageID() stringids.ID
}

var ErrUnknownCompany = errors.New("commands: unknown company")

type CashError struct {
	Required economy.Currency
	Cash     economy.Currency
}

func (e *CashError) Error() string {
	return fmt.Sprintf("not enough cash: requires %d, have %d", e.Required, e.Cash)
}

func (e *CashError) MessageID() stringids.ID { return stringids.NotEnoughCash }

type Result struct {
	Cost        economy.Currency
	Err         error
	ErrorText   stringids.ID
	Expenditure company.ExpenditureType
	Position    tiles.Pos3
	HasPosition bool
	Charged     bool
}

func (r Result) OK() bool { return r.Err == nil }

// Dispatcher runs commands the way player and AI actions are run: an
// apply request is first replayed as a query, checked against the
// company's cash, then applied and charged.
type Dispatcher struct {
	companies *company.Registry
	log       *log.Logger
}

func NewDispatcher(companies *company.Registry, logger *log.Logger) *Dispatcher {
	return &Dispatcher{companies: companies, log: logger}
}

func (d *Dispatcher) Do(cmd Command, actor company.ID, flags Flags) Result {
	ctx := &Context{Company: actor}
	c := d.companies.Get(actor)
	if c == nil && actor != company.Neutral {
		return d.finish(cmd, ctx, flags, 0, ErrUnknownCompany, false)
	}

	if !flags.Has(Apply) {
		cost, err := cmd.Execute(ctx, flags)
		return d.finish(cmd, ctx, flags, cost, err, false)
	}

	cost, err := cmd.Execute(ctx, flags&^Apply)
	if err != nil {
		return d.finish(cmd, ctx, flags, cost, err, false)
	}
	charge := c != nil && flags&(Ghost|NoPayment) == 0
	if charge && cost > 0 && c.Cash < cost {
		err := &CashError{Required: cost, Cash: c.Cash}
		return d.finish(cmd, ctx, flags, cost, err, false)
	}

	cost, err = cmd.Execute(ctx, flags)
	if err != nil {
		return d.finish(cmd, ctx, flags, cost, err, false)
	}
	if charge {
		c.Spend(ctx.Expenditure, cost)
	}
	return d.finish(cmd, ctx, flags, cost, nil, charge)
}

func (d *Dispatcher) finish(cmd Command, ctx *Context, flags Flags, cost economy.Currency, err error, charged bool) Result {
	var me MessageError
	if err != nil && errors.As(err, &me) {
		ctx.SetErrorText(me.MessageID())
	}
	if err != nil && !flags.Has(NoErrorWindow) && d.log != nil {
		d.log.Printf("%s company=%d flags=%s failed: %v", cmd.Name(), ctx.Company, flags, err)
	}
	return Result{
		Cost:        cost,
		Err:         err,
		ErrorText:   ctx.ErrorText,
		Expenditure: ctx.Expenditure,
		Position:    ctx.Position,
		HasPosition: ctx.HasPosition,
		Charged:     charged,
	}
}
