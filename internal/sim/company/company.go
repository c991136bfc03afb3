package company

import (
	"fmt"
	"sort"
)

// ID identifies a company. Neutral owns world infrastructure nobody built.
type ID uint8

const (
	Neutral ID = 15
	Null    ID = 0xFF
)

type ExpenditureType uint8

const (
	Construction ExpenditureType = iota + 1
	VehiclePurchase
	Running
	Income
)

func (e ExpenditureType) String() string {
	switch e {
	case Construction:
		return "construction"
	case VehiclePurchase:
		return "vehicle_purchase"
	case Running:
		return "running"
	case Income:
		return "income"
	default:
		return "none"
	}
}

type Company struct {
	ID           ID
	Name         string
	Cash         int64
	Expenditures map[ExpenditureType]int64
}

type Registry struct {
	byID map[ID]*Company

	// Editor disables ownership checks for scenario building.
	Editor bool
}

func NewRegistry() *Registry {
	return &Registry{byID: map[ID]*Company{}}
}

func (r *Registry) Add(id ID, name string, cash int64) (*Company, error) {
	if id == Neutral || id == Null {
		return nil, fmt.Errorf("company id %d is reserved", id)
	}
	if _, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("company %d already exists", id)
	}
	c := &Company{ID: id, Name: name, Cash: cash, Expenditures: map[ExpenditureType]int64{}}
	r.byID[id] = c
	return c, nil
}

func (r *Registry) Get(id ID) *Company { return r.byID[id] }

func (r *Registry) List() []*Company {
	out := make([]*Company, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Spend debits cash and books it under the given category.
func (c *Company) Spend(kind ExpenditureType, amount int64) {
	c.Cash -= amount
	c.Expenditures[kind] += amount
}

// CanModify reports whether actor may alter infrastructure owned by owner.
func (r *Registry) CanModify(owner, actor ID) bool {
	if r.Editor {
		return true
	}
	return owner == actor || owner == Neutral
}
