package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CartItem is one line of an order: a gallon type with refill and new container counts.
type CartItem struct {
	Name   string `json:"name"`
	Refill int    `json:"refill"`
	New    int    `json:"new"`
}

func (c CartItem) Empty() bool {
	return c.Refill == 0 && c.New == 0
}

// GallonType is a catalog entry with its refill unit price.
type GallonType struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`

	// unpriced is set when the stored entry carried no price (older catalogs
	// stored bare names); Settings normalization fills it from GallonPrice.
	unpriced bool
}

func (g GallonType) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string      `json:"name"`
		Price json.Number `json:"price"`
	}{Name: g.Name, Price: json.Number(g.Price.String())})
}

func (g *GallonType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*g = GallonType{Name: name, unpriced: true}
		return nil
	}

	var raw struct {
		Name  string           `json:"name"`
		Price *decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*g = GallonType{Name: raw.Name}
	if raw.Price == nil {
		g.unpriced = true
	} else {
		g.Price = *raw.Price
	}
	return nil
}
