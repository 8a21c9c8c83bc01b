package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownMaterial is returned when a material name is not tracked by the ledger.
var ErrUnknownMaterial = errors.New("unknown material type")

// MaterialType identifies a processed good with its own independent ledger.
type MaterialType string

const (
	MaterialTofu             MaterialType = "tofu"
	MaterialPickledVegetable MaterialType = "pickledVegetable"
	MaterialSausage          MaterialType = "sausage"
	MaterialPoultryMeat      MaterialType = "poultryMeat"
)

var materialAliases = map[string]MaterialType{
	"pickled": MaterialPickledVegetable,
	"salt":    MaterialPickledVegetable,
	"poultry": MaterialPoultryMeat,
	"chicken": MaterialPoultryMeat,
}

// DefaultMaterials lists the processing stations every deployment tracks.
func DefaultMaterials() []MaterialType {
	return []MaterialType{MaterialTofu, MaterialPickledVegetable, MaterialSausage, MaterialPoultryMeat}
}

// ParseMaterialType resolves a case-insensitive material name or alias against the known set.
func ParseMaterialType(raw string, known []MaterialType) (MaterialType, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownMaterial)
	}

	for _, m := range known {
		if strings.EqualFold(string(m), name) {
			return m, nil
		}
	}

	if alias, ok := materialAliases[strings.ToLower(name)]; ok {
		for _, m := range known {
			if m == alias {
				return m, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownMaterial, name)
}

// DailyMaterialRecord is the persisted input/output entry of one material for one day.
// The remaining quantity is never stored; it is derived by the ledger.
type DailyMaterialRecord struct {
	Date            time.Time       `json:"date"`
	MaterialType    MaterialType    `json:"materialType"`
	InputQuantity   decimal.Decimal `json:"inputQuantity"`
	OutputQuantity  decimal.Decimal `json:"outputQuantity"`
	UnitPriceInput  decimal.Decimal `json:"unitPriceInput"`
	UnitPriceOutput decimal.Decimal `json:"unitPriceOutput"`
	Note            string          `json:"note"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// RecordPatch carries the fields of a daily entry edit. Nil fields are left untouched.
type RecordPatch struct {
	Input           *decimal.Decimal `json:"input" validate:"omitempty,gte=0"`
	Output          *decimal.Decimal `json:"output" validate:"omitempty,gte=0"`
	UnitPriceInput  *decimal.Decimal `json:"unitPriceInput" validate:"omitempty,gte=0"`
	UnitPriceOutput *decimal.Decimal `json:"unitPriceOutput" validate:"omitempty,gte=0"`
	Note            *string          `json:"note" validate:"omitempty,max=500"`
}

// IsEmpty reports whether the patch would not change anything.
func (p RecordPatch) IsEmpty() bool {
	return p.Input == nil && p.Output == nil && p.UnitPriceInput == nil && p.UnitPriceOutput == nil && p.Note == nil
}

// Apply merges the set fields of the patch into the record.
func (p RecordPatch) Apply(rec *DailyMaterialRecord) {
	if rec == nil {
		return
	}
	if p.Input != nil {
		rec.InputQuantity = *p.Input
	}
	if p.Output != nil {
		rec.OutputQuantity = *p.Output
	}
	if p.UnitPriceInput != nil {
		rec.UnitPriceInput = *p.UnitPriceInput
	}
	if p.UnitPriceOutput != nil {
		rec.UnitPriceOutput = *p.UnitPriceOutput
	}
	if p.Note != nil {
		rec.Note = *p.Note
	}
}
