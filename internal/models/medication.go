package models

// Search filters accepted by the catalog search.
const (
	FilterIngredient = "ingredient"
	FilterCategory   = "category"
	FilterAll        = "all"
)

type Medication struct {
	ID                   int64   `json:"id"`
	Name                 string  `json:"name"`
	ActiveIngredient     string  `json:"active_ingredient"`
	Dosage               string  `json:"dosage"`
	RequiresPrescription bool    `json:"requires_prescription"`
	InStock              bool    `json:"in_stock"`
	UsageInstructions    string  `json:"usage_instructions"`
	SideEffects          *string `json:"side_effects"`
	Description          string  `json:"description"`
	Category             string  `json:"category"`
}

// MedicationSummary is the row shape returned by catalog searches.
type MedicationSummary struct {
	Name                 string `json:"name"`
	ActiveIngredient     string `json:"active_ingredient"`
	Dosage               string `json:"dosage"`
	RequiresPrescription bool   `json:"requires_prescription"`
	InStock              bool   `json:"in_stock"`
}

// MedicationListItem is the shape of GET /medications.
type MedicationListItem struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	ActiveIngredient     string `json:"active_ingredient"`
	Dosage               string `json:"dosage"`
	RequiresPrescription bool   `json:"requires_prescription"`
	InStock              bool   `json:"in_stock"`
	Category             string `json:"category"`
}

func (m *Medication) Summary() MedicationSummary {
	return MedicationSummary{
		Name:                 m.Name,
		ActiveIngredient:     m.ActiveIngredient,
		Dosage:               m.Dosage,
		RequiresPrescription: m.RequiresPrescription,
		InStock:              m.InStock,
	}
}

func (m *Medication) ListItem() MedicationListItem {
	return MedicationListItem{
		ID:                   m.ID,
		Name:                 m.Name,
		ActiveIngredient:     m.ActiveIngredient,
		Dosage:               m.Dosage,
		RequiresPrescription: m.RequiresPrescription,
		InStock:              m.InStock,
		Category:             m.Category,
	}
}

type MedicationListResponse struct {
	Medications []MedicationListItem `json:"medications"`
}
