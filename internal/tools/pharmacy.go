// Package tools binds the pharmacy catalog to the agent's tool registry.
package tools

import (
	"context"
	"errors"
	"fmt"

	"pharmacy-agent/internal/agent"
	"pharmacy-agent/internal/models"
	"pharmacy-agent/internal/repository"
)

type MedicationStore interface {
	FindByName(ctx context.Context, name string) (*models.Medication, error)
	FindByBrand(ctx context.Context, name string) (*models.Medication, error)
	Search(ctx context.Context, filter, query string) ([]models.Medication, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type PrescriptionStore interface {
	Latest(ctx context.Context, userID, medicationID int64) (*models.Prescription, error)
}

// Pharmacy implements the four catalog tools. Every result carries a
// boolean success; store failures come back as success false rather than
// as Go errors, so the model can explain them to the user.
type Pharmacy struct {
	meds          MedicationStore
	users         UserStore
	prescriptions PrescriptionStore
}

func NewPharmacy(meds MedicationStore, users UserStore, prescriptions PrescriptionStore) *Pharmacy {
	return &Pharmacy{meds: meds, users: users, prescriptions: prescriptions}
}

type MedicationNameArgs struct {
	MedicationName string `json:"medication_name" jsonschema_description:"The name of the medication to search for"`
}

type StockArgs struct {
	MedicationName string `json:"medication_name" jsonschema_description:"The name of the medication to check"`
}

type SearchArgs struct {
	FilterType string `json:"filter_type" jsonschema:"enum=ingredient,enum=category,enum=all" jsonschema_description:"Type of search: 'ingredient' to search by active ingredient, 'category' to search by medication category, or 'all' to list all medications"`
	Query      string `json:"query,omitempty" jsonschema_description:"Search query - the ingredient name or category name. Not needed when filter_type is 'all'"`
}

type PrescriptionArgs struct {
	UserID         int64  `json:"user_id" jsonschema_description:"The user's ID (1-10)"`
	MedicationName string `json:"medication_name" jsonschema_description:"The name of the medication to check"`
}

type MedicationResult struct {
	Success    bool               `json:"success"`
	Medication *models.Medication `json:"medication"`
}

type StockResult struct {
	Success        bool   `json:"success"`
	MedicationName string `json:"medication_name"`
	InStock        bool   `json:"in_stock"`
	Message        string `json:"message"`
}

type SearchResult struct {
	Success     bool                       `json:"success"`
	FilterType  string                     `json:"filter_type"`
	Query       string                     `json:"query"`
	Count       int                        `json:"count"`
	Medications []models.MedicationSummary `json:"medications"`
}

type PrescriptionResult struct {
	Success              bool   `json:"success"`
	UserName             string `json:"user_name"`
	MedicationName       string `json:"medication_name"`
	HasPrescription      bool   `json:"has_prescription"`
	RequiresPrescription bool   `json:"requires_prescription"`
	Message              string `json:"message"`
}

// Failure is the result shape when a tool cannot answer.
type Failure struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

func fail(format string, args ...any) Failure {
	return Failure{Error: fmt.Sprintf(format, args...)}
}

// Tools returns the pharmacy tools in the order they are offered to the
// model.
func (p *Pharmacy) Tools() ([]*agent.Tool, error) {
	var tools []*agent.Tool
	add := func(t *agent.Tool, err error) error {
		if err != nil {
			return err
		}
		tools = append(tools, t)
		return nil
	}

	err := errors.Join(
		add(agent.NewTool("get_medication_by_name",
			"Search for a specific medication by name. Returns detailed information including active ingredient, dosage, usage instructions, side effects, and prescription requirements. Use this when user asks about a specific medication.",
			p.GetMedicationByName)),
		add(agent.NewTool("search_medications",
			"Search for medications with various filters: by active ingredient, by category (pain_relief, antibiotic, allergy, cholesterol), or get all medications. Use this for broader searches or when user wants to explore options.",
			p.SearchMedications)),
		add(agent.NewTool("check_medication_stock",
			"Check if a medication is available in stock.",
			p.CheckMedicationStock)),
		add(agent.NewTool("check_prescription",
			"Check prescription status for a user and medication. This tool checks both: (1) Does this medication require a prescription? (2) Does the user have an active prescription for it? Use when user asks about prescriptions or if they can get a medication.",
			p.CheckPrescription)),
	)
	if err != nil {
		return nil, err
	}
	return tools, nil
}

// NewRegistry builds the registry the chat controller runs with.
func (p *Pharmacy) NewRegistry() (*agent.Registry, error) {
	tools, err := p.Tools()
	if err != nil {
		return nil, fmt.Errorf("failed to build pharmacy tools: %w", err)
	}
	return agent.NewRegistry(tools...)
}

func (p *Pharmacy) GetMedicationByName(ctx context.Context, args MedicationNameArgs) (any, error) {
	med, err := p.meds.FindByName(ctx, args.MedicationName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Failure{
			Error:      fmt.Sprintf("Medication %q not found. Please check spelling or try another name.", args.MedicationName),
			Suggestion: "Try searching by active ingredient or category.",
		}, nil
	case err != nil:
		return fail("Search error: %v", err), nil
	}
	return MedicationResult{Success: true, Medication: med}, nil
}

func (p *Pharmacy) CheckMedicationStock(ctx context.Context, args StockArgs) (any, error) {
	med, err := p.meds.FindByBrand(ctx, args.MedicationName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail("Medication %q not found.", args.MedicationName), nil
	case err != nil:
		return fail("Error checking stock: %v", err), nil
	}

	msg := fmt.Sprintf("No, %s is out of stock.", med.Name)
	if med.InStock {
		msg = fmt.Sprintf("Yes, %s is in stock.", med.Name)
	}
	return StockResult{Success: true, MedicationName: med.Name, InStock: med.InStock, Message: msg}, nil
}

func (p *Pharmacy) SearchMedications(ctx context.Context, args SearchArgs) (any, error) {
	filter := args.FilterType
	if filter == "" {
		filter = models.FilterAll
	}
	switch filter {
	case models.FilterIngredient, models.FilterCategory, models.FilterAll:
	default:
		return fail("Unknown filter_type %q. Use ingredient, category or all.", args.FilterType), nil
	}

	meds, err := p.meds.Search(ctx, filter, args.Query)
	if err != nil {
		return fail("Error searching medications: %v", err), nil
	}
	if len(meds) == 0 {
		return fail("No medications found for %s: %q", filter, args.Query), nil
	}

	summaries := make([]models.MedicationSummary, len(meds))
	for i := range meds {
		summaries[i] = meds[i].Summary()
	}
	query := args.Query
	if query == "" {
		query = "all medications"
	}
	return SearchResult{
		Success:     true,
		FilterType:  filter,
		Query:       query,
		Count:       len(summaries),
		Medications: summaries,
	}, nil
}

func (p *Pharmacy) CheckPrescription(ctx context.Context, args PrescriptionArgs) (any, error) {
	user, err := p.users.GetByID(ctx, args.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail("User #%d not found in the system.", args.UserID), nil
	case err != nil:
		return fail("Error checking prescription: %v", err), nil
	}

	med, err := p.meds.FindByBrand(ctx, args.MedicationName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail("Medication %q not found in the system.", args.MedicationName), nil
	case err != nil:
		return fail("Error checking prescription: %v", err), nil
	}

	res := PrescriptionResult{
		Success:              true,
		UserName:             user.Name,
		MedicationName:       med.Name,
		RequiresPrescription: med.RequiresPrescription,
	}

	_, err = p.prescriptions.Latest(ctx, user.ID, med.ID)
	switch {
	case err == nil:
		res.HasPrescription = true
		res.Message = fmt.Sprintf("Yes, %s has a prescription for %s.", user.Name, med.Name)
	case !errors.Is(err, repository.ErrNotFound):
		return fail("Error checking prescription: %v", err), nil
	case med.RequiresPrescription:
		res.Message = fmt.Sprintf("%s does not have a prescription for %s. This medication requires a doctor's prescription. Please consult a doctor to get a prescription.", user.Name, med.Name)
	default:
		res.Message = fmt.Sprintf("%s is an over-the-counter medication, so %s can purchase it without a prescription.", med.Name, user.Name)
	}
	return res, nil
}
