package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"pharmacy-agent/internal/models"
)

type fakeUsers struct {
	users []models.UserSummary
	err   error
}

func (f fakeUsers) List(context.Context) ([]models.UserSummary, error) { return f.users, f.err }

type fakeMeds struct {
	meds []models.Medication
	err  error
}

func (f fakeMeds) List(context.Context) ([]models.Medication, error) { return f.meds, f.err }

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	return rr
}

func TestCatalog_RootAndHealth(t *testing.T) {
	h := NewCatalogHandler(fakeUsers{}, fakeMeds{}, discard)

	rr := serve(h.Root)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"online","service":"Pharmacy AI Agent","version":"1.0.0"}`, rr.Body.String())

	rr = serve(h.Health)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestCatalog_ListUsers(t *testing.T) {
	h := NewCatalogHandler(fakeUsers{users: []models.UserSummary{
		{ID: 1, Name: "David Cohen", Email: "david.cohen@example.com"},
		{ID: 2, Name: "Sarah Levi", Email: "sarah.levi@example.com"},
	}}, fakeMeds{}, discard)

	rr := serve(h.ListUsers)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, int64(2), gjson.Get(body, "count").Int())
	assert.Equal(t, "Sarah Levi", gjson.Get(body, "users.1.name").String())
}

func TestCatalog_ListUsersEmpty(t *testing.T) {
	rr := serve(NewCatalogHandler(fakeUsers{}, fakeMeds{}, discard).ListUsers)
	assert.JSONEq(t, `{"success":true,"users":[],"count":0}`, rr.Body.String())
}

func TestCatalog_ListMedications(t *testing.T) {
	side := "Nausea"
	h := NewCatalogHandler(fakeUsers{}, fakeMeds{meds: []models.Medication{{
		ID: 3, Name: "Augmentin", ActiveIngredient: "Amoxicillin + Clavulanic acid", Dosage: "875mg",
		RequiresPrescription: true, SideEffects: &side, Category: "Antibiotic",
	}}}, discard)

	rr := serve(h.ListMedications)
	require.Equal(t, http.StatusOK, rr.Code)
	med := gjson.Get(rr.Body.String(), "medications.0")
	assert.Equal(t, "Augmentin", med.Get("name").String())
	assert.True(t, med.Get("requires_prescription").Bool())
	assert.False(t, med.Get("in_stock").Bool())
	assert.False(t, med.Get("side_effects").Exists(), "listing omits label details")
}

func TestCatalog_StoreErrors(t *testing.T) {
	h := NewCatalogHandler(fakeUsers{err: errors.New("db down")}, fakeMeds{err: errors.New("db down")}, discard)

	for _, fn := range []http.HandlerFunc{h.ListUsers, h.ListMedications} {
		rr := serve(fn)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "INTERNAL_ERROR", gjson.Get(rr.Body.String(), "error.code").String())
	}
}
