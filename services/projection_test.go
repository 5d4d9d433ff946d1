package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduling-server/models"
)

func strPtr(s string) *string { return &s }

func sampleAppointments() []models.AppointmentResponse {
	return []models.AppointmentResponse{
		{ID: "a1", ClientID: "c1", WorkerIDs: []string{"w1", "w2"}},
		{ID: "a2", ClientID: "c2", WorkerIDs: []string{"w2"}},
		{ID: "a3", ClientID: "c1", WorkerIDs: []string{}},
		{ID: "a4", ClientID: "c3", WorkerIDs: []string{"w3"}},
	}
}

func ids(appointments []models.AppointmentResponse) []string {
	out := make([]string, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, a.ID)
	}
	return out
}

func TestFilterAppointmentsByRole(t *testing.T) {
	tests := []struct {
		name   string
		viewer Viewer
		want   []string
	}{
		{"director sees all", Viewer{Role: models.StatusDirector}, []string{"a1", "a2", "a3", "a4"}},
		{"manager sees all", Viewer{Role: models.StatusManager}, []string{"a1", "a2", "a3", "a4"}},
		{"worker sees assigned", Viewer{Role: models.StatusWorker, WorkerID: strPtr("w2")}, []string{"a1", "a2"}},
		{"unlinked worker sees nothing", Viewer{Role: models.StatusWorker}, []string{}},
		{"client sees own", Viewer{Role: models.StatusClient, ClientID: strPtr("c1")}, []string{"a1", "a3"}},
		{"unlinked client sees nothing", Viewer{Role: models.StatusClient}, []string{}},
		{"client without appointments", Viewer{Role: models.StatusClient, ClientID: strPtr("c9")}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterAppointments(tt.viewer, sampleAppointments())
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterReportsFollowsVisibleAppointments(t *testing.T) {
	reports := []models.ReportResponse{
		{ID: "r1", AppointmentID: "a1"},
		{ID: "r2", AppointmentID: "a2"},
		{ID: "r3", AppointmentID: "a4"},
	}

	client := Viewer{Role: models.StatusClient, ClientID: strPtr("c1")}
	visible := FilterAppointments(client, sampleAppointments())
	got := FilterReports(client, reports, visible)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	director := Viewer{Role: models.StatusDirector}
	assert.Len(t, FilterReports(director, reports, nil), 3)
}

func TestAppointmentResponseResolvesNestedObjects(t *testing.T) {
	lat := 52.52
	appointment := models.Appointment{
		AppointmentID: "a1",
		FirmaID:       "f1",
		ClientID:      "c1",
		Date:          time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Latitude:      &lat,
	}
	lookup := newAppointmentLookup(
		[]models.Worker{{WorkerID: "w1", FirmaID: "f1", Name: "Anna", Surname: strPtr("Berg"), TeamID: strPtr("t1")}},
		[]models.Client{{ClientID: "c1", FirmaID: "f1", Name: "Meyer", PostalAddress: models.PostalAddress{City: strPtr("Berlin")}}},
		[]models.Service{{ServiceID: "s1", FirmaID: "f1", Name: "Care", Duration: 30}},
	)

	resp := appointmentResponse(appointment, []string{"w1", "gone"}, []string{"s1", "gone"}, lookup)

	assert.Equal(t, "a1", resp.ID)
	assert.Equal(t, []string{"w1", "gone"}, resp.WorkerIDs)
	require.Len(t, resp.Worker, 1)
	assert.Equal(t, "Berg", resp.Worker[0].Surname)
	assert.Equal(t, "t1", resp.Worker[0].TeamID)
	require.Len(t, resp.Services, 1)
	assert.Equal(t, 30, resp.Services[0].Duration)
	require.NotNil(t, resp.Client)
	assert.Equal(t, "Berlin", resp.Client.City)
	assert.Equal(t, &lat, resp.Latitude)
}

func TestAppointmentResponseWithoutLinks(t *testing.T) {
	resp := appointmentResponse(models.Appointment{AppointmentID: "a1", ClientID: "missing"}, nil, nil, newAppointmentLookup(nil, nil, nil))
	assert.NotNil(t, resp.WorkerIDs)
	assert.Empty(t, resp.WorkerIDs)
	assert.Empty(t, resp.Worker)
	assert.Empty(t, resp.Services)
	assert.Nil(t, resp.Client)
}

func TestGroupLinksKeepsOrder(t *testing.T) {
	got := groupLinks([]appointmentLink{
		{AppointmentID: "a1", LinkedID: "w1"},
		{AppointmentID: "a2", LinkedID: "w1"},
		{AppointmentID: "a1", LinkedID: "w3"},
	})
	assert.Equal(t, map[string][]string{"a1": {"w1", "w3"}, "a2": {"w1"}}, got)
}

func TestReportResponsesFlattenPhotos(t *testing.T) {
	got := reportResponses([]models.Report{{
		ReportID:      "r1",
		AppointmentID: "a1",
		Notes:         strPtr("done"),
		Photos:        []models.ReportPhoto{{PhotoID: "p1", URL: "https://cdn/x.jpg"}},
	}})
	require.Len(t, got, 1)
	assert.Equal(t, "done", got[0].Notes)
	assert.Equal(t, []models.ReportPhotoResponse{{PhotoID: "p1", URL: "https://cdn/x.jpg"}}, got[0].Photos)
}
