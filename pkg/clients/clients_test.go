package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

func TestHTTPWebhookCaller_ClassifiesResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		transient bool
	}{
		{name: "2xx succeeds", status: http.StatusOK},
		{name: "5xx is transient", status: http.StatusBadGateway, wantErr: true, transient: true},
		{name: "4xx is permanent", status: http.StatusUnprocessableEntity, wantErr: true, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := NewHTTPWebhookCaller().Call(context.Background(), server.URL, http.MethodPost, []byte(`{"lead":"1"}`))

			if !tt.wantErr {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.transient, protocol.IsTransient(err))
			assert.Equal(t, !tt.transient, protocol.IsPermanent(err))
		})
	}
}

func TestHTTPWebhookCaller_NetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := NewHTTPWebhookCaller().Call(context.Background(), server.URL, http.MethodPost, nil)
	require.Error(t, err)
	assert.True(t, protocol.IsTransient(err))
}

func TestCRMClient_GetRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/records/lead/lead-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{"status": "qualified", "first_name": "Amara"})
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "secret")

	fields, err := client.GetRecord(context.Background(), models.ObjectTypeLead, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "qualified", fields["status"])
	assert.Equal(t, "Amara", fields["first_name"])
}

func TestCRMClient_UpdateField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/records/lead/lead-1", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "client", payload["status"])
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "")

	err := client.UpdateField(context.Background(), models.ObjectTypeLead, "lead-1", "status", "client")
	require.NoError(t, err)
}

func TestCRMClient_CreateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/records/intake_form", r.URL.Path)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "intake-9"})
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "")

	id, err := client.CreateRecord(context.Background(), models.ObjectTypeIntakeForm, map[string]any{"lead_id": "lead-1"})
	require.NoError(t, err)
	assert.Equal(t, "intake-9", id)
}

func TestCRMClient_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such record", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "")

	_, err := client.GetRecord(context.Background(), models.ObjectTypeLead, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
