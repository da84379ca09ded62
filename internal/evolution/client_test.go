package evolution

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchQRCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connect/test-instance", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("apikey"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"pairingCode": "ABCD-1234",
			"code":        "2@abcdef",
			"base64":      "data:image/png;base64,iVBOR",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key")
	resp, err := client.FetchQRCode("test-instance")
	require.NoError(t, err)

	assert.Equal(t, "2@abcdef", resp.Code)
	assert.Equal(t, "data:image/png;base64,iVBOR", resp.Base64)
	assert.Equal(t, "ABCD-1234", resp.PairingCode)
}

func TestFetchQRCodeEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"count": 0})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	_, err := client.FetchQRCode("test-instance")
	assert.Error(t, err)
}

func TestFetchConnectionState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connectionState/test-instance", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"instance": map[string]string{
				"instanceName": "test-instance",
				"state":        "open",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	state, err := client.FetchConnectionState("test-instance")
	require.NoError(t, err)

	assert.Equal(t, "open", state.Instance.State)
	assert.Equal(t, "test-instance", state.Instance.InstanceName)
}

func TestFetchInstanceDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/fetchInstances", r.URL.Path)
		assert.Equal(t, "test-instance", r.URL.Query().Get("instanceName"))

		json.NewEncoder(w).Encode([]map[string]interface{}{{
			"instanceName": "test-instance",
			"ownerJid":     "5527999887766@s.whatsapp.net",
			"profileName":  "Support",
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	details, err := client.FetchInstanceDetails("test-instance")
	require.NoError(t, err)

	assert.Equal(t, "5527999887766@s.whatsapp.net", details.OwnerJID)
	assert.Equal(t, "Support", details.ProfileName)
}

func TestFetchInstanceDetailsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	_, err := client.FetchInstanceDetails("missing")
	assert.Error(t, err)
}

func TestAPIErrorOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "instance not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	_, err := client.FetchConnectionState("ghost")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "instance not found", apiErr.Message)
}

func TestCreateInstanceSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/instance/create", r.URL.Path)

		var req CreateInstanceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fresh-instance", req.InstanceName)
		assert.True(t, req.QRCode)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "created"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")
	assert.NoError(t, client.CreateInstance("fresh-instance"))
}
