package evolution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Client talks to the Evolution API, the external service that brokers
// WhatsApp device pairing and reports live connection status.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError represents a non-success response from the Evolution API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("evolution API returned status %d: %s", e.StatusCode, e.Message)
}

// QRCodeResponse is the payload returned when requesting a pairing code
type QRCodeResponse struct {
	PairingCode string `json:"pairingCode,omitempty"`
	Code        string `json:"code"`
	Base64      string `json:"base64,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// ConnectionStateResponse wraps the gateway's connection state for an instance
type ConnectionStateResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		State        string `json:"state"` // open, connecting, close
	} `json:"instance"`
}

// InstanceDetails carries informational display data for an instance
type InstanceDetails struct {
	InstanceName     string `json:"instanceName"`
	OwnerJID         string `json:"ownerJid,omitempty"`
	ProfileName      string `json:"profileName,omitempty"`
	ProfilePicURL    string `json:"profilePicUrl,omitempty"`
	ConnectionStatus string `json:"connectionStatus,omitempty"`
	MessageCount     int    `json:"_count_messages,omitempty"`
	ContactCount     int    `json:"_count_contacts,omitempty"`
	ChatCount        int    `json:"_count_chats,omitempty"`
}

// CreateInstanceRequest is the body for provisioning a new instance
type CreateInstanceRequest struct {
	InstanceName string `json:"instanceName"`
	QRCode       bool   `json:"qrcode"`
	Integration  string `json:"integration"`
}

// Singleton instance
var instance *Client

// GetClient returns the singleton Evolution API client
func GetClient() *Client {
	if instance == nil {
		baseURL := os.Getenv("EVOLUTION_API_URL")
		if baseURL == "" {
			baseURL = "http://localhost:8080" // fallback
		}
		instance = NewClient(baseURL, os.Getenv("EVOLUTION_API_KEY"))
	}
	return instance
}

// NewClient creates a new Evolution API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.Message
		if msg == "" {
			msg = errBody.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreateInstance provisions a new instance at the gateway
func (c *Client) CreateInstance(instanceName string) error {
	req := CreateInstanceRequest{
		InstanceName: instanceName,
		QRCode:       true,
		Integration:  "WHATSAPP-BAILEYS",
	}
	return c.do(http.MethodPost, "/instance/create", req, nil)
}

// FetchQRCode requests a fresh pairing QR code for an instance
func (c *Client) FetchQRCode(instanceName string) (*QRCodeResponse, error) {
	var out QRCodeResponse
	if err := c.do(http.MethodGet, "/instance/connect/"+instanceName, nil, &out); err != nil {
		return nil, err
	}
	if out.Code == "" && out.Base64 == "" {
		return nil, fmt.Errorf("gateway returned no pairing code for instance %s", instanceName)
	}
	return &out, nil
}

// FetchConnectionState returns the gateway's authoritative state for an instance.
// The gateway reports open/connecting/close; callers map these to connection status.
func (c *Client) FetchConnectionState(instanceName string) (*ConnectionStateResponse, error) {
	var out ConnectionStateResponse
	if err := c.do(http.MethodGet, "/instance/connectionState/"+instanceName, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchInstanceDetails returns profile information for an instance, used for display only
func (c *Client) FetchInstanceDetails(instanceName string) (*InstanceDetails, error) {
	var out []InstanceDetails
	path := "/instance/fetchInstances?instanceName=" + instanceName
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("instance %s not found at gateway", instanceName)
	}
	return &out[0], nil
}

// Logout disconnects an instance without removing it from the gateway
func (c *Client) Logout(instanceName string) error {
	return c.do(http.MethodDelete, "/instance/logout/"+instanceName, nil, nil)
}

// DeleteInstance removes an instance from the gateway
func (c *Client) DeleteInstance(instanceName string) error {
	return c.do(http.MethodDelete, "/instance/delete/"+instanceName, nil, nil)
}
