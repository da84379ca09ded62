package services

import (
	"fmt"
	"strings"

	"impaai/internal/evolution"
	"impaai/pkg/models"
)

// InstanceStatus is the gateway's view of one instance, normalized to the
// connection status vocabulary used across the system.
type InstanceStatus struct {
	Status      string  // connected, connecting, disconnected, error
	PhoneNumber *string // set when the gateway knows the paired number
}

// PairingGateway is the contract the lifecycle services need from the remote
// WhatsApp-bridging service. The production implementation wraps the Evolution
// API client; tests substitute fakes.
type PairingGateway interface {
	FetchQRCode(instanceName string) (string, error)
	FetchInstanceStatus(instanceName string) (*InstanceStatus, error)
}

// evolutionGateway adapts the Evolution API client to the PairingGateway contract
type evolutionGateway struct {
	client *evolution.Client
}

// NewEvolutionGateway wraps an Evolution API client as a PairingGateway
func NewEvolutionGateway(client *evolution.Client) PairingGateway {
	return &evolutionGateway{client: client}
}

func (g *evolutionGateway) FetchQRCode(instanceName string) (string, error) {
	resp, err := g.client.FetchQRCode(instanceName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if resp.Base64 != "" {
		return resp.Base64, nil
	}
	return resp.Code, nil
}

func (g *evolutionGateway) FetchInstanceStatus(instanceName string) (*InstanceStatus, error) {
	state, err := g.client.FetchConnectionState(instanceName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	status := mapGatewayState(state.Instance.State)

	result := &InstanceStatus{Status: status}
	if status == models.ConnectionStatusConnected {
		// The paired number only becomes visible through the instance details
		if details, err := g.client.FetchInstanceDetails(instanceName); err == nil {
			if phone := phoneFromJID(details.OwnerJID); phone != "" {
				result.PhoneNumber = &phone
			}
		}
	}
	return result, nil
}

// mapGatewayState maps Evolution API connection states to connection status values
func mapGatewayState(state string) string {
	switch state {
	case "open":
		return models.ConnectionStatusConnected
	case "connecting":
		return models.ConnectionStatusConnecting
	case "close":
		return models.ConnectionStatusDisconnected
	default:
		return models.ConnectionStatusError
	}
}

// phoneFromJID extracts the bare phone number from a WhatsApp JID like
// "5527999887766@s.whatsapp.net".
func phoneFromJID(jid string) string {
	if jid == "" {
		return ""
	}
	if at := strings.Index(jid, "@"); at > 0 {
		return jid[:at]
	}
	return jid
}
