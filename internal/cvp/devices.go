package cvp

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// deviceRecord is one entry of the inventory answer.
type deviceRecord struct {
	Hostname      string `json:"hostname"`
	FQDN          string `json:"fqdn"`
	ContainerName string `json:"containerName"`
}

// DeviceContainers returns the container of every provisioned device,
// keyed by hostname and by FQDN.
func (c *Client) DeviceContainers(ctx context.Context) (map[string]string, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}

	var records []deviceRecord
	query := url.Values{"provisioned": {"true"}}
	if err := c.do(ctx, c.baseURL, http.MethodGet, pathInventory, query, nil, &records); err != nil {
		return nil, model.NewRemoteError("get device inventory", "", err)
	}

	out := make(map[string]string, 2*len(records))
	for _, rec := range records {
		if rec.Hostname != "" {
			out[rec.Hostname] = rec.ContainerName
		}
		if rec.FQDN != "" {
			out[rec.FQDN] = rec.ContainerName
		}
	}
	c.logger.Debug().Int("devices", len(records)).Msg("device inventory read")
	return out, nil
}
