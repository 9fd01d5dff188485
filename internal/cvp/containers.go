package cvp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// containerRecord is one entry of a searchContainers answer.
type containerRecord struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// RootContainerName returns the name of the provisioning tree root.
func (c *Client) RootContainerName(ctx context.Context) (string, error) {
	if err := c.requireConnected(); err != nil {
		return "", err
	}

	query := url.Values{
		"nodeId":     {"root"},
		"format":     {"topology"},
		"startIndex": {"0"},
		"endIndex":   {"0"},
	}
	var resp struct {
		Topology struct {
			Name string `json:"name"`
			Key  string `json:"key"`
		} `json:"topology"`
	}
	if err := c.do(ctx, c.baseURL, http.MethodGet, pathTopology, query, nil, &resp); err != nil {
		return "", model.NewRemoteError("get root container", "", err)
	}
	if resp.Topology.Name == "" {
		return "", model.NewRemoteError("get root container", "", fmt.Errorf("topology has no root name"))
	}
	return resp.Topology.Name, nil
}

// ContainerExists reports whether a container called name exists.
func (c *Client) ContainerExists(ctx context.Context, name string) (bool, error) {
	found, err := c.findContainer(ctx, name)
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

// ContainerKey returns the key of the container called name. The error
// wraps model.ErrNotFound when there is no such container.
func (c *Client) ContainerKey(ctx context.Context, name string) (string, error) {
	found, err := c.findContainer(ctx, name)
	if err != nil {
		return "", err
	}
	if found == nil {
		return "", model.NewRemoteError("get container", name, model.ErrNotFound)
	}
	return found.Key, nil
}

// findContainer searches by name and keeps only an exact match, since the
// search endpoint matches substrings. It returns nil when nothing matches.
func (c *Client) findContainer(ctx context.Context, name string) (*model.RemoteContainer, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}

	query := url.Values{
		"queryparam": {name},
		"startIndex": {"0"},
		"endIndex":   {"0"},
	}
	var resp struct {
		Data []containerRecord `json:"data"`
	}
	if err := c.do(ctx, c.baseURL, http.MethodGet, pathSearch, query, nil, &resp); err != nil {
		return nil, model.NewRemoteError("search containers", name, err)
	}
	for _, rec := range resp.Data {
		if rec.Name == name {
			return &model.RemoteContainer{Name: rec.Name, Key: rec.Key}, nil
		}
	}
	return nil, nil
}

// tempAction is one staged change of the provisioning topology.
type tempAction struct {
	Info        string   `json:"info"`
	InfoPreview string   `json:"infoPreview"`
	Action      string   `json:"action"`
	NodeType    string   `json:"nodeType"`
	NodeID      string   `json:"nodeId"`
	ToID        string   `json:"toId"`
	FromID      string   `json:"fromId"`
	NodeName    string   `json:"nodeName"`
	FromName    string   `json:"fromName"`
	ToName      string   `json:"toName"`
	ToIDType    string   `json:"toIdType"`
	ChildTasks  []string `json:"childTasks"`
	ParentTask  string   `json:"parentTask"`
}

// CreateContainer stages the creation of name under the parent and saves
// the topology, which is how CloudVision commits staged actions.
func (c *Client) CreateContainer(ctx context.Context, name, parentName, parentKey string) (model.CreateResponse, error) {
	if err := c.requireConnected(); err != nil {
		return model.CreateResponse{}, err
	}

	info := fmt.Sprintf("Container %s created", name)
	action := map[string][]tempAction{
		"data": {{
			Info:        info,
			InfoPreview: info,
			Action:      "add",
			NodeType:    "container",
			NodeID:      "new_container",
			ToID:        parentKey,
			NodeName:    name,
			ToName:      parentName,
			ToIDType:    "container",
			ChildTasks:  []string{},
		}},
	}
	query := url.Values{
		"format":     {"topology"},
		"queryParam": {""},
		"nodeId":     {"root"},
	}
	if err := c.do(ctx, c.baseURL, http.MethodPost, pathTempAction, query, action, nil); err != nil {
		return model.CreateResponse{}, model.NewRemoteError("stage container", name, err)
	}

	var saved struct {
		Data model.CreateResponse `json:"data"`
	}
	if err := c.do(ctx, c.baseURL, http.MethodPost, pathSave, nil, []string{}, &saved); err != nil {
		return model.CreateResponse{}, model.NewRemoteError("save topology", name, err)
	}

	c.logger.Debug().
		Str("container", name).
		Str("parent", parentName).
		Str("status", saved.Data.Status).
		Strs("task_ids", saved.Data.TaskIDs).
		Msg("topology saved")
	return saved.Data, nil
}
