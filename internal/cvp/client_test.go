package cvp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/cv-container/internal/config"
	"github.com/shinji-kodama/cv-container/internal/model"
	"github.com/shinji-kodama/cv-container/internal/reconcile"
)

var (
	_ reconcile.Remote          = (*Client)(nil)
	_ reconcile.DeviceInventory = (*Client)(nil)
)

// fakeCVP serves the handful of endpoints the client uses.
type fakeCVP struct {
	mu         sync.Mutex
	containers map[string]string
	actions    []tempAction
	saveStatus string
	devices    []deviceRecord
	loginFails bool
	token      string

	// requests records "METHOD path" for every call.
	requests []string
}

func newFakeCVP() *fakeCVP {
	return &fakeCVP{
		containers: map[string]string{"Tenant": "root"},
		saveStatus: "success",
	}
}

func (f *fakeCVP) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(pathLogin, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if f.loginFails || body["userId"] != "cvpadmin" || body["password"] != "arista" {
			writeJSON(w, map[string]string{"errorCode": "112498", "errorMessage": "Unauthorized User"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "s1", Path: "/"})
		writeJSON(w, map[string]string{"sessionId": "s1", "userName": body["userId"]})
	})

	mux.HandleFunc(pathLogout, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"data": "success"})
	})

	mux.HandleFunc(pathInfo, func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"version": "2023.1.0"})
	})

	mux.HandleFunc(pathTopology, func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "root", r.URL.Query().Get("nodeId"))
		writeJSON(w, map[string]interface{}{
			"topology": map[string]string{"name": "Tenant", "key": "root", "type": "container"},
		})
	})

	mux.HandleFunc(pathSearch, func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query().Get("queryparam")
		f.mu.Lock()
		defer f.mu.Unlock()
		data := []containerRecord{}
		// Substring match, like the real endpoint.
		for name, key := range f.containers {
			if strings.Contains(name, q) {
				data = append(data, containerRecord{Name: name, Key: key})
			}
		}
		writeJSON(w, map[string]interface{}{"data": data, "total": len(data)})
	})

	mux.HandleFunc(pathInventory, func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "true", r.URL.Query().Get("provisioned"))
		f.mu.Lock()
		defer f.mu.Unlock()
		devices := f.devices
		if devices == nil {
			devices = []deviceRecord{}
		}
		writeJSON(w, devices)
	})

	mux.HandleFunc(pathTempAction, func(w http.ResponseWriter, r *http.Request) {
		var body map[string][]tempAction
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.actions = append(f.actions, body["data"]...)
		f.mu.Unlock()
		writeJSON(w, map[string]string{"data": "success"})
	})

	mux.HandleFunc(pathSave, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.saveStatus == "success" {
			for _, a := range f.actions {
				f.containers[a.NodeName] = "container_" + a.NodeName
			}
		}
		f.actions = nil
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{"status": f.saveStatus, "taskIds": []string{}},
		})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeCVP) authorized(r *http.Request) bool {
	if f.token != "" {
		return r.Header.Get("Authorization") == "Bearer "+f.token
	}
	c, err := r.Cookie("session_id")
	return err == nil && c.Value == "s1"
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(hosts ...string) config.Config {
	cfg := config.Default()
	cfg.Hosts = hosts
	cfg.Username = "cvpadmin"
	cfg.Password = "arista"
	return cfg
}

func connect(t *testing.T, cfg config.Config) *Client {
	t.Helper()
	c, err := NewClient(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	return c
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(config.Default())

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
}

func TestConnect_PasswordSession(t *testing.T) {
	fake := newFakeCVP()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := connect(t, testConfig(srv.URL))
	assert.Equal(t, srv.URL, c.Host())
	require.NoError(t, c.Ping(context.Background()), "session cookie must be sent back")
	require.NoError(t, c.Close(context.Background()))
}

func TestConnect_BadCredentials(t *testing.T) {
	fake := newFakeCVP()
	fake.loginFails = true
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsRemoteError(err))
	assert.Contains(t, err.Error(), "Unauthorized User")
	assert.Empty(t, c.Host())
}

func TestConnect_FailsOverToNextHost(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	fake := newFakeCVP()
	live := httptest.NewServer(fake.handler(t))
	defer live.Close()

	c := connect(t, testConfig(dead.URL, live.URL))
	assert.Equal(t, live.URL, c.Host())
}

func TestConnect_Token(t *testing.T) {
	fake := newFakeCVP()
	fake.token = "svc-token"
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	cfg := config.Default()
	cfg.Hosts = []string{srv.URL}
	cfg.APIToken = "svc-token"
	c := connect(t, cfg)

	name, err := c.RootContainerName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tenant", name)
	assert.NotContains(t, fake.requests, "POST "+pathLogin)
	require.NoError(t, c.Close(context.Background()))
	assert.NotContains(t, fake.requests, "POST "+pathLogout)
}

func TestClient_NotConnected(t *testing.T) {
	c, err := NewClient(testConfig("cvp.example.com"))
	require.NoError(t, err)

	_, err = c.RootContainerName(context.Background())
	assert.True(t, model.IsRemoteError(err))
	_, err = c.ContainerExists(context.Background(), "Fabric")
	assert.True(t, model.IsRemoteError(err))
	_, err = c.DeviceContainers(context.Background())
	assert.True(t, model.IsRemoteError(err))
}

func TestClient_ContainerLookups(t *testing.T) {
	fake := newFakeCVP()
	fake.containers["Fabric"] = "container_1"
	fake.containers["Fabric-Lab"] = "container_2"
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := connect(t, testConfig(srv.URL))
	ctx := context.Background()

	exists, err := c.ContainerExists(ctx, "Fabric")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.ContainerExists(ctx, "Fab")
	require.NoError(t, err)
	assert.False(t, exists, "substring hits are not matches")

	key, err := c.ContainerKey(ctx, "Fabric")
	require.NoError(t, err)
	assert.Equal(t, "container_1", key)

	key, err = c.ContainerKey(ctx, "Tenant")
	require.NoError(t, err)
	assert.Equal(t, "root", key)

	_, err = c.ContainerKey(ctx, "Spines")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.True(t, model.IsRemoteError(err))
}

func TestClient_CreateContainer(t *testing.T) {
	fake := newFakeCVP()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := connect(t, testConfig(srv.URL))
	ctx := context.Background()

	resp, err := c.CreateContainer(ctx, "Fabric", "Tenant", "root")
	require.NoError(t, err)
	assert.True(t, resp.Succeeded())
	assert.Equal(t, []string{}, resp.TaskIDs)

	exists, err := c.ContainerExists(ctx, "Fabric")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Contains(t, fake.requests, "POST "+pathTempAction)
	assert.Contains(t, fake.requests, "POST "+pathSave)
}

func TestClient_CreateContainerRejected(t *testing.T) {
	fake := newFakeCVP()
	fake.saveStatus = "failure"
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := connect(t, testConfig(srv.URL))

	resp, err := c.CreateContainer(context.Background(), "Fabric", "Tenant", "root")
	require.NoError(t, err)
	assert.False(t, resp.Succeeded())
}

func TestClient_DeviceContainers(t *testing.T) {
	fake := newFakeCVP()
	fake.devices = []deviceRecord{
		{Hostname: "leaf1", FQDN: "leaf1.lab.local", ContainerName: "Leafs"},
		{Hostname: "spine1", FQDN: "spine1.lab.local", ContainerName: "Undefined"},
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := connect(t, testConfig(srv.URL))

	got, err := c.DeviceContainers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"leaf1":            "Leafs",
		"leaf1.lab.local":  "Leafs",
		"spine1":           "Undefined",
		"spine1.lab.local": "Undefined",
	}, got)
	assert.Contains(t, fake.requests, "GET "+pathInventory)
}

func TestClient_HTTPErrorIsRemoteError(t *testing.T) {
	fake := newFakeCVP()
	mux := http.NewServeMux()
	mux.Handle(pathLogin, fake.handler(t))
	mux.HandleFunc(pathSearch, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "internal error")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := connect(t, testConfig(srv.URL))

	_, err := c.ContainerExists(context.Background(), "Fabric")
	var remoteErr *model.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "search containers", remoteErr.Op)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		body    string
		wantErr string
	}{
		{`{"data": []}`, ""},
		{`[]`, ""},
		{``, ""},
		{`{"errorCode": "112498", "errorMessage": "Unauthorized User"}`, "cloudvision error 112498: Unauthorized User"},
		{`{"errorCode": 132801}`, "cloudvision error 132801"},
		{`{"errorCode": null, "errorMessage": "Entity does not exist"}`, "cloudvision error: Entity does not exist"},
	}
	for _, tt := range tests {
		err := apiError([]byte(tt.body))
		if tt.wantErr == "" {
			assert.NoError(t, err, tt.body)
			continue
		}
		assert.EqualError(t, err, tt.wantErr)
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://cvp.lab", baseURL("cvp.lab", 443))
	assert.Equal(t, "https://cvp.lab:8443", baseURL("cvp.lab", 8443))
	assert.Equal(t, "http://127.0.0.1:9000", baseURL("http://127.0.0.1:9000/", 443))
}
