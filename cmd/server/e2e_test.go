package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-collections/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-collections/pkg/app"
	"github.com/wadjakorntonsri/go-collections/pkg/config"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
)

type client struct {
	t      *testing.T
	base   string
	cookie *http.Cookie
}

func (c *client) call(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		var env struct {
			Result json.RawMessage `json:"result"`
		}
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
		require.NoError(c.t, json.Unmarshal(env.Result, out))
	}
	return resp.StatusCode
}

func TestIntegration(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		JWTSecret:   "e2e-secret",
		FrontendURL: "http://localhost/",
		LLMProvider: "gemini",
	}
	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	server := httptest.NewServer(a.Handler)
	defer server.Close()

	token, _, err := handler.NewSessions(cfg.JWTSecret).Issue(&domain.User{ID: 1, Email: "admin@example.com", IsAdmin: true})
	require.NoError(t, err)
	c := &client{t: t, base: server.URL, cookie: &http.Cookie{Name: "auth_token", Value: token}}

	anonymous := &client{t: t, base: server.URL}
	assert.Equal(t, http.StatusUnauthorized, anonymous.call(http.MethodGet, "/api/v1/collection/tree", nil, nil))

	// Build Root > Team > Project.
	var root, team, project domain.Collection
	require.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/api/v1/collection/", map[string]any{
		"name": domain.DefaultRootCollectionName, "slug": domain.DefaultRootCollectionSlug,
	}, &root))
	require.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/api/v1/collection/", map[string]any{
		"name": "Team", "slug": "team", "parent_id": root.ID,
	}, &team))
	require.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/api/v1/collection/", map[string]any{
		"name": "Project", "slug": "project", "parent_id": team.ID,
	}, &project))

	chart := &domain.Chart{SliceName: "Weekly actives", VizType: "bar"}
	require.NoError(t, a.Repo.CreateChart(context.Background(), chart))

	var batch domain.BatchResult
	require.Equal(t, http.StatusOK, c.call(http.MethodPost, fmt.Sprintf("/api/v1/collection/%d/items", project.ID), map[string]any{
		"items": []domain.ItemRef{{Type: domain.ItemTypeChart, ID: chart.ID}},
	}, &batch))
	assert.Equal(t, 1, batch.Succeeded)

	// Moving the root under its grandchild is rejected.
	assert.Equal(t, http.StatusBadRequest, c.call(http.MethodPut, fmt.Sprintf("/api/v1/collection/%d", root.ID),
		map[string]any{"parent_id": project.ID}, nil))

	// Deleting the middle node lifts its child to the grandparent.
	assert.Equal(t, http.StatusOK, c.call(http.MethodDelete, fmt.Sprintf("/api/v1/collection/%d", team.ID), nil, nil))

	var tree struct {
		Collections []domain.TreeNode `json:"collections"`
	}
	require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/api/v1/collection/tree", nil, &tree))
	require.Len(t, tree.Collections, 1)
	require.Len(t, tree.Collections[0].Children, 1)
	lifted := tree.Collections[0].Children[0]
	assert.Equal(t, project.ID, lifted.ID)
	assert.Equal(t, 1, lifted.Depth)
	assert.Equal(t, 1, lifted.ItemCount)

	var items domain.CollectionItems
	require.Equal(t, http.StatusOK, c.call(http.MethodGet, fmt.Sprintf("/api/v1/collection/%d/items", project.ID), nil, &items))
	require.Len(t, items.Charts, 1)
	assert.Equal(t, "Weekly actives", items.Charts[0].SliceName)

	// No database 9 is registered, so the AI endpoint fails before any model call.
	assert.Equal(t, http.StatusNotFound, c.call(http.MethodPost, "/api/v1/ai/sql",
		map[string]any{"database_id": 9, "schema": "main", "question": "how many charts?"}, nil))
}
