package registryclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestListModelsPaginates(t *testing.T) {
	var gotTokens []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("page_token")
		gotTokens = append(gotTokens, token)

		w.Header().Set("Content-Type", "application/json")
		if token == "" {
			json.NewEncoder(w).Encode(listModelsResponse{
				RegisteredModels: []RegisteredModel{{Name: "a"}},
				NextPageToken:    strPtr("page2"),
			})
			return
		}
		json.NewEncoder(w).Encode(listModelsResponse{
			RegisteredModels: []RegisteredModel{{Name: "b"}},
		})
	}))
	defer server.Close()

	c := New(server.URL, "mlflow", "", nil)
	models, err := c.ListModels(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 || models[0].Name != "a" || models[1].Name != "b" {
		t.Fatalf("expected [a b], got %v", models)
	}
	if len(gotTokens) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(gotTokens))
	}
}

func TestGetModelNotFoundReturnsNilNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(server.URL, "mlflow", "", nil)
	model, err := c.GetModel(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("expected no error on 404, got %v", err)
	}
	if model != nil {
		t.Fatal("expected nil model for 404")
	}
}

func TestGetModelNonSuccessReturnsRegistryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := New(server.URL, "mlflow", "", nil)
	_, err := c.GetModel(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected registry error containing body, got %v", err)
	}
}

func TestGetModelSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(getModelResponse{RegisteredModel: RegisteredModel{Name: "found"}})
	}))
	defer server.Close()

	c := New(server.URL, "mlflow", "", nil)
	model, err := c.GetModel(context.Background(), "found")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == nil || model.Name != "found" {
		t.Fatalf("expected found model, got %v", model)
	}
}

func TestBearerTokenHeaderSent(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(listModelsResponse{})
	}))
	defer server.Close()

	c := New(server.URL, "mlflow", "s3cr3t", nil)
	if _, err := c.ListModels(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer s3cr3t" {
		t.Fatalf("expected Bearer header, got %q", gotAuth)
	}
}

func TestListModelVersionsEncodesFilter(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(listModelVersionsResponse{
			ModelVersions: []ModelVersion{{Name: "m", Version: "1"}},
		})
	}))
	defer server.Close()

	c := New(server.URL, "mlflow", "", nil)
	versions, err := c.ListModelVersions(context.Background(), "my model", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(versions) != 1 || versions[0].Version != "1" {
		t.Fatalf("unexpected versions: %v", versions)
	}
	if !strings.Contains(gotQuery, "filter=name%3D%27my+model%27") {
		t.Fatalf("expected escaped filter containing encoded name, got %q", gotQuery)
	}
}

func strPtr(s string) *string { return &s }
