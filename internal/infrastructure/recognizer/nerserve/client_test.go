package nerserve

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

func TestRecognizeDecodesEntitiesAndTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/annotate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "takes metformin 500 mg daily" {
			t.Fatalf("text = %q", req.Text)
		}
		_, _ = w.Write([]byte(`{
			"entities":[{"text":"metformin","start":6,"end":15,"label":"CHEMICAL"}],
			"tokens":[
				{"text":"takes","start":0,"end":5},
				{"text":"metformin","start":6,"end":15,"label":"CHEMICAL"},
				{"text":"500","start":16,"end":19},
				{"text":"mg","start":20,"end":22},
				{"text":"daily","start":23,"end":28}
			]
		}`))
	}))
	defer server.Close()

	client := New(server.URL, nil)
	recognition, err := client.Recognize(context.Background(), "takes metformin 500 mg daily")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if len(recognition.Entities) != 1 || recognition.Entities[0].Label != domain.LabelChemical {
		t.Fatalf("entities = %+v", recognition.Entities)
	}
	if len(recognition.Tokens) != 5 || recognition.Tokens[1].Label != domain.LabelChemical {
		t.Fatalf("tokens = %+v", recognition.Tokens)
	}
}

func TestRecognizeWrapsServerErrorAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, nil)
	_, err := client.Recognize(context.Background(), "text")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary failure, got %v", err)
	}
}

func TestUpdateSendsBatchAndReturnsLoss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/train" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Examples []domain.TrainingExample `json:"examples"`
			Dropout  float64                  `json:"dropout"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Examples) != 1 || req.Dropout != 0.2 {
			t.Fatalf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"loss":3.14}`))
	}))
	defer server.Close()

	client := New(server.URL, nil)
	batch := []domain.TrainingExample{{
		Text:     "patient has diabetes",
		Entities: []domain.TrainingTriple{{Start: 12, End: 20, Label: domain.LabelDisease}},
	}}
	loss, err := client.Update(context.Background(), batch, 0.2)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if loss != 3.14 {
		t.Fatalf("loss = %v", loss)
	}
}

func TestExportStreamsWeights(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/model/export" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer server.Close()

	client := New(server.URL, nil)
	body, err := client.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "weights" {
		t.Fatalf("weights = %q", data)
	}
}

func TestReloadPostsVersion(t *testing.T) {
	var gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/model/reload" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Version string `json:"version"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotVersion = req.Version
		_, _ = w.Write([]byte(`{"version":"0.1.2"}`))
	}))
	defer server.Close()

	client := New(server.URL, nil)
	if err := client.Reload(context.Background(), "0.1.2"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if gotVersion != "0.1.2" {
		t.Fatalf("version = %q", gotVersion)
	}
}
