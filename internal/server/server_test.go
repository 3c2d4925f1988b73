package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
	"github.com/pekarna-dev/invoice-engine/internal/extract"
	"github.com/pekarna-dev/invoice-engine/internal/match"
	"github.com/pekarna-dev/invoice-engine/internal/pipeline"
	"github.com/pekarna-dev/invoice-engine/internal/repository"
	"github.com/pekarna-dev/invoice-engine/internal/template"
)

const sampleInvoiceText = `Pekárna Novák s.r.o.
Strana 1 Číslo dokladu 2531898
Datum vystavení: 3.11.2024
Označení dodávky Množství Cena
10012345 Rohlík tukový 10 ks 2,50 25,00
Celkem k úhradě: 25,00
`

type testEnv struct {
	srv      *httptest.Server
	supplier uuid.UUID
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := repository.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	catalogRepo := repository.NewCatalogRepository(db, logger)
	supplier := uuid.New()
	price := 2.50
	if err := catalogRepo.AddIngredient(ctx, entity.Ingredient{ID: 1, Name: "Rohlík tukový"}); err != nil {
		t.Fatalf("seed ingredient: %v", err)
	}
	if err := catalogRepo.AddSupplierCode(ctx, entity.SupplierCode{
		SupplierID: supplier, ProductCode: "10012345", IngredientID: 1, Price: &price,
	}); err != nil {
		t.Fatalf("seed code: %v", err)
	}

	templates := template.NewStore(repository.NewTemplateRepository(db, logger), logger)
	processor := pipeline.New(
		extract.New(logger),
		match.New(catalogRepo, 0.6, logger),
		templates,
		logger,
	)
	invoices := repository.NewInvoiceRepository(db, logger)

	s := New(processor, templates, invoices, nil, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, supplier: supplier}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (e *testEnv) saveTemplate(t *testing.T) {
	t.Helper()
	cfg := entity.TemplateConfig{
		Patterns: map[string][]string{
			string(constants.FieldInvoiceNumber): {`Číslo dokladu (\d{5,})`},
			string(constants.FieldDate):          {`Datum vystavení[\s:.]*(\d{1,2}\.\d{1,2}\.\d{4})`},
			string(constants.FieldTotalAmount):   {`Celkem k úhradě: ([\d\s,.]+)`},
		},
		TableStart: `Označení\s+dodávky\s+Množství\s+Cena`,
		TableEnd:   `Celkem\s+k\s+úhradě`,
		TableColumns: entity.TableColumns{
			LinePattern: `^(\d{8})\s+(.+?)\s+(\d+[.,]?\d*)\s+([^\W\d_]+)\s+(\d+[.,]?\d*)\s+([\d\s]+[.,]?\d*)\s*$`,
			LineLayout:  constants.LineFixedCode,
		},
		DisplayLayout: constants.LayoutStandard,
	}
	rawCfg, _ := json.Marshal(cfg)
	resp, body := e.postJSON(t, "/api/v1/templates/"+e.supplier.String(), map[string]any{
		"name":   "pekarna",
		"config": json.RawMessage(rawCfg),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save template: %d %s", resp.StatusCode, body)
	}
}

func TestTrainEndpointDoesNotPersist(t *testing.T) {
	env := setupServer(t)

	resp, body := env.postJSON(t, "/api/v1/templates/"+env.supplier.String()+"/train", map[string]string{
		"fragment": "Číslo dokladu 2531898",
		"kind":     "invoice_number",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("train: %d %s", resp.StatusCode, body)
	}

	var res template.TrainResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Compiled.Generalized {
		t.Errorf("compiled = %+v", res.Compiled)
	}

	// Nothing saved: the supplier still has no active template.
	getResp, err := http.Get(env.srv.URL + "/api/v1/templates/" + env.supplier.String() + "/active")
	if err != nil {
		t.Fatalf("GET active: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("active after train = %d, want 404", getResp.StatusCode)
	}
}

func TestProcessTextAndApproveFlow(t *testing.T) {
	env := setupServer(t)
	env.saveTemplate(t)

	resp, body := env.postJSON(t, "/api/v1/invoices/process-text", map[string]any{
		"supplier_id": env.supplier,
		"text":        sampleInvoiceText,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process-text: %d %s", resp.StatusCode, body)
	}

	var result entity.ExtractionResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Header.InvoiceNumber != "2531898" {
		t.Fatalf("header = %+v", result.Header)
	}
	if len(result.Lines) != 1 || result.Lines[0].MatchStatus != constants.MatchExact {
		t.Fatalf("lines = %+v", result.Lines)
	}

	resp, body = env.postJSON(t, "/api/v1/invoices/approve", map[string]any{
		"supplier_id": env.supplier,
		"result":      result,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d %s", resp.StatusCode, body)
	}
	var approved repository.ApproveResult
	if err := json.Unmarshal(body, &approved); err != nil {
		t.Fatalf("decode approval: %v", err)
	}
	if !approved.Committed {
		t.Fatalf("approval = %+v", approved)
	}

	getResp, err := http.Get(env.srv.URL + "/api/v1/invoices/" + approved.InvoiceID.String())
	if err != nil {
		t.Fatalf("GET invoice: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get invoice = %d", getResp.StatusCode)
	}
	var inv entity.PersistedInvoice
	if err := json.NewDecoder(getResp.Body).Decode(&inv); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	if inv.TotalAmount != 25 || len(inv.Lines) != 1 {
		t.Fatalf("invoice = %+v", inv)
	}
}

func TestApproveDuplicateReturns409(t *testing.T) {
	env := setupServer(t)
	env.saveTemplate(t)

	_, body := env.postJSON(t, "/api/v1/invoices/process-text", map[string]any{
		"supplier_id": env.supplier,
		"text":        sampleInvoiceText,
	})
	var result entity.ExtractionResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}

	approve := map[string]any{"supplier_id": env.supplier, "result": result}
	if resp, body := env.postJSON(t, "/api/v1/invoices/approve", approve); resp.StatusCode != http.StatusOK {
		t.Fatalf("first approve: %d %s", resp.StatusCode, body)
	}
	resp, _ := env.postJSON(t, "/api/v1/invoices/approve", approve)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second approve = %d, want 409", resp.StatusCode)
	}

	approve["confirm_replace"] = true
	if resp, body := env.postJSON(t, "/api/v1/invoices/approve", approve); resp.StatusCode != http.StatusOK {
		t.Fatalf("confirmed replace: %d %s", resp.StatusCode, body)
	}
}

func TestSaveTemplateValidatesConfig(t *testing.T) {
	env := setupServer(t)

	resp, _ := env.postJSON(t, "/api/v1/templates/"+env.supplier.String(), map[string]any{
		"name":   "broken",
		"config": json.RawMessage(`{"patterns": {"invoice_number": ["("]}}`),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid config = %d, want 400", resp.StatusCode)
	}
}

func TestTemplateVersioningOverHTTP(t *testing.T) {
	env := setupServer(t)
	env.saveTemplate(t)
	env.saveTemplate(t)

	resp, err := http.Get(env.srv.URL + "/api/v1/templates/" + env.supplier.String())
	if err != nil {
		t.Fatalf("GET templates: %v", err)
	}
	defer resp.Body.Close()
	var list []entity.Template
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("versions = %d, want 2", len(list))
	}

	var active *entity.Template
	for i := range list {
		if list[i].IsActive {
			if active != nil {
				t.Fatal("two active versions")
			}
			active = &list[i]
		}
	}
	if active == nil || active.Version != "v2" {
		t.Fatalf("active = %+v, want v2", active)
	}

	// reactivate v1
	var v1 *entity.Template
	for i := range list {
		if list[i].Version == "v1" {
			v1 = &list[i]
		}
	}
	url := fmt.Sprintf("%s/api/v1/templates/%s/activate/%s", env.srv.URL, env.supplier, v1.ID)
	actResp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer actResp.Body.Close()
	if actResp.StatusCode != http.StatusOK {
		t.Fatalf("activate = %d", actResp.StatusCode)
	}
}

func TestProcessTextWithoutTemplateIs404(t *testing.T) {
	env := setupServer(t)
	resp, _ := env.postJSON(t, "/api/v1/invoices/process-text", map[string]any{
		"supplier_id": env.supplier,
		"text":        "whatever",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
