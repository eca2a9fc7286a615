package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	settlenet "github.com/flowcap/settlenet"
	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/api"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/store/memory"
	"github.com/flowcap/settlenet/types"
)

type stubBureau struct{}

func (stubBureau) FetchLimit(context.Context, id.AccountID) (int64, error) { return 1_000_000_00, nil }

type stubScreener struct{}

func (stubScreener) Screen(context.Context, id.AccountID) (bool, error) { return true, nil }

type stubOracle struct{}

func (stubOracle) Score(context.Context, id.InvoiceID) (float64, error) { return 0.1, nil }

func newTestServer(t *testing.T) (*api.Server, *account.Account, *account.Account) {
	t.Helper()

	st := memory.New()
	n, err := settlenet.New(st, stubBureau{}, stubScreener{}, stubOracle{},
		types.BP(75), []byte("test-key"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { n.Stop() })

	supplier := &account.Account{
		Entity: types.NewEntity(), ID: id.NewAccountID(),
		Role: account.RoleSupplier, Status: account.StatusActive, KYCStatus: account.KYCVerified,
	}
	buyer := &account.Account{
		Entity: types.NewEntity(), ID: id.NewAccountID(),
		Role: account.RoleBuyer, Status: account.StatusActive, KYCStatus: account.KYCVerified,
	}
	if err := st.CreateAccount(ctx, supplier); err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	if err := st.CreateAccount(ctx, buyer); err != nil {
		t.Fatalf("create buyer: %v", err)
	}

	return api.New(n), supplier, buyer
}

func TestSubmitInvoiceAndGet(t *testing.T) {
	srv, supplier, buyer := newTestServer(t)

	body := map[string]any{
		"supplier_id": supplier.ID.String(),
		"buyer_id":    buyer.ID.String(),
		"currency":    "usd",
		"terms_days":  30,
		"line_items": []map[string]any{
			{"description": "consulting", "quantity": 1, "unit_price_minor": 5_000_000},
		},
	}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("submit invoice: status %d, body %s", rec.Code, rec.Body.String())
	}

	var inv struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.ID == "" {
		t.Fatal("expected invoice id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/invoices/"+inv.ID, nil)
	getRec := httptest.NewRecorder()
	srv.ServeHTTP(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("get invoice: status %d, body %s", getRec.Code, getRec.Body.String())
	}
}

func TestSubmitInvoiceRejectsSameAccount(t *testing.T) {
	srv, supplier, _ := newTestServer(t)

	body := map[string]any{
		"supplier_id": supplier.ID.String(),
		"buyer_id":    supplier.ID.String(),
		"currency":    "usd",
		"terms_days":  30,
		"line_items": []map[string]any{
			{"description": "consulting", "quantity": 1, "unit_price_minor": 5_000_000},
		},
	}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for same-account invoice, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/invoices/"+id.NewInvoiceID().String(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
