package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backoffice-backend/internal/config"
	httpapi "backoffice-backend/internal/interfaces/http"
	"backoffice-backend/internal/repository"
	"backoffice-backend/internal/repository/memory"
	"backoffice-backend/internal/service"
	"backoffice-backend/pkg/observability"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	client := memory.NewClient(map[string]memory.TableSpec{
		"accounting_purposes": {UniqueBy: [][]string{{"purpose_code"}}},
		"payment_terms":       {UniqueBy: [][]string{{"code"}}},
	})
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ttl := repository.TTLConfig{
		List:            5 * time.Minute,
		Detail:          2 * time.Minute,
		FilterOptions:   5 * time.Minute,
		CleanupInterval: time.Minute,
		MaxEntries:      1000,
	}
	const maxBatch = 100

	purposesRepo := repository.NewAccountingPurposes(client, ttl, maxBatch, logger, metrics)
	termsRepo := repository.NewPaymentTerms(client, ttl, maxBatch, logger, metrics)
	branchesRepo := repository.NewEmployeeBranches(client, ttl, maxBatch, logger, metrics)
	pricesRepo := repository.NewSupplierPrices(client, ttl, maxBatch, logger, metrics)
	importsRepo := repository.NewPosImports(client, ttl, maxBatch, logger, metrics)
	logsRepo := repository.NewSystemLogs(client, ttl, maxBatch, logger, metrics)
	t.Cleanup(func() {
		purposesRepo.Close()
		termsRepo.Close()
		branchesRepo.Close()
		pricesRepo.Close()
		importsRepo.Close()
		logsRepo.Close()
	})

	handlers := httpapi.Handlers{
		Purposes: httpapi.NewPurposesHandler(service.NewPurposes(purposesRepo, nil, logger), logger),
		Terms:    httpapi.NewTermsHandler(service.NewPaymentTerms(termsRepo, nil, logger), logger),
		Branches: httpapi.NewBranchesHandler(service.NewEmployeeBranches(branchesRepo, nil, logger), logger),
		Prices:   httpapi.NewPricesHandler(service.NewSupplierPrices(pricesRepo, nil, logger), logger),
		Imports:  httpapi.NewImportsHandler(service.NewPosImports(importsRepo, nil, logger), logger),
		Logs:     httpapi.NewLogsHandler(service.NewSystemLogs(logsRepo, logger), 90*24*time.Hour, logger),
	}

	router := httpapi.NewRouter(config.Default().Server, handlers, logger, metrics, registry)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

var companyHeader = map[string]string{"X-Company-ID": "company-1"}

func TestMissingScopeHeaderIsRejected(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, server, http.MethodGet, "/api/v1/accounting-purposes", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "CLIENT_ERROR", errResp["category"])
	assert.Equal(t, float64(http.StatusBadRequest), errResp["statusCode"])
}

func TestCreateAndFetchPurpose(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, server, http.MethodPost, "/api/v1/accounting-purposes", map[string]interface{}{
		"purpose_code": "SALES01",
		"name":         "Sales",
	}, companyHeader)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &created))
	id := created["id"].(string)
	require.NotEmpty(t, id)

	resp, body = doJSON(t, server, http.MethodGet, "/api/v1/accounting-purposes/"+id, nil, companyHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, server, http.MethodGet, "/api/v1/accounting-purposes/code/SALES01", nil, companyHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byCode map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &byCode))
	assert.Equal(t, id, byCode["id"])
}

func TestDuplicateCodeReturnsConflictShape(t *testing.T) {
	server := newTestServer(t)

	input := map[string]interface{}{"purpose_code": "SALES01", "name": "Sales"}
	resp, _ := doJSON(t, server, http.MethodPost, "/api/v1/accounting-purposes", input, companyHeader)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, server, http.MethodPost, "/api/v1/accounting-purposes", input, companyHeader)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "CODE_EXISTS", errResp["code"])
	assert.Equal(t, "CLIENT_ERROR", errResp["category"])
	assert.NotEmpty(t, errResp["message"])
}

func TestScopeIsolationAcrossCompanies(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, server, http.MethodPost, "/api/v1/accounting-purposes", map[string]interface{}{
		"purpose_code": "SALES01", "name": "Sales",
	}, companyHeader)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &created))

	other := map[string]string{"X-Company-ID": "company-2"}
	resp, _ = doJSON(t, server, http.MethodGet,
		"/api/v1/accounting-purposes/"+created["id"].(string), nil, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBulkLimitReturnsBadRequestWithDetails(t *testing.T) {
	server := newTestServer(t)

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	resp, body := doJSON(t, server, http.MethodPost, "/api/v1/accounting-purposes/bulk-delete",
		map[string]interface{}{"ids": ids}, companyHeader)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "BULK_LIMIT_EXCEEDED", errResp["code"])
	details := errResp["details"].(map[string]interface{})
	assert.Equal(t, float64(100), details["limit"])
	assert.Equal(t, float64(101), details["actual"])
}

func TestImportWorkflowOverHTTP(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, server, http.MethodPost, "/api/v1/pos-imports",
		map[string]interface{}{"file_name": "sales.csv"}, companyHeader)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var imp map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &imp))
	id := imp["id"].(string)

	rows := map[string]interface{}{"rows": []map[string]interface{}{
		{"receipt_number": "R-1", "sold_at": "2026-08-30T12:00:00Z", "amount": 10},
		{"receipt_number": "R-1", "sold_at": "2026-08-30T12:00:00Z", "amount": 10},
		{"receipt_number": "R-2", "sold_at": "2026-08-30T13:00:00Z", "amount": 5},
	}}
	resp, body = doJSON(t, server, http.MethodPost, "/api/v1/pos-imports/"+id+"/analyze", rows, companyHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var analyzed map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &analyzed))
	assert.Equal(t, "analyzed", analyzed["status"])
	assert.Equal(t, float64(1), analyzed["duplicate_count"])

	confirm := map[string]interface{}{"skip_duplicates": true}
	resp, body = doJSON(t, server, http.MethodPost, "/api/v1/pos-imports/"+id+"/confirm", confirm, companyHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// double confirm returns the confirmed record, not an error
	resp, body = doJSON(t, server, http.MethodPost, "/api/v1/pos-imports/"+id+"/confirm",
		map[string]interface{}{"skip_duplicates": false}, companyHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var again map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &again))
	assert.Equal(t, "confirmed", again["status"])
	assert.Equal(t, true, again["skip_duplicates"])
}

func TestUnknownFilterKeysAreDropped(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, server, http.MethodPost, "/api/v1/accounting-purposes",
		map[string]interface{}{"purpose_code": "SALES01", "name": "Sales"}, companyHeader)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, server, http.MethodGet,
		"/api/v1/accounting-purposes?bogus=1&company_id=company-2", nil, companyHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, float64(1), page["total"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-me")
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-me", resp.Header.Get("X-Request-ID"))
}
