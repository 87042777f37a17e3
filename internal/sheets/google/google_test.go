package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/core"
	ports "budget/internal/sheets"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", "")

	_, err := NewFromEnv(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNewFromEnv_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+"/missing.json")

	_, err := NewFromEnv(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestClient_NilService(t *testing.T) {
	c := New(nil, "test", "")
	assert.Equal(t, DefaultSheetName, c.sheetName)

	_, err := c.Append(context.Background(), ports.Row{TransactionID: 1})
	assert.Error(t, err)
	assert.Error(t, c.Delete(context.Background(), 1))
}

// fakeSheets records the calls a Client makes against the Sheets REST API.
type fakeSheets struct {
	mu       sync.Mutex
	column   [][]any
	appended [][]any
	header   bool
	deleted  []map[string]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appended = append(f.appended, vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Ledger!A2:H2"},
		})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.header = true
		_ = json.NewEncoder(w).Encode(map[string]any{})
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		values := f.column
		if strings.HasSuffix(path, "A1:H1") && len(values) > 0 {
			values = values[:1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": values})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.deleted = append(f.deleted, req)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sheets": []any{
				map[string]any{"properties": map[string]any{"sheetId": 0, "title": "Other"}},
				map[string]any{"properties": map[string]any{"sheetId": 42, "title": "Ledger"}},
			},
		})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(svc, "sheet-1", "Ledger")
}

func TestClient_AppendWritesHeaderOnEmptySheet(t *testing.T) {
	f := &fakeSheets{}
	c := newFakeClient(t, f)

	row := ports.Row{
		TransactionID: 9,
		Date:          core.NewDate(2026, 3, 4),
		Type:          core.Expense,
		Account:       "Checking",
		Category:      "Food",
		Description:   "Lunch",
		Amount:        decimal.RequireFromString("12.5"),
		Currency:      "USD",
	}
	ref, err := c.Append(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, "Ledger!A2:H2", ref)
	assert.True(t, f.header)
	require.Len(t, f.appended, 1)
	assert.Equal(t, "2026-03-04", f.appended[0][1])
	assert.Equal(t, "12.50", f.appended[0][6])

	// The header check runs once per client.
	f.header = false
	_, err = c.Append(context.Background(), row)
	require.NoError(t, err)
	assert.False(t, f.header)
}

func TestClient_DeleteRemovesMatchingRow(t *testing.T) {
	f := &fakeSheets{column: [][]any{{"ID"}, {"7"}, {"9"}}}
	c := newFakeClient(t, f)

	require.NoError(t, c.Delete(context.Background(), 9))
	require.Len(t, f.deleted, 1)

	reqs := f.deleted[0]["requests"].([]any)
	rng := reqs[0].(map[string]any)["deleteDimension"].(map[string]any)["range"].(map[string]any)
	assert.EqualValues(t, 42, rng["sheetId"])
	assert.EqualValues(t, 2, rng["startIndex"])
	assert.EqualValues(t, 3, rng["endIndex"])
	assert.Equal(t, "ROWS", rng["dimension"])
}

func TestClient_DeleteMissingRowIsNoop(t *testing.T) {
	f := &fakeSheets{column: [][]any{{"ID"}, {"7"}}}
	c := newFakeClient(t, f)

	require.NoError(t, c.Delete(context.Background(), 9))
	assert.Empty(t, f.deleted)
}
