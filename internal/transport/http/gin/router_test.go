package httpgin

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/diodesmelts/red-whale-render-sub002/internal/repository/memory"
	"github.com/diodesmelts/red-whale-render-sub002/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Ledger) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	ledger := memory.NewLedger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(ledger, nil, nil, nil, logger, service.Config{})

	return NewRouter(svcs, nil, logger), ledger
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func initPool(t *testing.T, r *gin.Engine, competitionID string, total int) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/admin/competitions/"+competitionID+"/tickets",
		InitPoolRequest{TotalTickets: total})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReserveFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	initPool(t, r, "1", 10)

	w := doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 2, Numbers: []int{4, 7}})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ReserveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []int{4, 7}, resp.Numbers)
	until, err := time.Parse(time.RFC3339, resp.ReservedUntil)
	require.NoError(t, err)
	require.True(t, until.After(time.Now()))

	// Conflicts carry the exact losing numbers.
	w = doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "bob", Quantity: 2, Numbers: []int{7, 8}})
	require.Equal(t, http.StatusConflict, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	require.Equal(t, []int{7}, errResp.Unavailable)

	// Auto-assign skips alice's holds.
	w = doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "bob", Quantity: 3})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []int{1, 2, 3}, resp.Numbers)
}

func TestReserveRejectsBadPayload(t *testing.T) {
	r, _ := newTestRouter(t)
	initPool(t, r, "1", 10)

	w := doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		map[string]any{"quantity": 1})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/competitions/abc/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 1})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserveUnknownCompetition(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/competitions/404/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 1})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReleaseAndContention(t *testing.T) {
	r, _ := newTestRouter(t)
	initPool(t, r, "1", 10)

	w := doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 2, Numbers: []int{2, 5}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/competitions/1/contention?exclude=bob", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cont ContentionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cont))
	require.Equal(t, []int{2, 5}, cont.Numbers)

	// The holder's own numbers are omitted from their report.
	w = doJSON(t, r, http.MethodGet, "/competitions/1/contention?exclude=alice", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cont))
	require.Empty(t, cont.Numbers)

	w = doJSON(t, r, http.MethodDelete, "/competitions/1/reservations/alice", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/competitions/1/contention", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cont))
	require.Empty(t, cont.Numbers)
}

func TestInventory(t *testing.T) {
	r, _ := newTestRouter(t)
	initPool(t, r, "1", 10)

	w := doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 3})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/competitions/1/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("ETag"))

	var counts struct {
		Available int64 `json:"available"`
		Reserved  int64 `json:"reserved"`
		Purchased int64 `json:"purchased"`
		Total     int64 `json:"total_tickets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	require.Equal(t, int64(7), counts.Available)
	require.Equal(t, int64(3), counts.Reserved)
	require.Equal(t, int64(10), counts.Total)

	// Unknown competitions render as an empty pool, not a 404.
	w = doJSON(t, r, http.MethodGet, "/competitions/404/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	require.Zero(t, counts.Total)
}

func TestListTickets(t *testing.T) {
	r, _ := newTestRouter(t)
	initPool(t, r, "1", 10)

	w := doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 1, Numbers: []int{1}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/competitions/1/tickets?only=available&limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var views []TicketView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 3)
	require.Equal(t, 2, views[0].Number)
	require.Equal(t, "available", views[0].Status)
}

func TestPaymentCallbacks(t *testing.T) {
	r, _ := newTestRouter(t)
	initPool(t, r, "1", 10)

	w := doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 2, Numbers: []int{1, 2}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/internal/payments/confirmed", PaymentConfirmedRequest{
		CompetitionID: 1,
		HolderID:      "alice",
		Numbers:       []int{1, 2},
		EntryID:       uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Purchases are terminal: a second confirm for the same rows conflicts.
	w = doJSON(t, r, http.MethodPost, "/internal/payments/confirmed", PaymentConfirmedRequest{
		CompetitionID: 1,
		HolderID:      "alice",
		Numbers:       []int{1, 2},
		EntryID:       uuid.NewString(),
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	require.Equal(t, "paid reservation lost", errResp.Error)

	w = doJSON(t, r, http.MethodPost, "/internal/payments/confirmed", PaymentConfirmedRequest{
		CompetitionID: 1,
		HolderID:      "alice",
		Numbers:       []int{3},
		EntryID:       "not-a-uuid",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentFailedReleases(t *testing.T) {
	r, _ := newTestRouter(t)
	initPool(t, r, "1", 10)

	w := doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "alice", Quantity: 2, Numbers: []int{1, 2}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/internal/payments/failed", PaymentFailedRequest{
		CompetitionID: 1,
		HolderID:      "alice",
		Numbers:       []int{1, 2},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The numbers are claimable again right away.
	w = doJSON(t, r, http.MethodPost, "/competitions/1/reservations",
		ReserveRequest{HolderID: "bob", Quantity: 2, Numbers: []int{1, 2}})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestInitPoolValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/admin/competitions/1/tickets",
		map[string]any{"total_tickets": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
