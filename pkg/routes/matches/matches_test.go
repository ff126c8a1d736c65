package matches

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/review"
)

type stubService struct {
	listParams review.ListParams
	approved   []review.ApproveRequest
	declined   []review.DeclineRequest
	approveErr error
}

func (s *stubService) List(_ context.Context, params review.ListParams) (*review.ListResult, error) {
	s.listParams = params.Normalize()
	return &review.ListResult{
		Items: []review.Item{{
			Payment:     &canonical.Payment{ID: "pay_1", PaymentID: "pi_1"},
			MatchResult: review.MatchResultView{Confidence: 62, Matches: []models.StoredFieldMatch{}, TiedRegistrationIDs: []string{}},
		}},
		Total:   3,
		Limit:   s.listParams.Limit,
		Offset:  s.listParams.Offset,
		HasMore: true,
	}, nil
}

func (s *stubService) Approve(_ context.Context, req review.ApproveRequest) (*review.ApproveResult, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	s.approved = append(s.approved, req)
	return &review.ApproveResult{InvoiceNumber: "LTIV-250601001"}, nil
}

func (s *stubService) Decline(_ context.Context, req review.DeclineRequest) (*review.DeclineResult, error) {
	s.declined = append(s.declined, req)
	return &review.DeclineResult{}, nil
}

func (s *stubService) Stats(context.Context) (*models.MatchStatistics, error) {
	return &models.MatchStatistics{Total: 3, Matched: 2, Unmatched: 1, High: 1, Medium: 1}, nil
}

func newServer(service ReviewService) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(service).Register(e.Group("/api/v1/matches"))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(middleware.HeaderUserID, "reviewer@example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestList(t *testing.T) {
	t.Run("returns data and pagination", func(t *testing.T) {
		service := &stubService{}
		rec := do(newServer(service), http.MethodGet, "/api/v1/matches?minConfidence=50&limit=10&offset=0", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body["data"], 1)
		pagination := body["pagination"].(map[string]any)
		assert.Equal(t, float64(3), pagination["total"])
		assert.Equal(t, float64(10), pagination["limit"])
		assert.Equal(t, true, pagination["hasMore"])
		assert.Equal(t, 50, service.listParams.MinConfidence)

		item := body["data"].([]any)[0].(map[string]any)
		assert.Nil(t, item["registration"])
		assert.Equal(t, float64(62), item["matchResult"].(map[string]any)["confidence"])
	})

	t.Run("clamps the page size", func(t *testing.T) {
		service := &stubService{}
		rec := do(newServer(service), http.MethodGet, "/api/v1/matches?limit=500", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, review.MaxLimit, service.listParams.Limit)
	})

	t.Run("rejects bad query values", func(t *testing.T) {
		for _, query := range []string{"limit=abc", "minConfidence=101", "offset=-1"} {
			rec := do(newServer(&stubService{}), http.MethodGet, "/api/v1/matches?"+query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		}
	})
}

func TestStatistics(t *testing.T) {
	rec := do(newServer(&stubService{}), http.MethodGet, "/api/v1/matches/statistics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":3,"matched":2,"unmatched":1,"high":1,"medium":1,"low":0,"veryLow":0}`, rec.Body.String())
}

func TestApprove(t *testing.T) {
	t.Run("approves with the reviewer as actor", func(t *testing.T) {
		service := &stubService{}
		rec := do(newServer(service), http.MethodPost, "/api/v1/matches/approve",
			`{"paymentId":"pay_1","registrationId":"reg_A","matchResult":{"confidence":62}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"invoiceNumber":"LTIV-250601001","alreadyApproved":false}`, rec.Body.String())
		require.Len(t, service.approved, 1)
		assert.Equal(t, "reviewer@example.com", service.approved[0].Actor)
		assert.Equal(t, float64(62), service.approved[0].Submitted["confidence"])
	})

	t.Run("requires both ids", func(t *testing.T) {
		rec := do(newServer(&stubService{}), http.MethodPost, "/api/v1/matches/approve", `{"paymentId":"pay_1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("conflicts map to 409", func(t *testing.T) {
		service := &stubService{approveErr: fmt.Errorf("%w: registration reg_A", review.ErrApprovalConflict)}
		rec := do(newServer(service), http.MethodPost, "/api/v1/matches/approve", `{"paymentId":"pay_2","registrationId":"reg_A"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestDecline(t *testing.T) {
	t.Run("declines with reason and comments", func(t *testing.T) {
		service := &stubService{}
		rec := do(newServer(service), http.MethodPost, "/api/v1/matches/decline",
			`{"paymentId":"pay_1","reason":"duplicate","comments":"charged twice"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		require.Len(t, service.declined, 1)
		assert.Equal(t, models.DeclineReasonDuplicate, service.declined[0].Reason)
		assert.Equal(t, "charged twice", service.declined[0].Comments)
	})

	t.Run("rejects unknown reasons", func(t *testing.T) {
		service := &stubService{}
		rec := do(newServer(service), http.MethodPost, "/api/v1/matches/decline", `{"paymentId":"pay_1","reason":"bored"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, service.declined)
	})
}
