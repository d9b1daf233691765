package risk

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, repo RepositoryInterface) (*gin.Engine, *Handler) {
	t.Helper()
	service, err := NewService(DefaultConfig(), NewMemoryVelocityCache(), repo, nil, nil, 70)
	require.NoError(t, err)
	handler := NewHandler(service)

	router := gin.New()
	api := router.Group("/api/v1/risk")
	api.POST("/assess", handler.Assess)
	api.POST("/assess/email", handler.AssessEmail)
	api.POST("/assess/phone", handler.AssessPhone)
	api.POST("/assess/name", handler.AssessName)
	api.POST("/failed-attempts", handler.RecordFailedAttempt)
	api.GET("/assessments/flagged", handler.ListFlagged)
	api.GET("/assessments/:id", handler.GetAssessment)
	api.GET("/history", handler.ContactHistory)
	return router, handler
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Error   string                 `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAssessEndpoint(t *testing.T) {
	repo := new(mockRepository)
	repo.On("CountSubmissionsAtHour", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	repo.On("SaveAssessment", mock.Anything, mock.Anything).Return(nil)
	router, _ := newTestRouter(t, repo)

	w := doJSON(router, http.MethodPost, "/api/v1/risk/assess", gin.H{
		"email": "maria.gonzalez@gmail.com",
		"phone": "+12025551234",
		"name":  "Maria Gonzalez",
	})

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, float64(0), env.Data["composite_score"])
	assert.Equal(t, "low", env.Data["severity"])
	assert.Equal(t, false, env.Data["flagged"])
}

func TestAssessEndpointRequiresContactFields(t *testing.T) {
	router, _ := newTestRouter(t, new(mockRepository))

	w := doJSON(router, http.MethodPost, "/api/v1/risk/assess", gin.H{
		"email": "maria@gmail.com",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestAssessEmailEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, new(mockRepository))

	w := doJSON(router, http.MethodPost, "/api/v1/risk/assess/email", gin.H{"email": "not-an-email"})

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(100), env.Data["score"])
}

func TestAssessPhoneEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, new(mockRepository))

	w := doJSON(router, http.MethodPost, "/api/v1/risk/assess/phone", gin.H{"phone": "5555555555"})

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(100), env.Data["score"])
}

func TestAssessNameEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t, new(mockRepository))

	w := doJSON(router, http.MethodPost, "/api/v1/risk/assess/name", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFailedAttemptsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, new(mockRepository))

	w := doJSON(router, http.MethodPost, "/api/v1/risk/failed-attempts", gin.H{
		"email": "maria@gmail.com",
		"phone": "+12025551234",
	})

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Data["recorded"])
}

func TestListFlaggedEndpoint(t *testing.T) {
	repo := new(mockRepository)
	flagged := []Assessment{{
		ID:             uuid.New(),
		Email:          "test@mailinator.com",
		Phone:          "5555555555",
		Name:           "asdf asdf",
		CompositeScore: 84,
		Severity:       SeverityHigh,
		Flagged:        true,
	}}
	repo.On("ListFlagged", mock.Anything, 20, 0).Return(flagged, 1, nil).Once()
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/assessments/flagged", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, float64(1), env.Meta["total"])
	repo.AssertExpectations(t)
}

func TestGetAssessmentEndpoint(t *testing.T) {
	repo := new(mockRepository)
	router, _ := newTestRouter(t, repo)

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/assessments/not-a-uuid", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		repo.On("GetAssessmentByID", mock.Anything, id).Return(nil, pgx.ErrNoRows).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/assessments/"+id.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("found", func(t *testing.T) {
		id := uuid.New()
		repo.On("GetAssessmentByID", mock.Anything, id).Return(&Assessment{ID: id, Severity: SeverityMedium}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/assessments/"+id.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, id.String(), env.Data["id"])
	})
}

func TestContactHistoryEndpoint(t *testing.T) {
	repo := new(mockRepository)
	router, _ := newTestRouter(t, repo)

	t.Run("requires a contact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/history", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns bookings", func(t *testing.T) {
		repo.On("RecentBookings", mock.Anything, "maria@gmail.com", "", mock.Anything).
			Return([]BookingRecord{{Status: "confirmed"}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/history?email=maria@gmail.com", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		bookings, ok := env.Data["bookings"].([]interface{})
		require.True(t, ok)
		assert.Len(t, bookings, 1)
	})
}
