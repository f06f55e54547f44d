package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/auth"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/battle"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/middleware"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/models"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/store"
)

func newTestRouter(t *testing.T) (*mux.Router, *auth.TokenService) {
	t.Helper()

	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close(context.Background()) })

	svc := battle.NewService(st, nil, nil)
	tokens := auth.NewTokenService("test-secret")

	h := NewBattleHandler(svc)
	identityHandler := NewIdentityHandler(tokens)

	router := mux.NewRouter()
	router.Use(middleware.NewIdentityMiddleware(tokens).Resolve)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/identity/token", identityHandler.IssueToken).Methods("POST")
	api.HandleFunc("/battles", h.CreateBattle).Methods("POST")
	api.HandleFunc("/battles/{battleId}", h.GetBattle).Methods("GET")
	api.HandleFunc("/battles/{battleId}/join", h.JoinBattle).Methods("POST")
	api.HandleFunc("/battles/{battleId}/respond", h.RespondBattle).Methods("POST")
	api.HandleFunc("/battles/{battleId}", h.DeleteBattle).Methods("DELETE")
	return router, tokens
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.View {
	t.Helper()
	var view models.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestCreateBattleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 72.3, "userId": "u1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decodeView(t, rec)
	assert.Equal(t, "u1", view.CreatorID)
	assert.Equal(t, 72.3, view.CreatorScore)
	assert.Equal(t, models.BattleStatusCreated, view.Status)
	assert.NotEmpty(t, view.BattleID)
}

func TestCreateBattleRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 150, "userId": "u1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"userId": "u1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 50,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBattleFlowOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 72.3, "userId": "u1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	battleID := decodeView(t, rec).BattleID

	rec = doJSON(t, router, "POST", "/api/battles/"+battleID+"/join", map[string]interface{}{
		"userId": "u2",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.BattleStatusJoined, decodeView(t, rec).Status)

	rec = doJSON(t, router, "POST", "/api/battles/"+battleID+"/respond", map[string]interface{}{
		"score": 68.0, "userId": "u2",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	final := decodeView(t, rec)
	assert.Equal(t, models.BattleStatusCompleted, final.Status)
	assert.Equal(t, models.WinnerCreator, final.Winner)
	assert.False(t, final.ScoresRecalculated)

	rec = doJSON(t, router, "GET", "/api/battles/"+battleID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.WinnerCreator, decodeView(t, rec).Winner)
}

func TestGetBattleNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/battles/btl1_missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondErrorMapping(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 70, "userId": "u1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	battleID := decodeView(t, rec).BattleID

	// Self-respond is forbidden.
	rec = doJSON(t, router, "POST", "/api/battles/"+battleID+"/respond", map[string]interface{}{
		"score": 60, "userId": "u1",
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Complete the battle.
	rec = doJSON(t, router, "POST", "/api/battles/"+battleID+"/respond", map[string]interface{}{
		"score": 60, "userId": "u2",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A third party after completion gets a 400.
	rec = doJSON(t, router, "POST", "/api/battles/"+battleID+"/respond", map[string]interface{}{
		"score": 60, "userId": "u3",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestJoinConflictMapping(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 70, "userId": "u1",
	}, nil)
	battleID := decodeView(t, rec).BattleID

	rec = doJSON(t, router, "POST", "/api/battles/"+battleID+"/join", map[string]interface{}{"userId": "u2"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/battles/"+battleID+"/join", map[string]interface{}{"userId": "u3"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteBattleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 70, "userId": "u1",
	}, nil)
	battleID := decodeView(t, rec).BattleID

	// A stranger cannot delete.
	rec = doJSON(t, router, "DELETE", "/api/battles/"+battleID, map[string]interface{}{"userId": "intruder"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The creator can, and gets the irreversibility warning.
	rec = doJSON(t, router, "DELETE", "/api/battles/"+battleID, map[string]interface{}{"userId": "u1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result battle.DeleteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Deleted)
	assert.Equal(t, battle.DeleteWarning, result.Warning)

	// Deleting a missing battle succeeds too.
	rec = doJSON(t, router, "DELETE", "/api/battles/btl1_missing?userId=u1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentityHeaderOverridesBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 70, "userId": "spoofed",
	}, map[string]string{"X-User-ID": "real-user"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "real-user", decodeView(t, rec).CreatorID)
}

func TestBearerTokenIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/identity/token", map[string]interface{}{"userId": "u42"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokenResp IssueTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	require.NotEmpty(t, tokenResp.Token)

	rec = doJSON(t, router, "POST", "/api/battles", map[string]interface{}{
		"score": 70, "userId": "spoofed",
	}, map[string]string{"Authorization": fmt.Sprintf("Bearer %s", tokenResp.Token)})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u42", decodeView(t, rec).CreatorID)
}

func TestIssueTokenRequiresUserID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/identity/token", map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
