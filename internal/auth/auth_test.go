package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmogame/backend/internal/database/dbtest"
	"github.com/mmogame/backend/internal/ledger"
	"github.com/mmogame/backend/internal/middleware"
	"github.com/mmogame/backend/internal/models"
)

const testSecret = "test-secret-0123456789"

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	tok, err := tokens.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != 42 {
		t.Errorf("Parse(Issue(42)) = %d, want 42", id)
	}
}

func TestTokenRejected(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	other := NewTokens("another-secret-0123456789", time.Hour)
	foreign, _ := other.Issue(1)

	expired := NewTokens(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.Issue(1)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", stale},
	}
	for _, tt := range tests {
		if _, err := tokens.Parse(tt.token); err != ErrInvalidToken {
			t.Errorf("Parse(%s) error = %v, want ErrInvalidToken", tt.name, err)
		}
	}
}

func TestSessionAndCurrentPlayer(t *testing.T) {
	db := dbtest.Open(t)
	tokens := NewTokens(testSecret, time.Hour)
	h := NewHandler(ledger.NewStore(db), tokens)

	session := func(body string) (*httptest.ResponseRecorder, models.SessionResponse) {
		rec := httptest.NewRecorder()
		h.Session(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session", bytes.NewBufferString(body)))
		var resp models.SessionResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		return rec, resp
	}

	rec, first := session(`{"kind":"device","external_id":" phone-1 "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Session status = %d, want 200", rec.Code)
	}
	_, again := session(`{"kind":"device","external_id":"phone-1"}`)
	if again.Player == nil || again.Player.ID != first.Player.ID {
		t.Errorf("second session player = %+v, want id %d", again.Player, first.Player.ID)
	}

	id, err := tokens.Parse(first.Token)
	if err != nil || id != first.Player.ID {
		t.Errorf("token player = %d, %v; want %d", id, err, first.Player.ID)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(middleware.WithPlayerID(req.Context(), first.Player.ID))
	rec = httptest.NewRecorder()
	h.GetCurrentPlayer(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GetCurrentPlayer status = %d, want 200", rec.Code)
	}
}

func TestSessionValidation(t *testing.T) {
	h := NewHandler(ledger.NewStore(dbtest.Open(t)), NewTokens(testSecret, time.Hour))

	tests := []string{
		`{`,
		`{"kind":"robot","external_id":"x"}`,
		`{"kind":"account","external_id":"   "}`,
	}
	for _, body := range tests {
		rec := httptest.NewRecorder()
		h.Session(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session", bytes.NewBufferString(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Session(%s) status = %d, want 400", body, rec.Code)
		}
	}
}
