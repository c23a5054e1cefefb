package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/mmogame/backend/internal/database/dbtest"
	"github.com/mmogame/backend/internal/middleware"
	"github.com/mmogame/backend/internal/models"
)

func newTestRouter(env *testEnv, playerID int64) *mux.Router {
	h := NewHandler(env.service)
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if playerID > 0 {
				req = req.WithContext(middleware.WithPlayerID(req.Context(), playerID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/games/{id}/next", h.Next).Methods("POST")
	r.HandleFunc("/games/{id}/attempts/{attemptId}/answer", h.Answer).Methods("POST")
	r.HandleFunc("/games/{id}/state", h.State).Methods("GET")
	r.HandleFunc("/games/{id}/leaderboard", h.Leaderboard).Methods("GET")
	r.HandleFunc("/admin/games", h.CreateGame).Methods("POST")
	r.HandleFunc("/admin/items", h.CreateItem).Methods("POST")
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return rec
}

func TestHandlerStatusCodes(t *testing.T) {
	env := newTestEnv(t)
	player := dbtest.InsertPlayer(t, env.db, "http")
	r := newTestRouter(env, player)

	rec := serve(r, http.MethodPost, "/admin/games", `{"name":"solo","model":"alone","bank_kind":"multichoice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create game status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var g models.Game
	json.NewDecoder(rec.Body).Decode(&g)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"no items", http.MethodPost, fmt.Sprintf("/games/%d/next", g.ID), "", http.StatusNoContent},
		{"missing game", http.MethodPost, "/games/999/next", "", http.StatusNotFound},
		{"bad game id", http.MethodPost, "/games/abc/next", "", http.StatusBadRequest},
		{"bad opponents", http.MethodPost, fmt.Sprintf("/games/%d/next", g.ID), `{"opponents":[0]}`, http.StatusBadRequest},
		{"invalid game", http.MethodPost, "/admin/games", `{"name":"x","model":"poker","bank_kind":"multichoice"}`, http.StatusBadRequest},
		{"state", http.MethodGet, fmt.Sprintf("/games/%d/state", g.ID), "", http.StatusOK},
		{"leaderboard", http.MethodGet, fmt.Sprintf("/games/%d/leaderboard?limit=5", g.ID), "", http.StatusOK},
		{"answer missing attempt", http.MethodPost, fmt.Sprintf("/games/%d/attempts/77/answer", g.ID), `{"answer":"a"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := serve(r, tt.method, tt.path, tt.body); rec.Code != tt.want {
			t.Errorf("%s: %s %s status = %d, want %d", tt.name, tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestHandlerPlayRound(t *testing.T) {
	env := newTestEnv(t)
	player := dbtest.InsertPlayer(t, env.db, "http")
	r := newTestRouter(env, player)

	rec := serve(r, http.MethodPost, "/admin/items", `{"bank_kind":"shortanswer","prompt":"Capital of France?","answer":"Paris"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d, want 201: %s", rec.Code, rec.Body)
	}
	rec = serve(r, http.MethodPost, "/admin/games", `{"name":"quiz","model":"alone","bank_kind":"shortanswer"}`)
	var g models.Game
	json.NewDecoder(rec.Body).Decode(&g)

	rec = serve(r, http.MethodPost, fmt.Sprintf("/games/%d/next", g.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("next status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("Paris")) {
		t.Errorf("next response leaks the answer: %s", rec.Body)
	}
	var turn models.Turn
	json.NewDecoder(rec.Body).Decode(&turn)

	rec = serve(r, http.MethodPost, fmt.Sprintf("/games/%d/attempts/%d/answer", g.ID, turn.Attempt.ID), `{"answer":"paris"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var resp models.AnswerResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Correct {
		t.Errorf("answer %q judged wrong, want correct", "paris")
	}

	rec = serve(r, http.MethodPost, fmt.Sprintf("/games/%d/attempts/%d/answer", g.ID, turn.Attempt.ID), `{"answer":"paris"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat answer status = %d, want 409", rec.Code)
	}
}

func TestHandlerWaiting(t *testing.T) {
	env := newTestEnv(t)
	player := dbtest.InsertPlayer(t, env.db, "waiter")
	r := newTestRouter(env, player)

	g := env.createGame(t, models.CreateGameRequest{
		Name: "duel", Model: models.ModelADuel, BankKind: models.BankMultiChoice,
		MaxAlone: 1, QuestionsPerPairing: 1,
	})
	dbtest.InsertItems(t, env.db, 2)
	env.play(t, g.ID, player, "a")

	rec := serve(r, http.MethodPost, fmt.Sprintf("/games/%d/next", g.ID), "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("next while waiting status = %d, want 202", rec.Code)
	}
	var turn models.Turn
	json.NewDecoder(rec.Body).Decode(&turn)
	if turn.Status != models.TurnWaiting {
		t.Errorf("turn status = %q, want %q", turn.Status, models.TurnWaiting)
	}
}

func TestHandlerRequiresPlayer(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(env, 0)
	if rec := serve(r, http.MethodPost, "/games/1/next", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous next status = %d, want 401", rec.Code)
	}
}
