package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/rostersync/internal/shared"
)

func newMonClubServer(t *testing.T, logins *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/authenticate", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		var req authRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		if req.CustomID != "club-1" {
			t.Errorf("expected customId club-1, got %s", req.CustomID)
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	})
	mux.HandleFunc("GET /api/clubs/admin/custom/club-1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "tok-123" {
			t.Errorf("expected raw token in Authorization, got %q", got)
		}
		w.Write([]byte(`[
			{"_id":"l1","name":"Seniors","parentId":null},
			{"_id":"l2","name":"Seniors A","parentId":"l1"},
			{"_id":"l3","name":"Juniors"}
		]`))
	})
	mux.HandleFunc("POST /api/customs/members", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "tok-123" {
			t.Errorf("expected raw token in Authorization, got %q", got)
		}
		var req membersRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Section {
		case "l1":
			if req.SeasonID != "season-26" || !req.HasSeason {
				t.Errorf("expected season filter, got %q hasSeason=%v", req.SeasonID, req.HasSeason)
			}
			w.Write([]byte(`[{"email":"A@x.com"},"junk",{"email":"b@x.com","tutors":[{"email":"C@x.com","fullName":"Carl Jones"}]}]`))
		case "broken":
			w.Write([]byte(`{"error":"not a list"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	return httptest.NewServer(mux)
}

func newTestMonClub(baseURL, password string) *MonClubService {
	return NewMonClubService(shared.SourceConfig{
		BaseURL:  baseURL,
		Email:    "admin@club.test",
		Password: password,
		CustomID: "club-1",
		SeasonID: "season-26",
	}, nil, nil)
}

func TestMonClubService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		if svc := newTestMonClub("", ""); svc.Name() != "MonClub" {
			t.Errorf("expected name MonClub, got %s", svc.Name())
		}
	})

	t.Run("Default Base URL", func(t *testing.T) {
		svc := newTestMonClub("", "")
		if svc.client.baseURL != defaultMonClubBaseURL {
			t.Errorf("expected default base URL, got %s", svc.client.baseURL)
		}
	})

	t.Run("Requires Authentication", func(t *testing.T) {
		svc := newTestMonClub("http://127.0.0.1:1", "secret")
		if _, err := svc.FetchLists(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("Missing Credentials", func(t *testing.T) {
			svc := newTestMonClub("http://127.0.0.1:1", "")
			err := svc.Authenticate(ctx)
			if !errors.Is(err, shared.ErrSourceAuth) || !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected auth and credentials errors, got %v", err)
			}
		})

		t.Run("Rejected Credentials", func(t *testing.T) {
			var logins atomic.Int32
			server := newMonClubServer(t, &logins)
			defer server.Close()

			svc := newTestMonClub(server.URL, "wrong")
			err := svc.Authenticate(ctx)
			if !errors.Is(err, shared.ErrSourceAuth) {
				t.Errorf("expected ErrSourceAuth, got %v", err)
			}
			if !errors.Is(err, shared.ErrUnauthorized) {
				t.Errorf("expected wrapped 401, got %v", err)
			}
		})

		t.Run("Token Is Reused", func(t *testing.T) {
			var logins atomic.Int32
			server := newMonClubServer(t, &logins)
			defer server.Close()

			svc := newTestMonClub(server.URL, "secret")
			if err := svc.Authenticate(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, err := svc.FetchLists(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, err := svc.FetchMembers(ctx, "l1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if logins.Load() != 1 {
				t.Errorf("expected a single login, got %d", logins.Load())
			}
		})

		t.Run("Each Run Gets A Fresh Session", func(t *testing.T) {
			var logins atomic.Int32
			server := newMonClubServer(t, &logins)
			defer server.Close()

			svc := newTestMonClub(server.URL, "secret")
			first, cancel := context.WithCancel(ctx)
			if err := svc.Authenticate(first); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			cancel()

			if err := svc.Authenticate(ctx); err != nil {
				t.Fatalf("expected re-authentication after a canceled run, got %v", err)
			}
			if _, err := svc.FetchLists(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if logins.Load() != 2 {
				t.Errorf("expected one login per run, got %d", logins.Load())
			}
		})
	})

	t.Run("FetchLists", func(t *testing.T) {
		var logins atomic.Int32
		server := newMonClubServer(t, &logins)
		defer server.Close()

		svc := newTestMonClub(server.URL, "secret")
		if err := svc.Authenticate(ctx); err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}

		lists, err := svc.FetchLists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(lists) != 3 {
			t.Fatalf("expected 3 lists, got %d", len(lists))
		}
		if !lists[0].TopLevel() || lists[0].Name != "Seniors" {
			t.Errorf("expected top-level Seniors, got %+v", lists[0])
		}
		if lists[1].TopLevel() || lists[1].ParentID != "l1" {
			t.Errorf("expected nested list with parent l1, got %+v", lists[1])
		}
		if !lists[2].TopLevel() {
			t.Errorf("expected absent parentId to be top-level, got %+v", lists[2])
		}
	})

	t.Run("FetchMembers", func(t *testing.T) {
		var logins atomic.Int32
		server := newMonClubServer(t, &logins)
		defer server.Close()

		svc := newTestMonClub(server.URL, "secret")
		if err := svc.Authenticate(ctx); err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}

		t.Run("Returns Raw Records", func(t *testing.T) {
			records, err := svc.FetchMembers(ctx, "l1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(records) != 3 {
				t.Errorf("expected 3 raw records including the malformed one, got %d", len(records))
			}
		})

		t.Run("Unexpected Shape", func(t *testing.T) {
			_, err := svc.FetchMembers(ctx, "broken")
			if !errors.Is(err, shared.ErrSourceMembers) {
				t.Errorf("expected ErrSourceMembers, got %v", err)
			}
		})

		t.Run("Server Error", func(t *testing.T) {
			_, err := svc.FetchMembers(ctx, "missing")
			if !errors.Is(err, shared.ErrSourceMembers) || !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected wrapped API error, got %v", err)
			}
		})
	})

	t.Run("parentID", func(t *testing.T) {
		tc := []struct {
			raw  string
			want string
		}{
			{raw: ``, want: ""},
			{raw: `null`, want: ""},
			{raw: `"abc"`, want: "abc"},
			{raw: `{"_id":"abc"}`, want: `{"_id":"abc"}`},
		}
		for _, tt := range tc {
			if got := parentID(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("parentID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		}
	})
}
