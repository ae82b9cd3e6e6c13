package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/authflow"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/kv"
)

func run(t *testing.T, api, state, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{in: bufio.NewReader(strings.NewReader(stdin)), out: &out}
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--api", api, "--state", state}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchPersistsFilter(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.json")

	out, err := run(t, "http://127.0.0.1:1", state, "", "search", "--college", "NIET", "--gender", "girls")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "near NIET, girls") || strings.Contains(out, " boys ") {
		t.Fatalf("search output:\n%s", out)
	}

	out, err = run(t, "http://127.0.0.1:1", state, "", "filters", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "near NIET, girls" {
		t.Fatalf("filters show = %q", out)
	}

	if _, err := run(t, "http://127.0.0.1:1", state, "", "search", "--gender", "martian"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad gender: err = %v", err)
	}

	if _, err := run(t, "http://127.0.0.1:1", state, "", "filters", "reset"); err != nil {
		t.Fatal(err)
	}
	out, _ = run(t, "http://127.0.0.1:1", state, "", "filters", "show")
	if strings.TrimSpace(out) != "none" {
		t.Fatalf("after reset = %q", out)
	}
}

func TestSaveRequiresLoginThenResumes(t *testing.T) {
	var (
		mu    sync.Mutex
		saved []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.URL.Path == "/v1/auth/login":
			_ = json.NewEncoder(w).Encode(backend.Account{ID: "u1", Email: "a@b.co", Tokens: backend.Tokens{Access: "tok", Refresh: "r"}})
		case r.URL.Path == "/v1/me":
			_ = json.NewEncoder(w).Encode(backend.AccountRecord{ID: "u1"})
		case strings.HasPrefix(r.URL.Path, "/v1/me/saved/") && r.Header.Get("Authorization") == "Bearer tok":
			saved = append(saved, r.Method+" "+r.URL.Path)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	state := filepath.Join(t.TempDir(), "state.json")

	_, err := run(t, srv.URL, state, "", "saved", "toggle", "3")
	var lr *apperr.LoginRequiredError
	if !errors.As(err, &lr) || lr.Destination != "/accommodations/3" {
		t.Fatalf("anonymous toggle: err = %v", err)
	}
	if dest, ok, _ := kv.NewFileStore(state).Get(authflow.RedirectKey); !ok || dest != "/accommodations/3" {
		t.Fatalf("stored destination = %q %v", dest, ok)
	}

	out, err := run(t, srv.URL, state, "", "login", "email", "--email", "a@b.co", "--password", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "stayctl saved toggle 3") {
		t.Fatalf("login output:\n%s", out)
	}

	out, err = run(t, srv.URL, state, "", "saved", "toggle", "3")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "saved 3" || len(saved) != 1 || saved[0] != "PUT /v1/me/saved/3" {
		t.Fatalf("toggle out=%q requests=%v", out, saved)
	}

	if _, ok, _ := kv.NewFileStore(state).Get(authflow.RedirectKey); ok {
		t.Fatal("destination should be consumed by the sign-in")
	}
}
