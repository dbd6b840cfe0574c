package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type staticTokens struct {
	token string
}

func (s *staticTokens) CurrentToken(context.Context) (string, error) {
	return s.token, nil
}

func TestParseSendsBearerToken(t *testing.T) {
	var capturedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/parse" {
			http.NotFound(w, r)
			return
		}
		capturedAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"text":"tender body","pages":4}`))
	}))
	defer server.Close()

	client := New(server.URL, &staticTokens{token: "tkn-123"}, Options{})
	parsed, err := client.Parse(context.Background(), "tender.pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Text != "tender body" || parsed.Pages != 4 {
		t.Fatalf("parsed = %+v", parsed)
	}
	if capturedAuth != "Bearer tkn-123" {
		t.Fatalf("authorization header = %q", capturedAuth)
	}
}

func TestExtractIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "extractor unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, nil, Options{})
	_, err := client.ExtractRequirements(context.Background(), domain.ParsedDocument{Text: "text"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "extractor unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary for a 502, got %v", err)
	}
}

func TestComposeReturnsTrimmedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses/compose" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"text":"  We fully comply.  "}`))
	}))
	defer server.Close()

	client := New(server.URL, nil, Options{})
	text, err := client.Compose(context.Background(), domain.Requirement{Text: "req"}, nil, domain.ComposeOptions{})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if text != "We fully comply." {
		t.Fatalf("text = %q", text)
	}
}

func TestClientBadRequestIsNotTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, nil, Options{})
	_, err := client.MatchRequirements(context.Background(), []domain.Requirement{{ID: "r1", Text: "t"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("a 400 must not be temporary: %v", err)
	}
}
