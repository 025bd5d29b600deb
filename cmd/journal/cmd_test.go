package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"smart-journal-go/pkg/client"
	"strings"
	"testing"
)

// runCLI 以给定会话文件运行根命令，返回标准输出。
func runCLI(t *testing.T, serverURL, session string, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(append([]string{"--server", serverURL, "--session", session}, args...))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func loggedInSession(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	data := client.SessionData{Tokens: client.Tokens{AccessToken: "a1", RefreshToken: "r1"}}
	if err := client.NewFileStore(path).Save(data); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return path
}

func TestEntriesListRendersAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entries" || r.URL.Query().Get("search") != "walk" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`[{"id":"e1","entry":"Long walk by the river.","created_at":"2024-03-01T10:00:00Z",
			"analysis":{"mood":"content","summary":"A calm walk.","categories":["personal_growth"],"key_insight":"Walks help."}}]`))
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, loggedInSession(t), "", "entries", "list", "--search", "walk")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"Long walk by the river.", "content", "personal growth", "A calm walk.", "Walks help."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestChatSendStreamsReplyFromStdin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"token\":\"Hi \"}\n\ndata: {\"token\":\"there\"}\n\n")
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, loggedInSession(t), "how was my week?\n", "chat", "send", "w1", "-")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(out, "Hi there") {
		t.Errorf("expected streamed reply, got %q", out)
	}
}

func TestCommandWithoutSessionFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a session")
	}))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, filepath.Join(t.TempDir(), "none.yaml"), "", "profile")
	if !errors.Is(err, client.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{client.ErrUnauthenticated, "journal auth login"},
		{fmt.Errorf("%w: boom", client.ErrSessionExpired), "expired"},
		{&client.APIError{Status: 404, Message: "entry not found"}, "entry not found (HTTP 404)"},
		{errors.New("dial tcp: refused"), "dial tcp: refused"},
	}
	for _, tt := range tests {
		if got := describeError(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("describeError(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}

func TestReadText(t *testing.T) {
	if got, _ := readText([]string{"hello", "world"}, strings.NewReader("ignored")); got != "hello world" {
		t.Errorf("expected joined args, got %q", got)
	}
	if got, _ := readText([]string{"-"}, strings.NewReader("  from stdin \n")); got != "from stdin" {
		t.Errorf("expected stdin text, got %q", got)
	}
	if _, err := readText(nil, strings.NewReader("   ")); err == nil {
		t.Error("expected error for empty input")
	}
}
