package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"smart-journal-go/internal/middleware"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/internal/service"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var testUser = &model.User{ID: "u1", Email: "ada@example.com", FullName: "Ada"}

// withUser 模拟认证中间件写入的上下文。
func withUser(c *gin.Context) {
	c.Set(middleware.ContextKeyUser, testUser)
	c.Set(middleware.ContextKeyAccessToken, "access")
	c.Next()
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser)
	return r
}

type fakeJournalService struct {
	service.JournalService
	lastFilter repository.EntryFilter
	listCalls  int
	deleteErr  error
}

func (f *fakeJournalService) ListEntries(_ context.Context, _ string, filter repository.EntryFilter) ([]model.JournalEntry, error) {
	f.listCalls++
	f.lastFilter = filter
	return []model.JournalEntry{}, nil
}

func (f *fakeJournalService) DeleteEntry(context.Context, string, string) error {
	return f.deleteErr
}

type fakeExportService struct {
	result *service.ExportResult
}

func (f *fakeExportService) Export(context.Context, *model.User, string, repository.EntryFilter) (*service.ExportResult, error) {
	return f.result, nil
}

func TestListEntries_DateFilters(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantFrom  string
		wantUntil string
	}{
		{name: "no filters", query: "", wantCode: 200},
		{name: "inclusive end date", query: "?start_date=2024-01-01&end_date=2024-01-31", wantCode: 200,
			wantFrom: "2024-01-01T00:00:00Z", wantUntil: "2024-02-01T00:00:00Z"},
		{name: "same day", query: "?start_date=2024-01-05&end_date=2024-01-05", wantCode: 200,
			wantFrom: "2024-01-05T00:00:00Z", wantUntil: "2024-01-06T00:00:00Z"},
		{name: "bad start", query: "?start_date=01/05/2024", wantCode: 400},
		{name: "bad end", query: "?end_date=2024-13-01", wantCode: 400},
		{name: "end before start", query: "?start_date=2024-02-01&end_date=2024-01-31", wantCode: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := &fakeJournalService{}
			r := newTestRouter()
			r.GET("/entries", NewJournalHandler(journal, nil).ListEntries)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/entries"+tt.query, nil))

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode != 200 {
				if journal.listCalls != 0 {
					t.Error("service must not be called for invalid dates")
				}
				return
			}
			if tt.wantFrom != "" && journal.lastFilter.From.Format(time.RFC3339) != tt.wantFrom {
				t.Errorf("from = %v, want %s", journal.lastFilter.From, tt.wantFrom)
			}
			if tt.wantUntil != "" && journal.lastFilter.Until.Format(time.RFC3339) != tt.wantUntil {
				t.Errorf("until = %v, want %s", journal.lastFilter.Until, tt.wantUntil)
			}
		})
	}
}

func TestDeleteEntry_NotFound(t *testing.T) {
	r := newTestRouter()
	r.DELETE("/entries/:id", NewJournalHandler(&fakeJournalService{deleteErr: service.ErrEntryNotFound}, nil).DeleteEntry)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/entries/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "entry not found" || body["code"] != float64(404) {
		t.Errorf("unexpected body %v", body)
	}
}

func TestExportEntries_Inline(t *testing.T) {
	exports := &fakeExportService{result: &service.ExportResult{FileName: "journal.md", ContentType: "text/markdown; charset=utf-8", Body: []byte("# Journal")}}
	r := newTestRouter()
	r.GET("/entries/export", NewJournalHandler(&fakeJournalService{}, exports).ExportEntries)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/entries/export?format=markdown", nil))

	if w.Code != 200 || w.Body.String() != "# Journal" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), `filename="journal.md"`) {
		t.Errorf("missing attachment header: %v", w.Header())
	}
}

func TestRespondError_HidesInternalDetail(t *testing.T) {
	r := newTestRouter()
	r.GET("/boom", func(c *gin.Context) { respondError(c, context.DeadlineExceeded) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != 500 || strings.Contains(w.Body.String(), "deadline") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestHealthDocs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHealthHandler(r.Routes, []string{"/", "/docs"})
	r.GET("/", h.Root)
	r.GET("/docs", h.Docs)
	r.GET("/openapi.json", h.OpenAPI)
	r.DELETE("/entries/:id", func(c *gin.Context) {})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	var doc struct {
		Paths map[string]map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid openapi json: %v", err)
	}
	if _, ok := doc.Paths["/entries/{id}"]["delete"]; !ok {
		t.Errorf("missing converted path: %v", doc.Paths)
	}
}

type fakeChatService struct {
	converse func(ctx context.Context, user *model.User, windowID, message string, sink service.TokenSink) error
}

func (f *fakeChatService) Converse(ctx context.Context, user *model.User, windowID, message string, sink service.TokenSink) error {
	return f.converse(ctx, user, windowID, message, sink)
}

func TestChat_SSEFrames(t *testing.T) {
	chat := &fakeChatService{converse: func(_ context.Context, _ *model.User, _, _ string, sink service.TokenSink) error {
		for _, tok := range []string{"Hello", " \"world\"\n"} {
			if err := sink.WriteToken(tok); err != nil {
				return err
			}
		}
		return nil
	}}
	r := newTestRouter()
	r.POST("/chat", NewChatHandler(chat, nil, nil).Chat)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi","window_id":"w1"}`)))

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
	want := "data: {\"token\":\"Hello\"}\n\n" + "data: {\"token\":\" \\\"world\\\"\\n\"}\n\n"
	if w.Body.String() != want {
		t.Errorf("unexpected frames:\n%q\nwant\n%q", w.Body.String(), want)
	}
}

func TestChat_PreStreamErrorIsJSON(t *testing.T) {
	chat := &fakeChatService{converse: func(context.Context, *model.User, string, string, service.TokenSink) error {
		return service.ErrTurnInProgress
	}}
	r := newTestRouter()
	r.POST("/chat", NewChatHandler(chat, nil, nil).Chat)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi","window_id":"w1"}`)))

	if w.Code != http.StatusConflict || !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestChatWebSocket(t *testing.T) {
	chat := &fakeChatService{converse: func(_ context.Context, _ *model.User, windowID, message string, sink service.TokenSink) error {
		if windowID == "busy" {
			return service.ErrTurnInProgress
		}
		return sink.WriteToken("echo:" + message)
	}}
	r := newTestRouter()
	r.GET("/chat/ws", NewChatHandler(chat, nil, nil).ChatWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ChatRequest{Message: "hi", WindowID: "w1"}); err != nil {
		t.Fatal(err)
	}
	var frame map[string]interface{}
	if err := conn.ReadJSON(&frame); err != nil || frame["token"] != "echo:hi" {
		t.Fatalf("unexpected token frame %v, %v", frame, err)
	}
	frame = nil
	if err := conn.ReadJSON(&frame); err != nil || frame["type"] != "completion" || frame["status"] != "finished" {
		t.Fatalf("unexpected completion frame %v, %v", frame, err)
	}

	if err := conn.WriteJSON(ChatRequest{Message: "hi", WindowID: "busy"}); err != nil {
		t.Fatal(err)
	}
	frame = nil
	if err := conn.ReadJSON(&frame); err != nil || frame["error"] != service.ErrTurnInProgress.Message {
		t.Fatalf("unexpected error frame %v, %v", frame, err)
	}
}
