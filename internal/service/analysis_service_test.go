package service

import (
	"context"
	"errors"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/llm"
	"strings"
	"testing"
)

func TestParseAnalysis(t *testing.T) {
	valid := `{"mood":"Joyful","summary":"A good day.","categories":["career","daily_life","career"],"key_insight":"Rest helps."}`
	tests := []struct {
		name    string
		reply   string
		wantErr string
	}{
		{name: "plain json", reply: valid},
		{name: "json fence", reply: "```json\n" + valid + "\n```"},
		{name: "bare fence", reply: "```\n" + valid + "\n```"},
		{name: "single line fence", reply: "```json" + valid + "```"},
		{name: "not json", reply: "I think the mood is joyful", wantErr: "not valid JSON"},
		{name: "missing key insight", reply: `{"mood":"sad","summary":"x","categories":[]}`, wantErr: "key_insight"},
		{name: "plural key is not accepted", reply: `{"mood":"sad","summary":"x","categories":[],"key_insights":"y"}`, wantErr: "key_insight"},
		{name: "unknown mood", reply: `{"mood":"melancholic","summary":"x","categories":[],"key_insight":"y"}`, wantErr: "invalid mood"},
		{name: "unknown category", reply: `{"mood":"sad","summary":"x","categories":["finance"],"key_insight":"y"}`, wantErr: "invalid category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAnalysis(tt.reply)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				if a != nil {
					t.Fatal("expected no partial analysis on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Mood != model.MoodJoyful {
				t.Errorf("mood = %q, want joyful", a.Mood)
			}
			if len(a.Categories) != 2 || a.Categories[0] != model.CategoryCareer || a.Categories[1] != model.CategoryDailyLife {
				t.Errorf("unexpected categories %v", a.Categories)
			}
		})
	}
}

func TestAnalyze_RequestsJSONWithConfiguredModel(t *testing.T) {
	var gotGen *llm.GenerationParams
	var gotMsgs []llm.Message
	client := &fakeLLM{complete: func(msgs []llm.Message, gen *llm.GenerationParams) (string, error) {
		gotGen, gotMsgs = gen, msgs
		return `{"mood":"content","summary":"s","categories":["health"],"key_insight":"k"}`, nil
	}}
	svc := NewAnalysisService(client, config.LLMAnalysisConfig{Model: "gpt-4o", Temperature: 0.1})

	a, err := svc.Analyze(context.Background(), "Went for a run.")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.Mood != model.MoodContent {
		t.Errorf("unexpected mood %q", a.Mood)
	}
	if gotGen == nil || gotGen.Model != "gpt-4o" || !gotGen.JSONMode || gotGen.Temperature == nil || *gotGen.Temperature != 0.1 {
		t.Errorf("unexpected generation params %+v", gotGen)
	}
	if len(gotMsgs) != 2 || !strings.Contains(gotMsgs[1].Content, "Went for a run.") {
		t.Errorf("entry text not in prompt: %+v", gotMsgs)
	}
}

func TestAnalyze_FailuresAreAnalysisFailed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "upstream error", err: errors.New("connection refused")},
		{name: "schema error", reply: `{"mood":"joyful"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeLLM{complete: func([]llm.Message, *llm.GenerationParams) (string, error) { return tt.reply, tt.err }}
			_, err := NewAnalysisService(client, config.LLMAnalysisConfig{}).Analyze(context.Background(), "text")
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr != ErrAnalysisFailed {
				t.Fatalf("expected ErrAnalysisFailed, got %v", err)
			}
		})
	}
}
