package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/llm"
	"smart-journal-go/pkg/log"
	"strings"
)

const analysisSystemPrompt = "You are an expert journal analyst focused on extracting clear, actionable insights. Respond with clean JSON only."

// AnalysisService 对单篇日记做结构化分析。
type AnalysisService interface {
	Analyze(ctx context.Context, text string) (*model.Analysis, error)
}

type analysisService struct {
	llmClient llm.Client
	cfg       config.LLMAnalysisConfig
}

// NewAnalysisService 创建一个新的 AnalysisService 实例。
func NewAnalysisService(llmClient llm.Client, cfg config.LLMAnalysisConfig) AnalysisService {
	return &analysisService{llmClient: llmClient, cfg: cfg}
}

// Analyze 调用 LLM 分析日记。任何失败都以 ErrAnalysisFailed 返回。
func (s *analysisService) Analyze(ctx context.Context, text string) (*model.Analysis, error) {
	temperature := s.cfg.Temperature
	gen := &llm.GenerationParams{Model: s.cfg.Model, Temperature: &temperature, JSONMode: true}
	messages := []llm.Message{
		{Role: string(model.RoleSystem), Content: analysisSystemPrompt},
		{Role: string(model.RoleUser), Content: buildAnalysisPrompt(text)},
	}

	reply, err := s.llmClient.Complete(ctx, messages, gen)
	if err != nil {
		log.Errorf("日记分析调用失败: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	analysis, err := ParseAnalysis(reply)
	if err != nil {
		log.Warnw("日记分析结果不合法", "error", err, "reply", truncate(reply, 500))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	return analysis, nil
}

func buildAnalysisPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Analyze this journal entry and respond with a JSON object containing exactly these keys:\n\n")
	b.WriteString("1. mood: the primary emotional state, exactly one of: ")
	b.WriteString(joinValues(model.Moods()))
	b.WriteString("\n2. summary: one clear sentence capturing the main event or thought and the feeling attached to it\n")
	b.WriteString("3. categories: the life areas discussed, any of: ")
	b.WriteString(joinValues(model.Categories()))
	b.WriteString("\n4. key_insight: one actionable insight or pattern identified from the entry\n\n")
	b.WriteString("Journal entry:\n")
	b.WriteString(text)
	return b.String()
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// rawAnalysis 用指针区分字段缺失与零值。
type rawAnalysis struct {
	Mood       *string   `json:"mood"`
	Summary    *string   `json:"summary"`
	Categories *[]string `json:"categories"`
	KeyInsight *string   `json:"key_insight"`
}

// ParseAnalysis 解析 LLM 回复。回复可能被 Markdown 代码块包裹；
// 缺少字段、非 JSON、情绪或分类不在枚举内都视为失败，不做修补。
func ParseAnalysis(reply string) (*model.Analysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}

	var missing []string
	if raw.Mood == nil {
		missing = append(missing, "mood")
	}
	if raw.Summary == nil {
		missing = append(missing, "summary")
	}
	if raw.Categories == nil {
		missing = append(missing, "categories")
	}
	if raw.KeyInsight == nil {
		missing = append(missing, "key_insight")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("reply missing required fields: %s", strings.Join(missing, ", "))
	}

	mood, err := model.ParseMood(*raw.Mood)
	if err != nil {
		return nil, err
	}
	categories := make([]model.Category, 0, len(*raw.Categories))
	seen := make(map[model.Category]bool)
	for _, c := range *raw.Categories {
		category, err := model.ParseCategory(c)
		if err != nil {
			return nil, err
		}
		if !seen[category] {
			seen[category] = true
			categories = append(categories, category)
		}
	}
	if strings.TrimSpace(*raw.Summary) == "" {
		return nil, errors.New("summary is empty")
	}

	return &model.Analysis{
		Mood:       mood,
		Summary:    strings.TrimSpace(*raw.Summary),
		Categories: categories,
		KeyInsight: strings.TrimSpace(*raw.KeyInsight),
	}, nil
}

// stripCodeFence 去掉 ```json ... ``` 或 ``` ... ``` 包裹。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
