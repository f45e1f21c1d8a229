// Package synth decomposes a fetched requirements document into GitHub
// issue drafts using the generation provider. It never fails hard: every
// failure mode degrades into a well-formed single-issue request.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/Fumiaki0604/reqflow/internal/llm"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// issueCount is the number of issues the prompt demands. The model's output
// is not hard-validated against it: any parsed count >= 1 of well-formed
// items is accepted.
const issueCount = 2

const maxContentLen = 8000

// Intent carries the caller's query and target repository coordinates.
type Intent struct {
	Query string
	Owner string
	Repo  string
}

// Synthesizer turns a fetched document into a PublishRequest.
type Synthesizer struct {
	llm llm.Provider
}

// New creates a Synthesizer.
func New(provider llm.Provider) *Synthesizer {
	return &Synthesizer{llm: provider}
}

// issueSchema is the soft output contract sent to the provider.
var issueSchema = &llm.Schema{
	Type: "ARRAY",
	Items: &llm.Schema{
		Type: "OBJECT",
		Properties: map[string]*llm.Schema{
			"title": {Type: "STRING"},
			"body":  {Type: "STRING"},
		},
		Required: []string{"title", "body"},
	},
}

// Synthesize builds the generation prompt, invokes the provider, and parses
// the result into issues. It always returns a well-formed PublishRequest;
// degraded single-issue requests cover missing content, generation errors,
// and unparseable output. The second return value is empty on full success
// and carries the degradation reason otherwise, so callers can record it
// without scraping logs.
func (s *Synthesizer) Synthesize(ctx context.Context, doc *models.FetchedDocument, intent Intent) (*models.PublishRequest, string) {
	if doc == nil || doc.Error != "" {
		return s.degraded(doc, intent, degradedNotFound), "document unavailable"
	}
	if doc.Content == "" {
		return s.degraded(doc, intent, degradedNoContent), "document content empty"
	}

	if s.llm == nil {
		return s.degradedWithError(doc, intent, "LLM provider not configured"), "generation unavailable"
	}

	prompt := buildPrompt(doc, intent)

	raw, err := s.llm.CompleteJSON(ctx, prompt, issueSchema)
	if err != nil {
		log.Printf("Warning: issue synthesis generation failed: %v", err)
		return s.degradedWithError(doc, intent, err.Error()), "generation failed"
	}

	issues, err := parseIssues(raw)
	if err != nil {
		log.Printf("Warning: issue synthesis parse failed: %v", err)
		return s.degradedWithError(doc, intent, fmt.Sprintf("%v\n\nraw response:\n%s", err, truncateText(raw, 1000))), "response parse failed"
	}

	for i := range issues {
		issues[i].Body += provenanceFooter(doc)
	}

	return &models.PublishRequest{
		Owner:  intent.Owner,
		Repo:   intent.Repo,
		Issues: issues,
	}, ""
}

func buildPrompt(doc *models.FetchedDocument, intent Intent) string {
	return fmt.Sprintf(`あなたは要件定義ドキュメントを GitHub Issue に分解するアシスタントです。

以下は「%s」に関する要件ドキュメントです。
出典: %s「%s」（%s）

--- ドキュメントここから ---
%s
--- ドキュメントここまで ---

このドキュメントを機能・コンポーネント単位の独立した作業項目に分割してください。

条件:
- ちょうど%d件の Issue を作成すること
- title は作業内容がわかる簡潔な一文にすること
- body は構造化された markdown とし、背景・作業内容・完了条件を含めること
- 曖昧な点や不明な点は「要確認」として明示すること
- 出力はトップレベルの JSON 配列のみとすること（例: [{"title": "...", "body": "..."}]）
- JSON 以外の文章やコードフェンスは出力しないこと
- 参照元リンクは自動で付与されるため body に URL を含めないこと`,
		intent.Query,
		doc.Source.DisplayName(),
		doc.Title,
		doc.URL,
		truncateText(doc.Content, maxContentLen),
		issueCount,
	)
}

// parseIssues parses the model output as a JSON issue array. The output is
// untrusted text: code fences are stripped, and an object wrapper with an
// "issues" key is tolerated because some providers' JSON modes cannot emit
// a top-level array.
func parseIssues(raw string) ([]models.SynthesizedIssue, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var issues []models.SynthesizedIssue
	if err := json.Unmarshal([]byte(cleaned), &issues); err != nil {
		var wrapper struct {
			Issues []models.SynthesizedIssue `json:"issues"`
		}
		if err2 := json.Unmarshal([]byte(cleaned), &wrapper); err2 != nil || len(wrapper.Issues) == 0 {
			return nil, fmt.Errorf("failed to parse issue array: %w", err)
		}
		issues = wrapper.Issues
	}

	wellFormed := issues[:0]
	for _, is := range issues {
		if is.WellFormed() {
			wellFormed = append(wellFormed, is)
		}
	}

	if len(wellFormed) == 0 {
		return nil, fmt.Errorf("no well-formed issues in response")
	}

	return wellFormed, nil
}

// provenanceFooter is the appended link back to the originating document.
func provenanceFooter(doc *models.FetchedDocument) string {
	return fmt.Sprintf("\n\n---\n参照元: [%s](%s)（%s）", doc.Title, doc.URL, doc.Source.DisplayName())
}

type degradedKind int

const (
	degradedNotFound degradedKind = iota
	degradedNoContent
)

// degraded builds the single-issue fallback for missing documents or empty
// content. The two cases carry distinct messaging.
func (s *Synthesizer) degraded(doc *models.FetchedDocument, intent Intent, kind degradedKind) *models.PublishRequest {
	var title, lead string

	switch kind {
	case degradedNoContent:
		title = "【要確認】要件ドキュメントの本文を取得できませんでした"
		lead = "検索ではドキュメントが見つかりましたが、本文を取得できませんでした。"
	default:
		title = "【要確認】要件ドキュメントが見つかりませんでした"
		lead = "指定された検索条件では要件ドキュメントが見つかりませんでした。"
	}

	var sb strings.Builder
	sb.WriteString(lead)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "- 検索クエリ: %s\n", intent.Query)
	if doc != nil && doc.Error != "" {
		fmt.Fprintf(&sb, "- エラー: %s\n", doc.Error)
	}
	sb.WriteString("\n次のアクション:\n")
	sb.WriteString("- 検索キーワードを変えて再実行する\n")
	sb.WriteString("- 対象ドキュメントが検索対象のソースに存在するか確認する\n")
	sb.WriteString("- 各ソースの認証情報が設定されているか確認する")

	if doc != nil && doc.URL != "" {
		sb.WriteString(provenanceFooter(doc))
	}

	return &models.PublishRequest{
		Owner:  intent.Owner,
		Repo:   intent.Repo,
		Issues: []models.SynthesizedIssue{{Title: title, Body: sb.String()}},
	}
}

// degradedWithError builds the single-issue fallback for generation or
// parse failures, embedding the raw error for diagnosis.
func (s *Synthesizer) degradedWithError(doc *models.FetchedDocument, intent Intent, errText string) *models.PublishRequest {
	var sb strings.Builder
	sb.WriteString("要件ドキュメントの分解中にエラーが発生しました。手動で Issue を作成してください。\n\n")
	fmt.Fprintf(&sb, "- 検索クエリ: %s\n", intent.Query)
	fmt.Fprintf(&sb, "- エラー内容:\n\n```\n%s\n```", errText)
	sb.WriteString(provenanceFooter(doc))

	return &models.PublishRequest{
		Owner:  intent.Owner,
		Repo:   intent.Repo,
		Issues: []models.SynthesizedIssue{{
			Title: "【要確認】Issue の自動生成に失敗しました",
			Body:  sb.String(),
		}},
	}
}

// truncateText limits text to maxLen bytes, backing off to a rune boundary
// so multi-byte content is never cut mid-rune.
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
