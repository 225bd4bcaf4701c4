package services

import (
	"back/config"
	"back/models"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAIService は埋め込みとチャット補完のプロバイダーラッパー
type OpenAIService struct {
	apiKey         string
	chatModel      string
	embeddingModel string
	embeddingDim   int
	client         *openai.Client
	rest           *resty.Client
}

func NewOpenAIService() *OpenAIService {
	apiKey := config.GetOpenAIKey()
	if apiKey == "" {
		log.Println("OPENAI_API_KEY is not set")
	}

	return &OpenAIService{
		apiKey:         apiKey,
		chatModel:      config.GetChatModel(),
		embeddingModel: config.GetEmbeddingModel(),
		embeddingDim:   config.GetEmbeddingDim(),
		client:         openai.NewClient(apiKey),
		rest:           resty.New(),
	}
}

// Embed はテキストをベクトル化する
// 失敗時にゼロベクトルで代替してはいけない（類似度ランキングが壊れるため）
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := s.client.CreateEmbeddings(
		ctx,
		openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(s.embeddingModel),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings received", ErrEmbeddingUnavailable)
	}

	embedding := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float64(v)
	}

	// 次元数が合わないベクトルを保存するとインデックス全体が壊れる
	if len(embedding) != s.embeddingDim {
		return nil, fmt.Errorf("%w: unexpected embedding dimension %d (want %d)", ErrEmbeddingUnavailable, len(embedding), s.embeddingDim)
	}

	return embedding, nil
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete は組み立て済みプロンプトをチャット補完APIに送る
// 画像付きのメッセージはマルチモーダルなcontentとして送信する
func (s *OpenAIService) Complete(ctx context.Context, prompt models.PromptRequest) (string, error) {
	openAIURL := "https://api.openai.com/v1/chat/completions"
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrCompletionUnavailable)
	}

	messages := make([]map[string]interface{}, 0, len(prompt.Messages))
	for _, msg := range prompt.Messages {
		if msg.ImageRef != "" {
			parts := []map[string]interface{}{}
			if msg.Content != "" {
				parts = append(parts, map[string]interface{}{
					"type": "text",
					"text": msg.Content,
				})
			}
			parts = append(parts, map[string]interface{}{
				"type": "image_url",
				"image_url": map[string]interface{}{
					"url": msg.ImageRef,
				},
			})
			messages = append(messages, map[string]interface{}{
				"role":    msg.Role,
				"content": parts,
			})
			continue
		}

		messages = append(messages, map[string]interface{}{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	requestBody := map[string]interface{}{
		"model":    s.chatModel,
		"messages": messages,
	}

	resp, err := s.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(requestBody).
		Post(openAIURL)

	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}

	// 4xxはリクエスト不正かポリシー拒否、それ以外の非200はプロバイダー障害
	if resp.StatusCode() != http.StatusOK {
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return "", fmt.Errorf("%w: status %d: %s", ErrCompletionRejected, resp.StatusCode(), resp.String())
		}
		return "", fmt.Errorf("%w: status %d", ErrCompletionUnavailable, resp.StatusCode())
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrCompletionUnavailable, err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: no content in response", ErrCompletionRejected)
	}

	return result.Choices[0].Message.Content, nil
}
