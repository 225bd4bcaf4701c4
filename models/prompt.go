package models

// PromptMessage はチャット補完に渡す1メッセージ
// ImageRef が空でなければマルチモーダルなコンテンツとして送信される
type PromptMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageRef string `json:"image_ref,omitempty"`
}

// PromptRequest は組み立て済みのプロンプト全体
type PromptRequest struct {
	Messages []PromptMessage `json:"messages"`
}
