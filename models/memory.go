package models

// RetrievedMemory は類似検索で想起されたメッセージと類似度のペア
// リクエスト処理中だけ存在し、永続化はしない
type RetrievedMemory struct {
	Message Message `json:"message"`
	Score   float64 `json:"score"`
}

// FusedContext は長期記憶と短期記憶を統合したコンテキスト
// LongTermOnly は短期記憶と重複しないものだけ（類似度の降順）
// ShortTerm はアクティブな会話の直近メッセージ（古い順）
type FusedContext struct {
	LongTermOnly []RetrievedMemory `json:"long_term_only"`
	ShortTerm    []Message         `json:"short_term"`
}
