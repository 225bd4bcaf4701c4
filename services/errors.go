package services

import "errors"

// エラー種別の定義
// 必須経路（短期記憶の取得・補完・保存）の失敗だけが呼び出し元に伝播する
// 長期記憶まわりの失敗は短期記憶のみのコンテキストに縮退してログに残す
var (
	ErrEmbeddingUnavailable  = errors.New("embedding unavailable")
	ErrSearchUnavailable     = errors.New("similarity search unavailable")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrCompletionUnavailable = errors.New("completion unavailable")
	ErrCompletionRejected    = errors.New("completion rejected")
)
