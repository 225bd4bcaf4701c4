package services

import (
	"back/models"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

// PgVectorIndex はメッセージ埋め込みの類似検索インデックス
// 埋め込みの計算に成功したメッセージだけが行を持つので、
// 埋め込みの無いメッセージは構造的に検索結果へ現れない
type PgVectorIndex struct {
	db  *sql.DB
	dim int
}

func NewPgVectorIndex(postgresURI string, dim int) (*PgVectorIndex, error) {
	connStr := postgresURI
	if !strings.Contains(postgresURI, "sslmode=") {
		if strings.Contains(postgresURI, "?") {
			connStr += "&sslmode=disable"
		} else {
			connStr += " sslmode=disable"
		}
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %v", err)
	}

	// 接続テスト
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %v", err)
	}

	index := &PgVectorIndex{db: db, dim: dim}
	if err := index.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return index, nil
}

func (pi *PgVectorIndex) ensureSchema() error {
	if _, err := pi.db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	// 次元数を変えた場合はテーブルを作り直して再埋め込みする運用
	schema := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS message_embeddings (
            message_id      text PRIMARY KEY,
            conversation_id text NOT NULL,
            user_id         text NOT NULL,
            role            text NOT NULL,
            content         text NOT NULL,
            vector          vector(%d) NOT NULL,
            created_at      timestamptz NOT NULL
        )
    `, pi.dim)
	if _, err := pi.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create message_embeddings table: %v", err)
	}

	return nil
}

// IndexMessage はメッセージの埋め込みを登録する
// 埋め込みは一度だけ設定され、再計算はしない
func (pi *PgVectorIndex) IndexMessage(ctx context.Context, msg models.Message, vector []float64) error {
	record := models.MessageEmbedding{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Role:           msg.Role,
		Content:        msg.Content,
		Vector:         pq.Float64Array(vector),
		CreatedAt:      msg.Timestamp,
	}

	query := `
        INSERT INTO message_embeddings
        (message_id, conversation_id, user_id, role, content, vector, created_at)
        VALUES ($1, $2, $3, $4, $5, $6::float8[]::vector, $7)
        ON CONFLICT (message_id) DO NOTHING
    `

	_, err := pi.db.ExecContext(ctx, query,
		record.MessageID, record.ConversationID, record.UserID, record.Role, record.Content, record.Vector, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to index message: %v", ErrSearchUnavailable, err)
	}

	return nil
}

// SearchSimilar はユーザーの全履歴からコサイン類似度の上位limit件を返す
// 類似度の降順、同点なら新しいメッセージが先
func (pi *PgVectorIndex) SearchSimilar(ctx context.Context, userID string, vector []float64, limit int) ([]models.RetrievedMemory, error) {
	query := `
        SELECT message_id, conversation_id, user_id, role, content,
               1 - (vector <=> $2::float8[]::vector) AS score,
               created_at
        FROM message_embeddings
        WHERE user_id = $1
        ORDER BY vector <=> $2::float8[]::vector, created_at DESC
        LIMIT $3
    `

	rows, err := pi.db.QueryContext(ctx, query, userID, pq.Float64Array(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search failed: %v", ErrSearchUnavailable, err)
	}
	defer rows.Close()

	var memories []models.RetrievedMemory
	for rows.Next() {
		var mem models.RetrievedMemory
		mem.Message.HasEmbedding = true
		err := rows.Scan(
			&mem.Message.ID,
			&mem.Message.ConversationID,
			&mem.Message.UserID,
			&mem.Message.Role,
			&mem.Message.Content,
			&mem.Score,
			&mem.Message.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: row scan failed: %v", ErrSearchUnavailable, err)
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	return memories, nil
}
