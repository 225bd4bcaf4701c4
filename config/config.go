package config

import (
    "os"
    "strconv"
)

func GetOpenAIKey() string {
    return os.Getenv("OPENAI_API_KEY")
}

func GetChatModel() string {
    if model := os.Getenv("OPENAI_CHAT_MODEL"); model != "" {
        return model
    }
    return "gpt-4o-mini"
}

func GetEmbeddingModel() string {
    if model := os.Getenv("OPENAI_EMBEDDING_MODEL"); model != "" {
        return model
    }
    return "text-embedding-ada-002"
}

// GetEmbeddingDim は埋め込みベクトルの次元数を返します
// 次元数を変更すると保存済みのベクトルは全て無効になるので注意
func GetEmbeddingDim() int {
    if dim := os.Getenv("EMBEDDING_DIM"); dim != "" {
        if n, err := strconv.Atoi(dim); err == nil && n > 0 {
            return n
        }
    }
    return 1536
}

func GetPostgresURI() string {
    if uri := os.Getenv("POSTGRES_URI"); uri != "" {
        return uri
    }
    return "host=localhost port=5432 user=postgres password=postgres dbname=tutor sslmode=disable"
}

func GetDynamoEndpoint() string {
    if endpoint := os.Getenv("DYNAMODB_ENDPOINT"); endpoint != "" {
        return endpoint
    }
    return "http://localhost:8000"
}

func GetDynamoRegion() string {
    if region := os.Getenv("DYNAMODB_REGION"); region != "" {
        return region
    }
    return "us-east-1"
}

func GetServerPort() string {
    if port := os.Getenv("PORT"); port != "" {
        return ":" + port
    }
    return ":8080"
}
