package services

import (
	"back/models"
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	conversationsTable = "Conversations"
	messagesTable      = "Messages"
)

// DynamoStore は会話スレッドとメッセージログのストア
// Conversations: UserID(HASH) + ConversationID(RANGE)
// Messages:      ConversationID(HASH) + Timestamp(RANGE, RFC3339Nano)
type DynamoStore struct {
	db *dynamodb.Client
}

func NewDynamoStore(endpoint string, region string) (*DynamoStore, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID: "dummy", SecretAccessKey: "dummy", SessionToken: "dummy",
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %v", err)
	}

	store := &DynamoStore{db: dynamodb.NewFromConfig(cfg)}
	store.ensureTablesExist()
	return store, nil
}

func (ds *DynamoStore) ensureTablesExist() {
	_, err := ds.db.CreateTable(context.TODO(), &dynamodb.CreateTableInput{
		TableName: aws.String(conversationsTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("UserID"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("ConversationID"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("UserID"),
				KeyType:       types.KeyTypeHash, // パーティションキー
			},
			{
				AttributeName: aws.String("ConversationID"),
				KeyType:       types.KeyTypeRange, // ソートキー
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		fmt.Printf("Table might already exist: %v\n", err)
	}

	_, err = ds.db.CreateTable(context.TODO(), &dynamodb.CreateTableInput{
		TableName: aws.String(messagesTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("ConversationID"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("Timestamp"),
				AttributeType: types.ScalarAttributeTypeS, // RFC3339Nano形式で保存
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("ConversationID"),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String("Timestamp"),
				KeyType:       types.KeyTypeRange,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		fmt.Printf("Table might already exist: %v\n", err)
	}
}

// GetOrCreateDefaultConversation はユーザーの最新の会話を返す
// 会話が1つも無ければ新規作成する（初回ユーザーが明示的な作成なしで話し始められるように）
func (ds *DynamoStore) GetOrCreateDefaultConversation(ctx context.Context, userID string) (models.Conversation, error) {
	conversations, err := ds.ListConversations(ctx, userID)
	if err != nil {
		return models.Conversation{}, err
	}

	if len(conversations) > 0 {
		// ListConversationsはUpdatedAtの降順で返す
		return conversations[0], nil
	}

	now := time.Now()
	conversation := models.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = ds.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(conversationsTable),
		Item: map[string]types.AttributeValue{
			"UserID":         &types.AttributeValueMemberS{Value: conversation.UserID},
			"ConversationID": &types.AttributeValueMemberS{Value: conversation.ID},
			"CreatedAt":      &types.AttributeValueMemberS{Value: conversation.CreatedAt.Format(time.RFC3339Nano)},
			"UpdatedAt":      &types.AttributeValueMemberS{Value: conversation.UpdatedAt.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return models.Conversation{}, fmt.Errorf("%w: failed to create conversation: %v", ErrPersistenceFailure, err)
	}

	return conversation, nil
}

func (ds *DynamoStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	result, err := ds.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(conversationsTable),
		KeyConditionExpression: aws.String("UserID = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query conversations: %v", ErrPersistenceFailure, err)
	}

	conversations := make([]models.Conversation, 0)
	for _, item := range result.Items {
		conversations = append(conversations, conversationFromItem(item))
	}

	// 更新が新しい順に並び替え
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations, nil
}

func (ds *DynamoStore) TouchConversation(ctx context.Context, userID string, conversationID string) error {
	_, err := ds.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(conversationsTable),
		Key: map[string]types.AttributeValue{
			"UserID":         &types.AttributeValueMemberS{Value: userID},
			"ConversationID": &types.AttributeValueMemberS{Value: conversationID},
		},
		UpdateExpression: aws.String("SET UpdatedAt = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to touch conversation: %v", ErrPersistenceFailure, err)
	}
	return nil
}

// AppendMessage はメッセージをログ末尾に追記する（IDとタイムスタンプはストアが採番）
func (ds *DynamoStore) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.ID = uuid.New().String()
	msg.Timestamp = time.Now()

	item := map[string]types.AttributeValue{
		"ID":             &types.AttributeValueMemberS{Value: msg.ID},
		"ConversationID": &types.AttributeValueMemberS{Value: msg.ConversationID},
		"UserID":         &types.AttributeValueMemberS{Value: msg.UserID},
		"Role":           &types.AttributeValueMemberS{Value: msg.Role},
		"Content":        &types.AttributeValueMemberS{Value: msg.Content},
		"HasEmbedding":   &types.AttributeValueMemberBOOL{Value: msg.HasEmbedding},
		"Timestamp":      &types.AttributeValueMemberS{Value: msg.Timestamp.Format(time.RFC3339Nano)},
	}
	if msg.ImageRef != "" {
		item["ImageRef"] = &types.AttributeValueMemberS{Value: msg.ImageRef}
	}

	_, err := ds.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(messagesTable),
		Item:      item,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: failed to append message: %v", ErrPersistenceFailure, err)
	}

	return msg, nil
}

// RecentMessages は直近n件を古い順で返す（会話がそれより短ければある分だけ）
func (ds *DynamoStore) RecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	result, err := ds.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(messagesTable),
		KeyConditionExpression: aws.String("ConversationID = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(false), // 新しい順に取得
		Limit:            aws.Int32(int32(n)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query recent messages: %v", ErrPersistenceFailure, err)
	}

	messages := make([]models.Message, 0)
	for _, item := range result.Items {
		messages = append(messages, messageFromItem(item))
	}

	// 古い順に反転して返す
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (ds *DynamoStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	result, err := ds.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(messagesTable),
		KeyConditionExpression: aws.String("ConversationID = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(true), // 古い順に並び替え
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query messages: %v", ErrPersistenceFailure, err)
	}

	messages := make([]models.Message, 0)
	for _, item := range result.Items {
		messages = append(messages, messageFromItem(item))
	}

	return messages, nil
}

// MarkMessageEmbedded は埋め込みがインデックスに登録済みであることを記録する
func (ds *DynamoStore) MarkMessageEmbedded(ctx context.Context, conversationID string, timestamp time.Time) error {
	_, err := ds.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(messagesTable),
		Key: map[string]types.AttributeValue{
			"ConversationID": &types.AttributeValueMemberS{Value: conversationID},
			"Timestamp":      &types.AttributeValueMemberS{Value: timestamp.Format(time.RFC3339Nano)},
		},
		UpdateExpression: aws.String("SET HasEmbedding = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to mark message embedded: %v", ErrPersistenceFailure, err)
	}
	return nil
}

func (ds *DynamoStore) UpdateMessageFlag(ctx context.Context, conversationID string, timestamp string, isLiked, isDisliked *bool) error {
	log.Printf("Updating message - ConversationID: %s, Timestamp: %s, IsLiked: %v, IsDisliked: %v", conversationID, timestamp, isLiked, isDisliked)

	// 更新フィールドを構築
	updateExpression := "SET"
	expressionAttributeValues := map[string]types.AttributeValue{}
	expressionAttributeNames := map[string]string{}

	if isLiked != nil {
		updateExpression += " #isLiked = :isLiked,"
		expressionAttributeValues[":isLiked"] = &types.AttributeValueMemberBOOL{Value: *isLiked}
		expressionAttributeNames["#isLiked"] = "IsLiked"
	}
	if isDisliked != nil {
		updateExpression += " #isDisliked = :isDisliked,"
		expressionAttributeValues[":isDisliked"] = &types.AttributeValueMemberBOOL{Value: *isDisliked}
		expressionAttributeNames["#isDisliked"] = "IsDisliked"
	}

	if len(expressionAttributeValues) == 0 {
		return fmt.Errorf("no flags to update")
	}

	// 末尾のカンマを削除
	updateExpression = updateExpression[:len(updateExpression)-1]

	_, err := ds.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(messagesTable),
		Key: map[string]types.AttributeValue{
			"ConversationID": &types.AttributeValueMemberS{Value: conversationID},
			"Timestamp":      &types.AttributeValueMemberS{Value: timestamp},
		},
		UpdateExpression:          aws.String(updateExpression),
		ExpressionAttributeValues: expressionAttributeValues,
		ExpressionAttributeNames:  expressionAttributeNames,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to update message flag: %v", ErrPersistenceFailure, err)
	}

	return nil
}

// ScanPendingMessages は埋め込み未登録かつ本文のあるメッセージを集める（バッチ再埋め込み用）
func (ds *DynamoStore) ScanPendingMessages(ctx context.Context) ([]models.Message, error) {
	result, err := ds.db.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(messagesTable),
		FilterExpression: aws.String("HasEmbedding = :false AND Content <> :empty"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":empty": &types.AttributeValueMemberS{Value: ""},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan pending messages: %v", ErrPersistenceFailure, err)
	}

	messages := make([]models.Message, 0)
	for _, item := range result.Items {
		messages = append(messages, messageFromItem(item))
	}

	return messages, nil
}

func conversationFromItem(item map[string]types.AttributeValue) models.Conversation {
	conv := models.Conversation{}
	if v, ok := item["UserID"].(*types.AttributeValueMemberS); ok {
		conv.UserID = v.Value
	}
	if v, ok := item["ConversationID"].(*types.AttributeValueMemberS); ok {
		conv.ID = v.Value
	}
	if v, ok := item["Title"].(*types.AttributeValueMemberS); ok {
		conv.Title = v.Value
	}
	if v, ok := item["CreatedAt"].(*types.AttributeValueMemberS); ok {
		conv.CreatedAt, _ = time.Parse(time.RFC3339Nano, v.Value)
	}
	if v, ok := item["UpdatedAt"].(*types.AttributeValueMemberS); ok {
		conv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v.Value)
	}
	return conv
}

func messageFromItem(item map[string]types.AttributeValue) models.Message {
	msg := models.Message{}
	if v, ok := item["ID"].(*types.AttributeValueMemberS); ok {
		msg.ID = v.Value
	}
	if v, ok := item["ConversationID"].(*types.AttributeValueMemberS); ok {
		msg.ConversationID = v.Value
	}
	if v, ok := item["UserID"].(*types.AttributeValueMemberS); ok {
		msg.UserID = v.Value
	}
	if v, ok := item["Role"].(*types.AttributeValueMemberS); ok {
		msg.Role = v.Value
	}
	if v, ok := item["Content"].(*types.AttributeValueMemberS); ok {
		msg.Content = v.Value
	}
	if v, ok := item["ImageRef"].(*types.AttributeValueMemberS); ok {
		msg.ImageRef = v.Value
	}
	if v, ok := item["HasEmbedding"].(*types.AttributeValueMemberBOOL); ok {
		msg.HasEmbedding = v.Value
	}
	if v, ok := item["IsLiked"].(*types.AttributeValueMemberBOOL); ok {
		liked := v.Value
		msg.IsLiked = &liked
	}
	if v, ok := item["IsDisliked"].(*types.AttributeValueMemberBOOL); ok {
		disliked := v.Value
		msg.IsDisliked = &disliked
	}
	if v, ok := item["Timestamp"].(*types.AttributeValueMemberS); ok {
		msg.Timestamp, _ = time.Parse(time.RFC3339Nano, v.Value)
	}
	return msg
}
