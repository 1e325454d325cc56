package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"analytica-chat/internal/domain"
)

const (
	pkPrefixSession = "SESSION#"
	skPrefixMsg     = "MSG#"
	skMeta          = "META#"
	ttlDuration     = 30 * 24 * time.Hour

	StatusComplete = "complete"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores agent session history in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return pkPrefixSession + sessionID
}

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// GetHistory returns up to limit of the most recent turns, oldest first.
func (c *Client) GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Newest first so Limit keeps the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// GetTurnCount returns the number of completed turns in a session.
func (c *Client) GetTurnCount(ctx context.Context, sessionID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}
	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount decode turns: %w", err)
	}
	return turns, nil
}

// SaveTurn writes the turn and updated metadata in one transaction.
func (c *Client) SaveTurn(ctx context.Context, turn domain.Turn, meta domain.SessionMeta) error {
	if turn.PK == "" || turn.SK == "" {
		return errors.New("repository: SaveTurn: turn PK and SK are required")
	}
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: SaveTurn: meta PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// SaveCompletedTurn persists a finished exchange and bumps the turn count.
func (c *Client) SaveCompletedTurn(ctx context.Context, sessionID, userID, message, answer string, turns int) error {
	turn := c.NewTurn(sessionID, userID, message, StatusComplete)
	turn.Answer = answer
	if err := c.SaveTurn(ctx, turn, c.NewSessionMeta(sessionID, userID, turns)); err != nil {
		return fmt.Errorf("repository: SaveCompletedTurn: %w", err)
	}
	return nil
}

func (c *Client) NewTurn(sessionID, userID, text, status string) domain.Turn {
	return domain.Turn{
		PK:        sessionPK(sessionID),
		SK:        msgSK(c.now()),
		SessionID: sessionID,
		UserID:    userID,
		Text:      text,
		Status:    status,
		TTL:       c.ttlValue(),
	}
}

func (c *Client) NewSessionMeta(sessionID, userID string, turns int) domain.SessionMeta {
	return domain.SessionMeta{
		PK:           sessionPK(sessionID),
		SK:           skMeta,
		SessionID:    sessionID,
		UserID:       userID,
		LastActivity: c.now().UTC().Format(time.RFC3339),
		Turns:        turns,
		TTL:          c.ttlValue(),
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Turn{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Turn{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Turn{}, err
	}
	answer, _ := strAttr(item, "answer")
	status, _ := strAttr(item, "status")
	sessionID, _ := strAttr(item, "sessionId")
	userID, _ := strAttr(item, "userId")

	return domain.Turn{
		PK:        pk,
		SK:        sk,
		SessionID: sessionID,
		UserID:    userID,
		Text:      text,
		Answer:    answer,
		Status:    status,
	}, nil
}

func turnItem(t domain.Turn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: t.PK},
		"SK":        &types.AttributeValueMemberS{Value: t.SK},
		"sessionId": &types.AttributeValueMemberS{Value: t.SessionID},
		"userId":    &types.AttributeValueMemberS{Value: t.UserID},
		"text":      &types.AttributeValueMemberS{Value: t.Text},
		"answer":    &types.AttributeValueMemberS{Value: t.Answer},
		"status":    &types.AttributeValueMemberS{Value: t.Status},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(t.TTL, 10)},
	}
}

func metaItem(m domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: m.PK},
		"SK":           &types.AttributeValueMemberS{Value: m.SK},
		"sessionId":    &types.AttributeValueMemberS{Value: m.SessionID},
		"userId":       &types.AttributeValueMemberS{Value: m.UserID},
		"lastActivity": &types.AttributeValueMemberS{Value: m.LastActivity},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(m.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(m.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
