package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// HistoryLimit caps how many records ListByUser returns.
const HistoryLimit = 50

var ErrNotFound = errors.New("record not found")

// PersistenceError wraps a failed write. It is logged and alerted on, never
// returned to an HTTP caller.
type PersistenceError struct {
	RecordID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist record %s: %v", e.RecordID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store keeps fortune records in a table keyed by "id", with a userId/createdAt
// secondary index for history.
type Store struct {
	client    DynamoClient
	table     string
	userIndex string
}

func New(client DynamoClient, table, userIndex string) *Store {
	if userIndex == "" {
		userIndex = "UserIdIndex"
	}
	return &Store{client: client, table: strings.TrimSpace(table), userIndex: userIndex}
}

func useJSONTags(o *attributevalue.EncoderOptions)   { o.TagKey = "json" }
func decodeJSONTags(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

func (s *Store) Put(ctx context.Context, rec Record) error {
	if s.table == "" {
		return &PersistenceError{RecordID: rec.ID, Err: errors.New("FATE_TABLE_NAME is not set")}
	}
	item, err := attributevalue.MarshalMapWithOptions(rec, useJSONTags)
	if err != nil {
		return &PersistenceError{RecordID: rec.ID, Err: fmt.Errorf("marshal: %w", err)}
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return &PersistenceError{RecordID: rec.ID, Err: fmt.Errorf("dynamodb PutItem: %w", err)}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]ddbtypes.AttributeValue{
			"id": &ddbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var rec Record
	if err := attributevalue.UnmarshalMapWithOptions(out.Item, &rec, decodeJSONTags); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return &rec, nil
}

// ListByUser returns the user's most recent records, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(s.userIndex),
		KeyConditionExpression: aws.String("userId = :u"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":u": &ddbtypes.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(HistoryLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb Query %s: %w", s.userIndex, err)
	}
	recs := make([]Record, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMapsWithOptions(out.Items, &recs, decodeJSONTags); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return recs, nil
}

// ScanCreatedOn returns every record created on day (YYYY-MM-DD, UTC). It
// pages through the whole table and is meant for the nightly export only.
func (s *Store) ScanCreatedOn(ctx context.Context, day string) ([]Record, error) {
	var (
		recs  []Record
		start map[string]ddbtypes.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.table),
			FilterExpression: aws.String("begins_with(createdAt, :d)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":d": &ddbtypes.AttributeValueMemberS{Value: day},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan: %w", err)
		}
		var page []Record
		if err := attributevalue.UnmarshalListOfMapsWithOptions(out.Items, &page, decodeJSONTags); err != nil {
			return nil, fmt.Errorf("unmarshal scan page: %w", err)
		}
		recs = append(recs, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return recs, nil
		}
		start = out.LastEvaluatedKey
	}
}
