package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func UserPK(sub string) string {
	return fmt.Sprintf("USER#%s", sub)
}

type UpdateClient interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Directory is the users table, one item per user keyed by PK=USER#<sub>.
type Directory struct {
	client UpdateClient
	table  string
	now    func() time.Time
}

func NewDirectory(client UpdateClient, table string) *Directory {
	return &Directory{client: client, table: table, now: time.Now}
}

func (d *Directory) SaveImageURL(ctx context.Context, sub, imageURL string) error {
	if d.table == "" {
		return fmt.Errorf("USERS_TABLE is not set")
	}
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: UserPK(sub)},
		},
		UpdateExpression: aws.String("SET ProfileImageUrl = :u, UpdatedAt = :t"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":u": &ddbtypes.AttributeValueMemberS{Value: imageURL},
			":t": &ddbtypes.AttributeValueMemberS{Value: d.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb UpdateItem %s: %w", UserPK(sub), err)
	}
	return nil
}
