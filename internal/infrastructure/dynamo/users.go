package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-sale-provisioner/internal/domain"
)

// DynamoDB attribute names of the users table.
const (
	fieldEmail      = "email"
	fieldSecretHash = "secret_hash"
	fieldCredits    = "credits"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

// API is the subset of *dynamodb.Client used by UserRepo.
type API interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, now: func() time.Time { return time.Now().UTC() }}
}

// Upsert writes the record with a single UpdateItem call, so the item is
// replaced atomically. created_at is only set when the item is new.
func (r *UserRepo) Upsert(ctx context.Context, email, secretHash string, credits int) (*domain.UserRecord, error) {
	now := r.now().Format(time.RFC3339Nano)
	ue, err := buildUpdateExpr(
		map[string]interface{}{
			fieldSecretHash: secretHash,
			fieldCredits:    credits,
			fieldUpdatedAt:  now,
		},
		map[string]interface{}{fieldCreatedAt: now},
	)
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w: %w", domain.ErrStorage, err)
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldEmail, email),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, apiError("dynamodb update item", err)
	}
	var u domain.UserRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w: %w", domain.ErrStorage, err)
	}
	return &u, nil
}

func (r *UserRepo) Get(ctx context.Context, email string) (*domain.UserRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, apiError("dynamodb get item", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
	}
	var u domain.UserRecord
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w: %w", domain.ErrStorage, err)
	}
	return &u, nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  strKey(fieldEmail, email),
		ProjectionExpression: aws.String("#e"),
		ExpressionAttributeNames: map[string]string{
			"#e": fieldEmail,
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, apiError("dynamodb get item", err)
	}
	return out.Item != nil, nil
}

// Snapshot scans the whole table page by page.
func (r *UserRepo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:      aws.String(r.tableName),
		ConsistentRead: aws.Bool(true),
	})
	var users []domain.UserRecord
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, apiError("dynamodb scan", err)
		}
		var batch []domain.UserRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w: %w", domain.ErrStorage, err)
		}
		users = append(users, batch...)
	}
	return domain.SnapshotOf(users), nil
}

// Ping checks that the table is reachable and active.
func (r *UserRepo) Ping(ctx context.Context) error {
	out, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return apiError("dynamodb describe table", err)
	}
	if out.Table == nil || out.Table.TableStatus != types.TableStatusActive {
		return fmt.Errorf("table %s not active: %w", r.tableName, domain.ErrStorage)
	}
	return nil
}
