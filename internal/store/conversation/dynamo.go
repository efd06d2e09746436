package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/campusmind/portal/backend/internal/config"
	"github.com/campusmind/portal/backend/internal/model/chat"
)

// sortKeyLayout 固定宽度，保证字典序与时间序一致。
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

const (
	attrUserID    = "UserID"
	attrSortKey   = "SortKey"
	attrMessageID = "MessageID"
	attrSender    = "Sender"
	attrText      = "Text"
	attrTimestamp = "Timestamp"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoStore keeps conversations in a DynamoDB table keyed by user and time.
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, now: time.Now}
}

// NewDynamoClient 按配置创建客户端，Endpoint 非空时指向 DynamoDB Local 等自定义地址。
func NewDynamoClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(customResolver))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			},
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

// EnsureTable creates the table when it does not exist yet.
func (s *DynamoStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrUserID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSortKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrUserID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSortKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err == nil {
		return nil
	}

	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	return fmt.Errorf("create table %s: %w", s.table, err)
}

// Append implements Store.
func (s *DynamoStore) Append(ctx context.Context, userID string, msg chat.Message) (chat.Message, error) {
	msg, err := prepare(userID, msg, s.now)
	if err != nil {
		return chat.Message{}, err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			attrUserID:    &types.AttributeValueMemberS{Value: msg.UserID},
			attrSortKey:   &types.AttributeValueMemberS{Value: sortKey(msg)},
			attrMessageID: &types.AttributeValueMemberS{Value: msg.ID},
			attrSender:    &types.AttributeValueMemberS{Value: string(msg.Sender)},
			attrText:      &types.AttributeValueMemberS{Value: msg.Text},
			attrTimestamp: &types.AttributeValueMemberS{Value: msg.Timestamp.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("put chat message: %w", err)
	}
	return msg, nil
}

// List implements Store, following pagination until the whole history is read.
func (s *DynamoStore) List(ctx context.Context, userID string) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, 16)
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("UserID = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: ownerKey(userID)},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query chat messages: %w", err)
		}

		for _, item := range out.Items {
			msg, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			messages = append(messages, msg)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return messages, nil
}

func sortKey(msg chat.Message) string {
	return msg.Timestamp.UTC().Format(sortKeyLayout) + "#" + msg.ID
}

func decodeItem(item map[string]types.AttributeValue) (chat.Message, error) {
	str := func(name string) string {
		if v, ok := item[name].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}

	ts, err := time.Parse(time.RFC3339Nano, str(attrTimestamp))
	if err != nil {
		return chat.Message{}, fmt.Errorf("decode chat message timestamp: %w", err)
	}
	return chat.Message{
		ID:        str(attrMessageID),
		UserID:    str(attrUserID),
		Sender:    chat.Sender(str(attrSender)),
		Text:      str(attrText),
		Timestamp: ts.UTC(),
	}, nil
}
