// Package dynamo implements the user store on a DynamoDB table keyed by "id"
// with a global secondary index on "scope".
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

const (
	idAttribute    = "id"
	scopeAttribute = "scope"
)

// ErrEmptyScope is the cause of the conversion error returned for records
// without a scope. DynamoDB does not accept empty strings as index keys.
var ErrEmptyScope = errors.New("dynamodb store requires a non-empty scope")

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store is generic over records whose attributevalue encoding carries "id"
// and "scope" attributes. Fetch and Exists read consistently; List goes
// through the scope index, which DynamoDB only updates eventually, and is
// sorted by id.
type Store[T repository.Record] struct {
	api        API
	table      string
	scopeIndex string
}

var _ repository.UserStore[model.User] = (*Store[model.User])(nil)

func New[T repository.Record](api API, table, scopeIndex string) *Store[T] {
	return &Store[T]{api: api, table: table, scopeIndex: scopeIndex}
}

func (s *Store[T]) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		idAttribute: &types.AttributeValueMemberS{Value: id},
	}
}

func (s *Store[T]) Add(ctx context.Context, record T) error {
	if record.RecordScope() == "" {
		return repository.Conversion(fmt.Errorf("user %q: %w", record.RecordID(), ErrEmptyScope))
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return repository.Conversion(fmt.Errorf("marshaling record: %w", err))
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": idAttribute},
	})
	if isConditionFailed(err) {
		return repository.Duplicate(record.RecordID())
	}
	if err != nil {
		return repository.Storage("putting user to DynamoDB", err)
	}
	return nil
}

func (s *Store[T]) Update(ctx context.Context, record T) error {
	if record.RecordScope() == "" {
		return repository.Conversion(fmt.Errorf("user %q: %w", record.RecordID(), ErrEmptyScope))
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return repository.Conversion(fmt.Errorf("marshaling record: %w", err))
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": idAttribute},
	})
	if isConditionFailed(err) {
		return repository.NotFound(record.RecordID())
	}
	if err != nil {
		return repository.Storage("replacing user in DynamoDB", err)
	}
	return nil
}

func (s *Store[T]) Remove(ctx context.Context, id string) (T, error) {
	var zero T
	out, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.table),
		Key:                      s.key(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": idAttribute},
		ReturnValues:             types.ReturnValueAllOld,
	})
	if isConditionFailed(err) {
		return zero, repository.NotFound(id)
	}
	if err != nil {
		return zero, repository.Storage("deleting user from DynamoDB", err)
	}
	return unmarshal[T](id, out.Attributes)
}

func (s *Store[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return zero, repository.Storage("getting user from DynamoDB", err)
	}
	if out.Item == nil {
		return zero, repository.NotFound(id)
	}
	return unmarshal[T](id, out.Item)
}

func (s *Store[T]) List(ctx context.Context, scopeID string) ([]T, error) {
	records := make([]T, 0)
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(s.table),
			IndexName:                aws.String(s.scopeIndex),
			KeyConditionExpression:   aws.String("#scope = :scope"),
			ExpressionAttributeNames: map[string]string{"#scope": scopeAttribute},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":scope": &types.AttributeValueMemberS{Value: scopeID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, repository.Storage("querying users from DynamoDB", err)
		}

		for _, item := range out.Items {
			record, err := unmarshal[T]("", item)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordID() < records[j].RecordID()
	})
	return records, nil
}

func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.table),
		Key:                      s.key(id),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#id"),
		ExpressionAttributeNames: map[string]string{"#id": idAttribute},
	})
	if err != nil {
		return false, repository.Storage("getting user from DynamoDB", err)
	}
	return out.Item != nil, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func unmarshal[T any](id string, item map[string]types.AttributeValue) (T, error) {
	var record T
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		var zero T
		return zero, repository.Conversion(fmt.Errorf("unmarshaling record %q: %w", id, err))
	}
	return record, nil
}
