// Package ddbstore implements store.Store on a single DynamoDB table with a
// string hash key "pk" and a numeric range key "sk".
package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	"github.com/scribble-board/scribble/scribble-board/store"
)

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

const maxRetries = 5

// Store provides access to the board table.
type Store struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

var _ store.Store = (*Store)(nil)

// New creates a store on the named table.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *Store {
	return &Store{
		table:     ddb.New(api).MustTable(tableName, store.Item{}),
		api:       api,
		tableName: tableName,
	}
}

// CreateTableIfNotExists creates the table and enables expiry on the ttl
// attribute. Used for local development against DynamoDB local.
func (s *Store) CreateTableIfNotExists(ctx context.Context) error {
	if err := s.table.CreateTableIfNotExists(ctx); err != nil {
		return fmt.Errorf("failed to create table %v: %w", s.tableName, err)
	}
	_, err := s.api.UpdateTimeToLiveWithContext(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.tableName),
		TimeToLiveSpecification: &dynamodb.TimeToLiveSpecification{
			AttributeName: aws.String("ttl"),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil && !isCode(err, "ValidationException") {
		return fmt.Errorf("failed to enable ttl on table %v: %w", s.tableName, err)
	}
	return nil
}

// DeleteTable drops the table.
func (s *Store) DeleteTable(ctx context.Context) error {
	_, err := s.api.DeleteTableWithContext(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil && !isCode(err, dynamodb.ErrCodeResourceNotFoundException) {
		return fmt.Errorf("failed to delete table %v: %w", s.tableName, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, pk string, sk int64) (store.Item, error) {
	var item store.Item
	if err := s.table.Get(pk).Range(sk).ConsistentRead(true).ScanWithContext(ctx, &item); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return store.Item{}, store.ErrNotFound
		}
		return store.Item{}, fmt.Errorf("failed to get item %v/%v: %w", pk, sk, err)
	}
	return item, nil
}

func (s *Store) Query(ctx context.Context, pk string, after int64) ([]store.Item, error) {
	var items []store.Item
	err := s.table.Query("#PK = ? AND #SK > ?", pk, after).
		ConsistentRead(true).
		FindAllWithContext(ctx, &items)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition %v after %v: %w", pk, after, err)
	}
	return items, nil
}

func (s *Store) Last(ctx context.Context, pk string) (store.Item, error) {
	output, err := s.api.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]*string{
			"#pk": aws.String("pk"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk": {S: aws.String(pk)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int64(1),
	})
	if err != nil {
		return store.Item{}, fmt.Errorf("failed to query last item of %v: %w", pk, err)
	}
	if len(output.Items) == 0 {
		return store.Item{}, store.ErrNotFound
	}

	var item store.Item
	if err := dynamodbattribute.UnmarshalMap(output.Items[0], &item); err != nil {
		return store.Item{}, fmt.Errorf("failed to unmarshal last item of %v: %w", pk, err)
	}
	return item, nil
}

// Scan reads eventually consistent pages; a board created during the scan may
// be missed and is picked up by the next caller.
func (s *Store) Scan(ctx context.Context, prefix string) ([]store.Item, error) {
	var items []store.Item
	err := s.table.Scan().
		Filter("begins_with(#PK, ?)", prefix).
		EachWithContext(ctx, func(record ddb.Item) (bool, error) {
			var item store.Item
			if err := record.Unmarshal(&item); err != nil {
				return false, err
			}
			items = append(items, item)
			return true, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to scan prefix %v: %w", prefix, err)
	}
	return items, nil
}

func (s *Store) Create(ctx context.Context, item store.Item) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item %v: %w", item, err)
	}
	_, err = s.api.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]*string{
			"#pk": aws.String("pk"),
		},
	})
	if err != nil {
		if isCode(err, dynamodb.ErrCodeConditionalCheckFailedException) {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to create item %v: %w", item, err)
	}
	return nil
}

func (s *Store) AdvanceWatermark(ctx context.Context, pk string, sk int64, watermark int64, image []byte) error {
	_, err := s.api.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 key(pk, sk),
		UpdateExpression:    aws.String("SET #wm = :wm, #image = :image"),
		ConditionExpression: aws.String("attribute_exists(#pk) AND (attribute_not_exists(#wm) OR #wm <= :wm)"),
		ExpressionAttributeNames: map[string]*string{
			"#pk":    aws.String("pk"),
			"#wm":    aws.String("last_compacted_ts"),
			"#image": aws.String("image"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":wm":    {N: aws.String(fmt.Sprint(watermark))},
			":image": {B: image},
		},
	})
	if err != nil {
		if isCode(err, dynamodb.ErrCodeConditionalCheckFailedException) {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to advance watermark of %v/%v to %v: %w", pk, sk, watermark, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, pk string, sk int64) error {
	if err := s.table.Delete(pk).Range(sk).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to delete item %v/%v: %w", pk, sk, err)
	}
	return nil
}

func (s *Store) DeleteUpTo(ctx context.Context, pk string, upTo int64) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("#pk = :pk AND #sk <= :upTo"),
		ProjectionExpression:   aws.String("#pk, #sk"),
		ExpressionAttributeNames: map[string]*string{
			"#pk": aws.String("pk"),
			"#sk": aws.String("sk"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk":   {S: aws.String(pk)},
			":upTo": {N: aws.String(fmt.Sprint(upTo))},
		},
	}

	var keys []map[string]*dynamodb.AttributeValue
	err := s.api.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, _ bool) bool {
		keys = append(keys, page.Items...)
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query partition %v up to %v: %w", pk, upTo, err)
	}

	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.batchDelete(ctx, keys[i:end]); err != nil {
			return i, fmt.Errorf("failed to delete partition %v up to %v: %w", pk, upTo, err)
		}
	}
	return len(keys), nil
}

func (s *Store) batchDelete(ctx context.Context, keys []map[string]*dynamodb.AttributeValue) error {
	writeRequests := make([]*dynamodb.WriteRequest, len(keys))
	for i, k := range keys {
		writeRequests[i] = &dynamodb.WriteRequest{
			DeleteRequest: &dynamodb.DeleteRequest{Key: k},
		}
	}

	unprocessed := map[string][]*dynamodb.WriteRequest{
		s.tableName: writeRequests,
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		output, err := s.api.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: unprocessed,
		})
		if err != nil {
			return err
		}
		if len(output.UnprocessedItems) == 0 {
			return nil
		}
		unprocessed = output.UnprocessedItems

		backoff := time.Duration(1<<attempt) * 100 * time.Millisecond
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%d items unprocessed after %d retries", len(unprocessed[s.tableName]), maxRetries)
}

func key(pk string, sk int64) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"pk": {S: aws.String(pk)},
		"sk": {N: aws.String(fmt.Sprint(sk))},
	}
}

func isCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}
