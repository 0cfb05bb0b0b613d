package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogify/domain/core/valueobjects"
	"blogify/domain/events"
)

type fakePutEvents struct {
	inputs []*eventbridge.PutEventsInput
	out    *eventbridge.PutEventsOutput
	err    error
}

func (f *fakePutEvents) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func postCreated(id string) events.DomainEvent {
	return events.NewPostCreated(valueobjects.MustConfirmedID(id), "author-1", "Hello", time.Unix(1700000000, 0).UTC())
}

func TestPublisher_PublishEntry(t *testing.T) {
	client := &fakePutEvents{}
	p := NewPublisher(client, "blog-bus", zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), postCreated("p1")))
	require.Len(t, client.inputs, 1)

	entry := client.inputs[0].Entries[0]
	assert.Equal(t, "blog-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.EventTypePostCreated, aws.ToString(entry.DetailType))

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "p1", detail["post_id"])
	assert.Equal(t, "author-1", detail["author_id"])
}

func TestPublisher_BatchesByTen(t *testing.T) {
	client := &fakePutEvents{}
	p := NewPublisher(client, "blog-bus", zap.NewNop())

	batch := make([]events.DomainEvent, 0, 23)
	for i := 0; i < 23; i++ {
		batch = append(batch, postCreated(fmt.Sprintf("p%d", i)))
	}
	require.NoError(t, p.PublishBatch(context.Background(), batch))

	require.Len(t, client.inputs, 3)
	assert.Len(t, client.inputs[0].Entries, 10)
	assert.Len(t, client.inputs[2].Entries, 3)
}

func TestPublisher_Failures(t *testing.T) {
	client := &fakePutEvents{err: errors.New("throttled")}
	err := NewPublisher(client, "b", zap.NewNop()).Publish(context.Background(), postCreated("p1"))
	assert.ErrorContains(t, err, "throttled")

	client = &fakePutEvents{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
	}}
	err = NewPublisher(client, "b", zap.NewNop()).Publish(context.Background(), postCreated("p1"))
	assert.EqualError(t, err, "1 events failed to publish")
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NewNoopPublisher(zap.NewNop()).Publish(context.Background(), postCreated("p1")))
}
