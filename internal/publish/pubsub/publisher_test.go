package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/qfrontier/qfrontier/internal/crawler"
	"github.com/qfrontier/qfrontier/internal/publish/pubsub"
)

func TestPublisherPublishesPageRecords(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := gcppubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "pages")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "pages-sub", gcppubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	p := pubsub.New(topic)
	defer p.Stop()

	record := crawler.PageRecord{
		CrawlID:    "crawl-1",
		NodeID:     7,
		URL:        "http://a.test/page",
		Domain:     "a.test",
		StatusCode: 200,
		Success:    true,
		Scores:     map[string]float64{"forms": 0.8},
		Reward:     0.8,
	}
	id, err := p.Publish(ctx, "pages", record)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	receiveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	got := make(chan *gcppubsub.Message, 1)
	go func() {
		_ = sub.Receive(receiveCtx, func(_ context.Context, msg *gcppubsub.Message) {
			msg.Ack()
			select {
			case got <- msg:
			default:
			}
			cancel()
		})
	}()

	select {
	case msg := <-got:
		var decoded crawler.PageRecord
		require.NoError(t, json.Unmarshal(msg.Data, &decoded))
		assert.Equal(t, record.CrawlID, decoded.CrawlID)
		assert.Equal(t, record.URL, decoded.URL)
		assert.InDelta(t, record.Reward, decoded.Reward, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the published message")
	}
}

func TestPublisherRequiresTopic(t *testing.T) {
	t.Parallel()

	p := pubsub.New(nil)
	_, err := p.Publish(context.Background(), "pages", map[string]string{"k": "v"})
	require.ErrorContains(t, err, "not configured")
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := gcppubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "pages")
	require.NoError(t, err)

	p := pubsub.New(topic)
	defer p.Stop()

	_, err = p.Publish(ctx, "pages", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}
