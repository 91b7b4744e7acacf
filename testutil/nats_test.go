package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockNATSClient_PublishDelivers(t *testing.T) {
	client := NewMockNATSClient()
	ctx := context.Background()

	var got [][]byte
	require.NoError(t, client.Subscribe(ctx, "robot.pose", func(_ context.Context, data []byte) {
		got = append(got, data)
	}))
	assert.True(t, client.Subscribed("robot.pose"))

	require.NoError(t, client.Publish(ctx, "robot.pose", []byte(`{"x":1}`)))
	require.NoError(t, client.Publish(ctx, "robot.other", []byte(`{}`)))

	require.Len(t, got, 1)
	assert.JSONEq(t, `{"x":1}`, string(got[0]))
	assert.Equal(t, 1, client.GetMessageCount("robot.pose"))
	assert.Equal(t, 1, client.GetMessageCount("robot.other"))
}

func TestMockNATSClient_HandlerMaySubscribe(t *testing.T) {
	client := NewMockNATSClient()
	ctx := context.Background()

	calls := 0
	require.NoError(t, client.Subscribe(ctx, "a", func(ctx context.Context, _ []byte) {
		calls++
		// Handlers run outside the lock, and later subscribers see only later messages
		require.NoError(t, client.Subscribe(ctx, "a", func(context.Context, []byte) { calls += 10 }))
	}))

	require.NoError(t, client.Publish(ctx, "a", nil))
	assert.Equal(t, 1, calls)

	require.NoError(t, client.Publish(ctx, "a", nil))
	assert.Equal(t, 12, calls)
}

func TestMockNATSClient_StoresCopies(t *testing.T) {
	client := NewMockNATSClient()
	buf := []byte("abc")
	require.NoError(t, client.Publish(context.Background(), "s", buf))
	buf[0] = 'x'

	assert.Equal(t, []byte("abc"), client.GetMessages("s")[0])
}

func TestMockNATSClient_Failures(t *testing.T) {
	client := NewMockNATSClient()
	ctx := context.Background()

	client.FailPublish(fmt.Errorf("nats: timeout"))
	assert.Error(t, client.Publish(ctx, "s", nil))
	assert.Equal(t, 0, client.GetMessageCount("s"))

	client.FailPublish(nil)
	assert.NoError(t, client.Publish(ctx, "s", nil))

	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())
	assert.Error(t, client.Publish(ctx, "s", nil))
	assert.Error(t, client.Subscribe(ctx, "s", func(context.Context, []byte) {}))
}
