// Package natsclient wraps a nats.go connection for the relay.
//
// The Client tracks connection status, counts failures and reconnects,
// reports them through the metric package and exposes a health.Check:
//
//	client, err := natsclient.NewClient(cfg.NATS.URLs,
//		natsclient.WithName("rosbridge-relay"),
//		natsclient.WithLogger(logger),
//		natsclient.WithMetrics(registry))
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
// After the first successful Connect, nats.go handles reconnection. Publish
// buffers while reconnecting and fails with ErrNotConnected only when the
// connection is closed. Subscribe requires a live connection.
package natsclient
