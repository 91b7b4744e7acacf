// Package testutil provides in-process stand-ins for the bridge's external
// peers: a rosbridge gateway served over httptest and an in-memory NATS client.
//
// Gateway accepts websocket connections, records every frame the client sends
// and lets the test push frames back:
//
//	gw := testutil.NewGateway(t)
//	require.NoError(t, conn.Connect(ctx, gw.Host(), gw.Port()))
//	frame := gw.NextFrame(t, time.Second)     // {"op":"subscribe",...}
//	gw.Send(t, map[string]any{"op": "publish", "topic": "/pose", "msg": msg})
//
// MockNATSClient matches the Publish/Subscribe signatures of natsclient.Client
// and stores published payloads per subject.
package testutil
