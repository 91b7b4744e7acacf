// Package relay connects a rosbridge Connection to NATS.
//
// Three kinds of binding are supported:
//
//   - topics: messages received on a gateway topic are published, as raw
//     JSON, on a NATS subject
//   - publishers: JSON payloads received on a NATS subject are published on
//     an advertised gateway topic
//   - services: a request {"service":S,"args":A} on the call subject becomes a
//     call_service frame; the gateway's response is published on the
//     response subject as {"service":S,"values":V}
//
// Attach must run before the bridge connects because registration is only
// allowed while disconnected. Messages arriving from NATS while the gateway
// is down are dropped and counted.
package relay
