// Package rosbridge is a client for the rosbridge WebSocket protocol.
//
// A Connection multiplexes any number of topic subscribers and publishers,
// plus one service-response channel, over a single socket to a rosbridge
// gateway. Frames are JSON objects tagged by "op".
//
// # Registration
//
// Participants register while the connection is disconnected, either as
// TopicDescriptor values or through the Subscriber, Publisher and
// ServiceResponder interfaces:
//
//	conn, _ := rosbridge.NewConnection(rosbridge.WithLogger(logger))
//	_ = conn.RegisterSubscriber(rosbridge.TopicDescriptor{
//		MessageType: "geometry_msgs/Pose",
//		Topic:       "/robot/pose",
//		Parse:       rosbridge.ParseRaw,
//		Callback:    func(msg rosbridge.Message) { ... },
//	})
//
// # Lifecycle
//
// Connect dials the gateway and sends one subscribe frame per subscriber
// followed by one advertise frame per publisher. Disconnect sends the
// matching unsubscribe and unadvertise frames best-effort and closes the
// socket. A socket that fails while connected ends the session without
// teardown frames; Done reports it. A panic in the receive loop sends the
// teardown frames before closing. There is no automatic reconnect.
//
// # Delivery
//
// Inbound messages are parsed on the receive goroutine and parked in a
// DeliveryQueue that keeps only the newest message per topic. The owner calls
// Pump from its own loop; each call delivers at most one topic message and
// the pending service response. Callbacks therefore run on the pumping
// goroutine, never on the socket goroutine.
//
// Publish and CallService are no-ops while not connected.
package rosbridge
