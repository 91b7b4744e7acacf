// Package config loads the rosbridge-relay configuration.
//
// A configuration names the gateway, the topic bindings in both directions,
// the optional service subjects, the NATS connection, the metrics server, the
// pump interval and the reconnect policy. Files may be JSON or YAML:
//
//	gateway:
//	  host: robot.local
//	  port: 9090
//	topics:
//	  - topic: /robot/pose
//	    type: geometry_msgs/Pose
//	    subject: robot.pose
//	publishers:
//	  - topic: /cmd_vel
//	    type: geometry_msgs/Twist
//	    subject: robot.cmd_vel
//	services:
//	  call_subject: robot.service.call
//	  response_subject: robot.service.response
//	pump:
//	  interval: 10ms
//
// Load starts from DefaultConfig, merges the file, then applies environment
// overrides (ROSBRIDGE_HOST, ROSBRIDGE_PORT, ROSBRIDGE_SCHEME,
// ROSBRIDGE_NATS_URLS, ROSBRIDGE_NATS_TOKEN, ROSBRIDGE_METRICS_PORT) and
// validates. Validation failures match errors.ErrInvalidConfig.
package config
