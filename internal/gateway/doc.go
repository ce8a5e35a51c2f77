// Package gateway opens OpenWebNet command sessions to a MyHome gateway.
//
// # Session Handshake
//
//	gateway → client   *#*1##     (ACK, gateway ready)
//	client  → gateway  *99*0##    (request a command session)
//	gateway → client   *#*1##     (ACK, session granted)
//
// After the handshake each frame written by the client is answered with
// ACK (*#*1##) or NACK (*#*0##). Every OpenWebNet frame ends with "##".
//
// A Session is owned by one goroutine. The dispatcher opens one, writes a
// run of frames through it and closes it when its queue drains.
//
// # References
//
//   - OpenWebNet: https://developer.legrand.com/documentation/open-web-net-for-myhome/
package gateway
