// Package api defines the command and event vocabulary shared by the
// matching core and every surface around it: the ingress ring, the
// command journal, the event outbox, market data and the gRPC server.
//
// Commands are mutated in place: the matcher appends events to the
// command it is processing, and the filled event buffer is the only
// acknowledgement a caller gets. The package also carries the binary
// wire codec (protobuf wire format) used wherever commands or events
// cross a process boundary.
package api
