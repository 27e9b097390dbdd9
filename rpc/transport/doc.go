// Package transport defines the interfaces between the uniauth wire protocol and
// the medium that carries it. Client and daemon only depend on these contracts,
// the actual socket handling lives in the base and unix packages.
//
// Key Components:
//
//   - IRPCClientTransport: Client side. Sends one encoded request at a time and
//     hands the received bytes to a ResponseReader until it reports completion.
//
//   - IRPCServerTransport: Daemon side. Accepts connections, parses requests and
//     calls the registered ServerHandleFunc for each complete request.
//
//   - IResponder: Passed to the handler to queue exactly one response.
package transport
