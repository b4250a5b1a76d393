// Package landscaper maintains a temporal graph of data centre
// infrastructure.
//
// # Overview
//
// Landscaper discovers the physical and virtual components of a cloud
// deployment and stores them, together with their relationships, in a
// Neo4j graph. Every component and relationship carries a validity
// interval, so the landscape can be queried as it was at any point in
// time: nothing is ever deleted, components that disappear simply have
// their intervals closed.
//
// The system consists of three main components:
//   - Collectors: build each layer of the landscape from its source of
//     truth (hwloc dumps, the OpenStack APIs, the Docker daemon)
//   - Event listeners: keep the landscape current from the OpenStack
//     notification bus and the hardware dump folder
//   - API Server: REST endpoints and a WebSocket feed for querying the
//     graph, with GeoJSON projection and type filtering
//
// # Architecture
//
//	┌─────────────────┐       ┌─────────────────┐
//	│  API Server     │       │  Listeners      │
//	│  (Echo REST/WS) │       │ (RabbitMQ, fs)  │
//	└────────┬────────┘       └────────┬────────┘
//	         │                         │
//	         │                ┌────────▼────────┐
//	         │                │  Collectors     │
//	         │                │ (hwloc, nova,   │
//	         │                │  neutron, ...)  │
//	         │                └────────┬────────┘
//	┌────────▼────────────────────────▼────────┐
//	│         Temporal Graph Store             │
//	│               (Neo4j)                    │
//	└──────────────────────────────────────────┘
//
// # Usage
//
// Build the landscape and serve it:
//
//	landscaper start --config configs/config.yaml
//
// Serve an existing landscape without running collectors:
//
//	landscaper server
//
// Query the graph as it was an hour ago:
//
//	curl 'localhost:9001/graph?timestamp=1714564800'
package landscaper
