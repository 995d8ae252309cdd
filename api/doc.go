// Package api defines the request and response types of the AgentPanel HTTP API.
//
// # API Overview
//
// AgentPanel serves a RESTful API for multi-agent discussions:
//   - Discussion lifecycle: create, init, advance turns, change mode
//   - Human participation: inject messages between turns
//   - Live updates: a WebSocket stream of utterances and status changes
//   - Health monitoring and Prometheus metrics
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080/api/v1
//
// # Example
//
//	curl -X POST localhost:8080/api/v1/discussions \
//	  -H 'Content-Type: application/json' \
//	  -d '{"topic":"Should cities ban cars?","mode":"adaptive"}'
//	curl -X POST localhost:8080/api/v1/discussions/{id}/init \
//	  -H 'Content-Type: application/json' -d '{"roster":"classic"}'
//	curl -X POST localhost:8080/api/v1/discussions/{id}/turns
package api
