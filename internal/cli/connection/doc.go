// Package connection is the shardmesh-cli client for the master's admin
// HTTP API. Responses arrive in the {code, message, data} envelope;
// ParseResponse unwraps data or turns an error envelope into an *APIError.
package connection
