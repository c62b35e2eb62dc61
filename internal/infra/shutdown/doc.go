// Package shutdown coordinates graceful process termination.
//
// A Handler waits for SIGINT, SIGTERM, a cancelled context or an explicit
// Trigger, then runs the registered hooks in reverse registration order
// under a shared timeout. The daemons register the admin HTTP server,
// gossip agent and cluster master so they stop in the opposite order to
// how they started.
package shutdown
