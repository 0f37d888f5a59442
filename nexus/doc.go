// Package nexus
// Author: momentics <momentics@gmail.com>
//
// Per-process registry of endpoint management hooks. Endpoints register
// their hook under their application thread id; session establishment
// records are routed to the target hook by id. Cross-host delivery is out of
// scope: every endpoint registered here shares one hostname.
package nexus
