// Package panicmode implements the gateway's emergency lockdown switch.
//
// The switch is a single process-wide state with exactly two transitions:
// Normal --Activate--> Locked and Locked --Reset(key)--> Normal. While
// locked, the connection authorizer denies everything before any
// credential is examined. Activation also revokes every live browser
// session and notifies registered watchers so the server can sever
// in-progress connections.
//
// State is persisted through an injected StateStore so an attacker cannot
// clear panic mode by crashing the process. If the persisted state cannot
// be read at startup the switch fails closed and comes up locked.
//
// Reset requires the operator reset key, verified against a bcrypt hash
// from configuration. This is intentionally a separate, higher-bar
// credential than anything accepted for ordinary connections.
package panicmode
