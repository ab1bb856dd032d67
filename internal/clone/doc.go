// Package clone starts and tracks repository clones.
//
// An Orchestrator first runs a Prober against the remote host. A failed probe
// is classified into a *ProbeError and no clone is started. Otherwise a
// cloning Operation is recorded in the Registry and a Cloner runs in the
// background. Progress output is forwarded to subscribers while the operation
// is registered; once it is deregistered (superseded, cleared, or finished)
// later output is dropped. Deregistration never kills the clone process.
//
// Two Cloner backends exist: ExecCloner shells out to git over SSH, and
// GoGitCloner clones over HTTPS in-process with a token from the OS keyring.
package clone
