// Package cvp is a small CloudVision Portal REST client.
//
// It covers only what container reconciliation needs: opening a session,
// reading the root container, searching containers by name and adding a
// container to the provisioning topology. The Client satisfies
// reconcile.Remote.
//
// Authentication is either a username/password login, which sets a session
// cookie, or a service account token sent as a bearer token (the only
// option on CloudVision as-a-Service). When several hosts are configured
// Connect tries them in order and keeps the first one that answers.
//
// Every failure is returned as *model.RemoteError. The client never
// retries.
package cvp
