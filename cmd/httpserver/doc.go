// Package main (cmd/httpserver) runs the device registration server.
//
// Devices POST their public key to /register and receive the protected
// secret encrypted under it. The secret is read from one or more storage
// backends (--secret-uri, tried in order) under --secret-name.
//
// Example:
//
//	httpserver --listen-addr 0.0.0.0:3000 \
//	    --secret-uri vault://s.token@vault.internal:8200/secret/devices \
//	    --secret-uri file:///etc/device-registration \
//	    --secret-name device-secret
//
// Health endpoints (/livez, /readyz, /drain, /undrain) are always mounted;
// metrics are served on --metrics-addr.
package main
