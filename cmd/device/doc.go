// Package main (cmd/device) is a command-line device for the registration
// protocol.
//
// It holds an RSA identity key in a software keystore, optionally sealed
// into a storage backend so it survives restarts, and implements the
// device side of registration:
//
//	device --format ios register --server http://127.0.0.1:3000
//	device public-key
//	device decrypt <encryptedBase64>
//	device delete-key
//	device serve --listen-addr 127.0.0.1:8765
//
// With --require-presence every decryption asks for confirmation on the
// terminal; --auth-validity lets one confirmation cover a full scheme
// negotiation.
package main
