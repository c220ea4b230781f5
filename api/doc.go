/*
Package api holds the wire types and server configuration shared by the
HTTP surfaces of the system.

Subpackages:

  - server: HTTP server lifecycle with health, drain and pprof endpoints
  - registrationhandler: POST /register and the diagnostic endpoints, plus a client
  - devicebridge: the device-side method channel (getPublicKey,
    decryptSecret, deleteKey) over Go calls and local HTTP

A registration is a single round trip. The device sends its public key in
platform wire form; the server normalizes it to SubjectPublicKeyInfo,
encrypts the protected secret under it with one fixed RSA scheme and
returns the ciphertext. The device recovers the secret by trial
decryption against its presence-gated private key.
*/
package api
