// Package registrationhandler serves device key registration over HTTP and
// provides the matching client.
//
// A device posts its public key in wire form; the handler fetches the
// protected secret, hands both to registration.Service and returns the
// base64 ciphertext. With diagnostics enabled the response also carries a
// debug block, and /test-configs and /get-secret are mounted. Those expose
// the secret and must not be enabled in production.
package registrationhandler
