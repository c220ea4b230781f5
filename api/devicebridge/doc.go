// Package devicebridge is the device side of registration: it hands out the
// device public key, decrypts registered secrets by scheme negotiation and
// deletes the key.
//
// Bridge methods are plain Go calls. RegisterRoutes additionally exposes
// them as a local method channel, POST /keys/{method}, answering
// {"result": ...} or {"code": ..., "message": ...}.
package devicebridge
