// Package keyprovider implements interfaces.KeyProvider over a keystore.
//
// A Provider is either HardwareBacked, wrapping a platform secure keystore
// with mandatory presence confirmation, or SoftwareFallback, wrapping a
// SoftwareKeystore with optional confirmation. SelectProvider picks between
// them at startup.
//
// Handles carry a generation number. Deleting the key pair invalidates all
// outstanding handles, including one whose Decrypt is waiting on a prompt.
// Prompt timeouts and context deadlines surface as ErrAuthenticationTimeout,
// declines and cancellation as ErrAuthenticationCancelled.
package keyprovider
