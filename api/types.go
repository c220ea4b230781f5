package api

// RegisterRequest is the body of POST /register and POST /test-configs.
type RegisterRequest struct {
	// PublicKeyBase64 is the device public key in wire form: base64 DER for
	// Android, "IOS_RAW:" followed by base64 raw bytes for iOS.
	PublicKeyBase64 string `json:"publicKeyBase64"`
}

// RegisterResponse is the body of a successful POST /register.
type RegisterResponse struct {
	// EncryptedBase64 is the secret encrypted under the device key. The
	// scheme is not part of the response.
	EncryptedBase64 string `json:"encryptedBase64"`

	// Debug is present only when the server runs with diagnostics enabled.
	Debug *RegisterDebug `json:"debug,omitempty"`
}

// RegisterDebug carries non-authoritative diagnostic encryptions.
type RegisterDebug struct {
	Mode            string            `json:"mode"`
	AllConfigs      []EncryptedConfig `json:"allConfigs"`
	SecretLength    int               `json:"secretLength"`
	PublicKeyLength int               `json:"publicKeyLength"`
}

// EncryptedConfig is the output of one diagnostic encryption configuration.
type EncryptedConfig struct {
	Name            string `json:"name"`
	EncryptedBase64 string `json:"encryptedBase64"`
	Size            int    `json:"size"`
}

// TestConfigsResponse is the body of POST /test-configs.
type TestConfigsResponse struct {
	Configs []EncryptedConfig `json:"configs"`
	Secret  string            `json:"secret"`
}

// SecretResponse is the body of POST /get-secret.
type SecretResponse struct {
	Secret string `json:"secret"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// DecryptSecretRequest is the body of the device bridge decryptSecret method.
type DecryptSecretRequest struct {
	EncryptedSecret string `json:"encryptedSecret"`
}

// BridgeResult is a successful device bridge call. Result is a string for
// getPublicKey and decryptSecret and a bool for deleteKey.
type BridgeResult struct {
	Result any `json:"result"`
}

// BridgeError is a failed device bridge call.
type BridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
