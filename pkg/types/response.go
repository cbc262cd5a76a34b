package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// GatewayAck is the fixed-vocabulary body returned to the payment gateway's
// IPN channel. The gateway retries until it receives a definitive code.
type GatewayAck struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
