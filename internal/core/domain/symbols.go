package domain

// Query symbols understood by the executor.
const (
	QueryReset         = "RESET"
	QueryQuit          = "QUIT"
	QueryTimeoutModify = "TIMEOUT_MODIFY"

	QueryIdentity    = "ID_RESP"
	QueryNakPrefix   = "NAK_"
	QueryClientHello = "CLIENT_HELLO"
	QueryServerAck   = "SH_RESP"
	QueryEAPOLStart  = "EAPOL_START"
	QueryAuth        = "AUTH"
	QueryAssoc       = "ASSOC"
	QueryDeauth      = "DEAUTH"
)

// Response symbols produced by the executor.
const (
	RespDone    = "DONE"
	RespTimeout = "TIMEOUT"
	RespData    = "DATA"
	RespError   = "ERROR"

	RespAuthAccept  = "AUTH_ACCEPT"
	RespAuthReject  = "AUTH_REJECT"
	RespAssocAccept = "ASSOC_ACCEPT"
	RespAssocReject = "ASSOC_REJECT"
	RespDeauth      = "DEAUTH"
	RespDisassoc    = "DISASSOC"

	RespEAPIdentityRequest = "EAP_ID_REQ"
	RespEAPTTLSStart       = "EAP_TTLS_START"
	RespServerHello        = "SERVER_HELLO"
	RespServerHelloFrag    = "SERVER_HELLO_FRAG"
	RespTLSAlert           = "TLS_ALERT"
	RespEAPRequestPrefix   = "EAP_REQ_"
	RespEAPSuccess         = "EAP_SUCCESS"
	RespEAPFailure         = "EAP_FAILURE"
	RespEAPOLKeyPrefix     = "EAPOL_KEY_M"
)
