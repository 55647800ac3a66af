package constants

// ErrorCode is a stable, wire-carried error identifier (PlayHouse spec §7).
// It rides in RouteHeader.ErrorCode and in the client-frame envelope's
// errorCode field, so the numeric values must never be renumbered once
// shipped.
type ErrorCode uint16

const (
	// Success is the zero value: normal, non-error completion.
	Success ErrorCode = 0
	// NotRegisteredMessage: no API/system handler exists for msgId.
	NotRegisteredMessage ErrorCode = 1
	// SystemError: internal unexpected state.
	SystemError ErrorCode = 2
	// UncheckedContentsError: a user handler panicked or returned an error.
	UncheckedContentsError ErrorCode = 3
	// RequestTimeout: RequestCache expiry fired before a reply arrived.
	RequestTimeout ErrorCode = 4
	// AuthenticationFailed: onAuthenticate returned false, or accountId was left empty.
	AuthenticationFailed ErrorCode = 5
	// JoinStageFailed: onJoinStage returned false.
	JoinStageFailed ErrorCode = 6
	// NoStage: the targeted Play node has no Stage for the given stageId.
	NoStage ErrorCode = 7
	// NoServer: routing could not find a Running peer for the requested serviceId.
	NoServer ErrorCode = 8
	// ShuttingDown: the node is stopping and cannot service the request.
	ShuttingDown ErrorCode = 9
	// InvalidParameter: a malformed frame or header was received.
	InvalidParameter ErrorCode = 10
	// PayloadTooLarge: a client frame exceeded MaxClientBodySize.
	PayloadTooLarge ErrorCode = 11
)

// String gives a stable, log-friendly name for an ErrorCode.
func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "Success"
	case NotRegisteredMessage:
		return "NotRegisteredMessage"
	case SystemError:
		return "SystemError"
	case UncheckedContentsError:
		return "UncheckedContentsError"
	case RequestTimeout:
		return "RequestTimeout"
	case AuthenticationFailed:
		return "AuthenticationFailed"
	case JoinStageFailed:
		return "JoinStageFailed"
	case NoStage:
		return "NoStage"
	case NoServer:
		return "NoServer"
	case ShuttingDown:
		return "ShuttingDown"
	case InvalidParameter:
		return "InvalidParameter"
	case PayloadTooLarge:
		return "PayloadTooLarge"
	default:
		return "Unknown"
	}
}
