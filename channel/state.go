package channel

// ClientChannelState enumerates ClientState's lifecycle (spec.md §4.1).
type ClientChannelState int

const (
	ClientStateNew ClientChannelState = iota
	ClientStateInitiated
	ClientStateProvideMultisigContractToServer
	ClientStateReady
	ClientStateClosed
	ClientStateExpired
	ClientStateError
)

func (s ClientChannelState) String() string {
	switch s {
	case ClientStateNew:
		return "NEW"
	case ClientStateInitiated:
		return "INITIATED"
	case ClientStateProvideMultisigContractToServer:
		return "PROVIDE_MULTISIG_CONTRACT_TO_SERVER"
	case ClientStateReady:
		return "READY"
	case ClientStateClosed:
		return "CLOSED"
	case ClientStateExpired:
		return "EXPIRED"
	case ClientStateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ServerChannelState enumerates ServerState's lifecycle (spec.md §4.2).
type ServerChannelState int

const (
	ServerStateWaitingForRefundTransaction ServerChannelState = iota
	ServerStateWaitingForMultisigContract
	ServerStateWaitingForMultisigAcceptance
	ServerStateReady
	ServerStateClosing
	ServerStateClosed
	ServerStateError
)

func (s ServerChannelState) String() string {
	switch s {
	case ServerStateWaitingForRefundTransaction:
		return "WAITING_FOR_REFUND_TRANSACTION"
	case ServerStateWaitingForMultisigContract:
		return "WAITING_FOR_MULTISIG_CONTRACT"
	case ServerStateWaitingForMultisigAcceptance:
		return "WAITING_FOR_MULTISIG_ACCEPTANCE"
	case ServerStateReady:
		return "READY"
	case ServerStateClosing:
		return "CLOSING"
	case ServerStateClosed:
		return "CLOSED"
	case ServerStateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
