package transport

// Frame is the relay wire format. The relay is protocol-blind: it claims
// addresses and forwards frames by the To field, nothing more.
type Frame struct {
	Kind   string `json:"kind"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Reason string `json:"reason,omitempty"`
	Peer   string `json:"peer,omitempty"`
}

const (
	// relay → client after a successful address claim
	KindWelcome = "welcome"
	// link handshake, forwarded between peers
	KindConnect = "connect"
	KindAccept  = "accept"
	// payload carrier
	KindData = "data"
	// link or peer teardown; From names the peer that is gone
	KindClose = "close"
	// relay → client failures
	KindError = "error"
)

const (
	ReasonAddressTaken = "address_taken"
	ReasonPeerNotFound = "peer_not_found"
)
