package contracts

// Protocol versions understood by this client. Decoding rejects envelopes
// whose version is not in SupportedProtocolVersions.
const (
	CurrentProtocolVersion = "1.1"
)

// SupportedProtocolVersions lists the versions this client accepts on decode.
var SupportedProtocolVersions = []string{"1.0", "1.1"}

// VersionSupported reports whether v is an accepted protocol version.
func VersionSupported(v string) bool {
	for _, s := range SupportedProtocolVersions {
		if s == v {
			return true
		}
	}
	return false
}

// Envelope type vocabulary. The set is closed: an envelope whose type is not
// listed here fails validation in both directions.
const (
	TypeAuth       = "auth"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeChat       = "chat"
	TypeMatchJoin  = "match.join"
	TypeMatchLeave = "match.leave"
	TypeMatchState = "match.state"
	TypeDiceRoll   = "dice.roll"
	TypeDiceResult = "dice.result"
	TypeNotice     = "notice"
	TypeError      = "error"
)

// Direction restricts which side of the connection may originate a type.
type Direction int

const (
	// DirectionSend marks types the client originates.
	DirectionSend Direction = 1 << iota
	// DirectionReceive marks types the service originates.
	DirectionReceive
	// DirectionBoth marks types either side may originate.
	DirectionBoth = DirectionSend | DirectionReceive
)

var typeDirections = map[string]Direction{
	TypeAuth:       DirectionSend,
	TypePing:       DirectionSend,
	TypePong:       DirectionReceive,
	TypeChat:       DirectionBoth,
	TypeMatchJoin:  DirectionSend,
	TypeMatchLeave: DirectionSend,
	TypeMatchState: DirectionReceive,
	TypeDiceRoll:   DirectionSend,
	TypeDiceResult: DirectionReceive,
	TypeNotice:     DirectionReceive,
	TypeError:      DirectionReceive,
}

// KnownType reports whether messageType is part of the vocabulary.
func KnownType(messageType string) bool {
	_, ok := typeDirections[messageType]
	return ok
}

// CanSend reports whether the client may originate messageType.
func CanSend(messageType string) bool {
	return typeDirections[messageType]&DirectionSend != 0
}

// CanReceive reports whether the client may accept messageType from the
// service.
func CanReceive(messageType string) bool {
	return typeDirections[messageType]&DirectionReceive != 0
}

// KnownTypes returns the vocabulary. The returned slice is a copy.
func KnownTypes() []string {
	types := make([]string, 0, len(typeDirections))
	for t := range typeDirections {
		types = append(types, t)
	}
	return types
}
