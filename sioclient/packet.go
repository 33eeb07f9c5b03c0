package sioclient

import (
	"encoding/json"
	"strconv"
	"strings"
)

/*************************************************************************************************/
/* PACKET TYPES                                                                                  */
/*************************************************************************************************/

// Socket.IO 0.9 packet type.
type PacketType int

const (
	// Disconnect the session (empty endpoint) or an endpoint.
	PacketTypeDisconnect PacketType = iota
	// Connect an endpoint.
	PacketTypeConnect
	// Heartbeat
	PacketTypeHeartbeat
	// Plain text message
	PacketTypeMessage
	// JSON message
	PacketTypeJSON
	// Named event: {"name": "...", "args": [...]}
	PacketTypeEvent
	// Acknowledgement: <id>[+<json args array>]
	PacketTypeAck
	// Error: <reason>[+<advice>]
	PacketTypeError
	// Noop
	PacketTypeNoop
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeDisconnect:
		return "disconnect"
	case PacketTypeConnect:
		return "connect"
	case PacketTypeHeartbeat:
		return "heartbeat"
	case PacketTypeMessage:
		return "message"
	case PacketTypeJSON:
		return "json"
	case PacketTypeEvent:
		return "event"
	case PacketTypeAck:
		return "ack"
	case PacketTypeError:
		return "error"
	case PacketTypeNoop:
		return "noop"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

/*************************************************************************************************/
/* PACKET                                                                                        */
/*************************************************************************************************/

// Socket.IO 0.9 packet. Wire format is `type:ack:endpoint[:data]` where ack is empty, an id or an
// id followed by '+' when the sender requests the ack to carry data.
type Packet struct {
	// Packet type
	Type PacketType
	// Ack ID, -1 when no ack is requested.
	AckID int
	// True when the ack field ends with '+'.
	AckData bool
	// Endpoint, empty for the default endpoint.
	Endpoint string
	// Packet data. Can contain colons.
	Data string
}

// # Description
//
// Decode a packet. Data after the third colon is not interpreted.
//
// # Returns
//
// The decoded packet or a PacketError when:
//   - The packet has less than three fields (ErrMalformedPacket).
//   - The type is not an integer between 0 and 8 (ErrUnknownPacketType).
//   - The ack field is not empty, an integer or an integer followed by '+' (ErrMalformedAck).
func ParsePacket(raw string) (*Packet, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 {
		return nil, PacketError{Raw: raw, Err: ErrMalformedPacket}
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil || code < int(PacketTypeDisconnect) || code > int(PacketTypeNoop) {
		return nil, PacketError{Raw: raw, Err: ErrUnknownPacketType}
	}
	packet := &Packet{
		Type:     PacketType(code),
		AckID:    -1,
		Endpoint: parts[2],
	}
	if ack := parts[1]; ack != "" {
		if strings.HasSuffix(ack, "+") {
			packet.AckData = true
			ack = strings.TrimSuffix(ack, "+")
		}
		id, err := strconv.Atoi(ack)
		if err != nil || id < 0 {
			return nil, PacketError{Raw: raw, Err: ErrMalformedAck}
		}
		packet.AckID = id
	}
	if len(parts) == 4 {
		packet.Data = parts[3]
	}
	return packet, nil
}

// Encode the packet. The data field is omitted when empty, except for packets carrying an ack id.
func (p *Packet) Encode() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(p.Type)))
	sb.WriteByte(':')
	if p.AckID >= 0 {
		sb.WriteString(strconv.Itoa(p.AckID))
		if p.AckData {
			sb.WriteByte('+')
		}
	}
	sb.WriteByte(':')
	sb.WriteString(p.Endpoint)
	if p.Data != "" || p.AckID >= 0 || p.Type == PacketTypeAck {
		sb.WriteByte(':')
		sb.WriteString(p.Data)
	}
	return sb.String()
}

/*************************************************************************************************/
/* PAYLOADS                                                                                      */
/*************************************************************************************************/

// Payload of an event packet.
type eventPayload struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
}

// # Description
//
// Decode the payload of an event packet. Decoding failures degrade to an event with an empty
// name and no arguments. A missing args field results in an empty argument list.
func parseEventPayload(data string) (string, []json.RawMessage) {
	var payload eventPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", []json.RawMessage{}
	}
	if payload.Args == nil {
		payload.Args = []json.RawMessage{}
	}
	return payload.Name, payload.Args
}

// Encode the payload of an event packet.
func encodeEventPayload(name string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	raw, err := json.Marshal(struct {
		Name string `json:"name"`
		Args []any  `json:"args"`
	}{Name: name, Args: args})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// # Description
//
// Decode the payload of a JSON message packet. Anything else than a JSON object degrades to an
// empty object.
func parseJSONPayload(data string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &obj); err != nil || obj == nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(data)
}

// # Description
//
// Decode the data of an ack packet: `<id>[+<json args array>]`.
//
// # Returns
//
// The ack id, the arguments (nil when absent or invalid) and false when the id is not a number.
func parseAckPayload(data string) (int, []json.RawMessage, bool) {
	idPart, argsPart, hasArgs := strings.Cut(data, "+")
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, nil, false
	}
	if !hasArgs {
		return id, nil, true
	}
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(argsPart), &args); err != nil {
		return id, nil, true
	}
	return id, args, true
}

// Encode the data of an ack packet.
func encodeAckPayload(id int, args []any) (string, error) {
	data := strconv.Itoa(id)
	if len(args) == 0 {
		return data, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return data + "+" + string(raw), nil
}

// Decode the data of an error packet: `<reason>[+<advice>]`.
func parseErrorPayload(data string) *ServerError {
	reason, advice, _ := strings.Cut(data, "+")
	return &ServerError{Reason: reason, Advice: advice}
}
