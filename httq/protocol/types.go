package protocol

type MessageType uint8

const (
	// MessageTypePacket carries one serialized packet.
	MessageTypePacket MessageType = 1
	// MessageTypePacketLZ4 carries one LZ4-compressed serialized packet.
	MessageTypePacketLZ4 MessageType = 2
	// MessageTypeAnnounce carries a signed Announcement.
	MessageTypeAnnounce MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePacket:
		return "PACKET"
	case MessageTypePacketLZ4:
		return "PACKET_LZ4"
	case MessageTypeAnnounce:
		return "ANNOUNCE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is a known type.
func (t MessageType) Valid() bool {
	return t >= MessageTypePacket && t <= MessageTypeAnnounce
}
