package vless

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Command is the VLESS request command byte.
type Command byte

const (
	CommandTCP Command = 1
	CommandUDP Command = 2
)

func (c Command) String() string {
	switch c {
	case CommandTCP:
		return "tcp"
	case CommandUDP:
		return "udp"
	default:
		return fmt.Sprintf("command(%d)", byte(c))
	}
}

// AddrType is the VLESS address type byte.
type AddrType byte

const (
	AddrTypeIPv4   AddrType = 1
	AddrTypeDomain AddrType = 2
	AddrTypeIPv6   AddrType = 3
)

// minHeaderLen is the smallest possible request: version(1) + uuid(16) +
// optLen(1) + cmd(1) + port(2) + atyp(1) + the shortest address, a 1-byte
// domain name with its own 1-byte length prefix (1+1) — matching the
// invariant "total bytes >= 24" in spec.md §3. The reference treats any
// first chunk shorter than this as a hard error; it does not attempt to
// reassemble partial headers across chunks.
const minHeaderLen = 1 + 16 + 1 + 1 + 2 + 1 + 1 + 1

// RequestHeader is the decoded first message of a VLESS session.
type RequestHeader struct {
	Version  byte
	User     uuid.UUID
	Command  Command
	Port     uint16
	AddrType AddrType
	Address  string
	Payload  []byte
}

// ParseRequest decodes buf as a VLESS request and authenticates the user id
// against accepted. It returns a *Error with Kind describing why decoding
// failed.
func ParseRequest(buf []byte, accepted UserSet) (*RequestHeader, error) {
	if len(buf) < minHeaderLen {
		return nil, malformed(fmt.Sprintf("request too short: %d bytes, need at least %d", len(buf), minHeaderLen))
	}

	hdr := &RequestHeader{Version: buf[0]}
	var rawUser [16]byte
	copy(rawUser[:], buf[1:17])
	hdr.User = uuid.UUID(rawUser)

	if !accepted.Contains(rawUser) {
		return nil, &Error{Kind: KindAuthFailed, Detail: "user id " + hdr.User.String() + " not accepted"}
	}

	offset := 17
	optLen := int(buf[offset])
	offset++
	offset += optLen // addons are opaque and skipped, not interpreted
	if offset+1+2+1 > len(buf) {
		return nil, malformed("truncated after addon bytes")
	}

	cmd := Command(buf[offset])
	offset++
	if cmd != CommandTCP && cmd != CommandUDP {
		return nil, malformed(fmt.Sprintf("unsupported command %d", byte(cmd)))
	}
	hdr.Command = cmd

	hdr.Port = binary.BigEndian.Uint16(buf[offset : offset+2])
	offset += 2

	if offset >= len(buf) {
		return nil, malformed("truncated before address type")
	}
	atyp := AddrType(buf[offset])
	offset++

	address, addrLen, err := decodeAddress(atyp, buf[offset:])
	if err != nil {
		return nil, err
	}
	if address == "" {
		return nil, malformed("decoded address is empty")
	}
	hdr.AddrType = atyp
	hdr.Address = address
	offset += addrLen

	if cmd == CommandUDP && hdr.Port != 53 {
		return nil, malformed(fmt.Sprintf("udp command only accepted on port 53, got %d", hdr.Port))
	}

	if offset > len(buf) {
		return nil, malformed("address runs past end of request")
	}
	// The payload may be empty; that is not an error.
	hdr.Payload = buf[offset:]

	return hdr, nil
}

// decodeAddress reads the address for atyp from buf (which starts right
// after the address-type byte) and returns its string form and the number
// of bytes it consumed.
func decodeAddress(atyp AddrType, buf []byte) (string, int, error) {
	switch atyp {
	case AddrTypeIPv4:
		if len(buf) < 4 {
			return "", 0, malformed("truncated IPv4 address")
		}
		ip := net.IP(buf[:4])
		return ip.String(), 4, nil
	case AddrTypeDomain:
		if len(buf) < 1 {
			return "", 0, malformed("truncated domain length")
		}
		n := int(buf[0])
		if len(buf) < 1+n {
			return "", 0, malformed("truncated domain name")
		}
		return string(buf[1 : 1+n]), 1 + n, nil
	case AddrTypeIPv6:
		if len(buf) < 16 {
			return "", 0, malformed("truncated IPv6 address")
		}
		return formatIPv6(buf[:16]), 16, nil
	default:
		return "", 0, malformed(fmt.Sprintf("unsupported address type %d", byte(atyp)))
	}
}

// formatIPv6 renders 16 raw bytes as eight colon-separated lowercase hex
// groups. No "::" compression is performed; this canonical form is
// sufficient for dialing and logging.
func formatIPv6(b []byte) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = strconv.FormatUint(uint64(binary.BigEndian.Uint16(b[i*2:i*2+2])), 16)
	}
	return strings.Join(groups, ":")
}

// BuildResponse encodes the two-byte VLESS response header for version.
func BuildResponse(version byte) []byte {
	return []byte{version, 0x00}
}
