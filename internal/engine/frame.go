package engine

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrame bounds a single worker frame; field dumps stay far below it.
const maxFrame = 16 << 20

type op byte

const (
	opCreate op = iota + 1
	opAdvance
	opSetResponse
	opQueryCard
	opQueryCount
	opQueryInfo
	opDispose
)

func (o op) String() string {
	switch o {
	case opCreate:
		return "create"
	case opAdvance:
		return "advance"
	case opSetResponse:
		return "set_response"
	case opQueryCard:
		return "query_card"
	case opQueryCount:
		return "query_count"
	case opQueryInfo:
		return "query_info"
	case opDispose:
		return "dispose"
	default:
		return fmt.Sprintf("op(%d)", byte(o))
	}
}

const (
	statusOK  byte = 0
	statusErr byte = 1
)

// writeFrame writes [u32 length][kind][payload]; length covers kind and payload.
func writeFrame(w io.Writer, kind byte, payload []byte) error {
	buf := make([]byte, 0, 5+len(payload))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)+1))
	buf = append(buf, kind)
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (byte, []byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, nil, err
	}
	n := binary.LittleEndian.Uint32(head[:])
	if n == 0 || n > maxFrame {
		return 0, nil, fmt.Errorf("%w: frame length %d", ErrProtocol, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}
