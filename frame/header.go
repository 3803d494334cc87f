// Package frame implements the OpenFlow 1.3 wire header and the
// length-framed message envelope that every OFPT_* body travels in.
//
// It is the "FramedReader" half of the controller core: given a stream
// of bytes it yields complete messages using the length field carried in
// the 8-byte header, and given a typed message body it serializes the
// matching header in front of it. It knows nothing about the meaning of
// any particular message type — that is the job of package ofp and the
// controller package that dispatches on Type.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

// Version is the only OpenFlow wire version this package understands.
const Version uint8 = 0x04

// HeaderLen is the size in bytes of the fixed OpenFlow header that
// precedes every message.
const HeaderLen = 8

// Type is the OFPT_* message type carried in header byte 1.
type Type uint8

// OFPT_* message types, OpenFlow 1.3.
const (
	TypeHello Type = iota
	TypeError
	TypeEchoRequest
	TypeEchoReply
	TypeExperimenter

	TypeFeaturesRequest
	TypeFeaturesReply
	TypeGetConfigRequest
	TypeGetConfigReply
	TypeSetConfig

	TypePacketIn
	TypeFlowRemoved
	TypePortStatus

	TypePacketOut
	TypeFlowMod
	TypeGroupMod
	TypePortMod
	TypeTableMod

	TypeMultipartRequest
	TypeMultipartReply

	TypeBarrierRequest
	TypeBarrierReply

	TypeQueueGetConfigRequest
	TypeQueueGetConfigReply

	TypeRoleRequest
	TypeRoleReply

	TypeGetAsyncRequest
	TypeGetAsyncReply
	TypeSetAsync

	TypeMeterMod
)

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "TypeUnknown"
}

var typeNames = map[Type]string{
	TypeHello:                 "OFPT_HELLO",
	TypeError:                 "OFPT_ERROR",
	TypeEchoRequest:           "OFPT_ECHO_REQUEST",
	TypeEchoReply:             "OFPT_ECHO_REPLY",
	TypeExperimenter:          "OFPT_EXPERIMENTER",
	TypeFeaturesRequest:       "OFPT_FEATURES_REQUEST",
	TypeFeaturesReply:         "OFPT_FEATURES_REPLY",
	TypeGetConfigRequest:      "OFPT_GET_CONFIG_REQUEST",
	TypeGetConfigReply:        "OFPT_GET_CONFIG_REPLY",
	TypeSetConfig:             "OFPT_SET_CONFIG",
	TypePacketIn:              "OFPT_PACKET_IN",
	TypeFlowRemoved:           "OFPT_FLOW_REMOVED",
	TypePortStatus:            "OFPT_PORT_STATUS",
	TypePacketOut:             "OFPT_PACKET_OUT",
	TypeFlowMod:               "OFPT_FLOW_MOD",
	TypeGroupMod:              "OFPT_GROUP_MOD",
	TypePortMod:               "OFPT_PORT_MOD",
	TypeTableMod:              "OFPT_TABLE_MOD",
	TypeMultipartRequest:      "OFPT_MULTIPART_REQUEST",
	TypeMultipartReply:        "OFPT_MULTIPART_REPLY",
	TypeBarrierRequest:        "OFPT_BARRIER_REQUEST",
	TypeBarrierReply:          "OFPT_BARRIER_REPLY",
	TypeQueueGetConfigRequest: "OFPT_QUEUE_GET_CONFIG_REQUEST",
	TypeQueueGetConfigReply:   "OFPT_QUEUE_GET_CONFIG_REPLY",
	TypeRoleRequest:           "OFPT_ROLE_REQUEST",
	TypeRoleReply:             "OFPT_ROLE_REPLY",
	TypeGetAsyncRequest:       "OFPT_GET_ASYNC_REQUEST",
	TypeGetAsyncReply:         "OFPT_GET_ASYNC_REPLY",
	TypeSetAsync:              "OFPT_SET_ASYNC",
	TypeMeterMod:              "OFPT_METER_MOD",
}

var (
	// ErrUnsupportedVersion is returned when a non-HELLO message
	// arrives carrying a header version other than Version.
	ErrUnsupportedVersion = errors.New("frame: unsupported OpenFlow version")

	// ErrShortHeader is returned when fewer than HeaderLen bytes
	// could be read for the header.
	ErrShortHeader = errors.New("frame: short header")

	// ErrBadLength is returned when the header's length field is
	// smaller than HeaderLen.
	ErrBadLength = errors.New("frame: length field smaller than header")
)

// Header is the fixed 8-byte envelope in front of every OpenFlow
// message: version, type, total length (including the header itself),
// and the transaction id used to pair requests with replies.
type Header struct {
	Version uint8
	Type    Type
	Length  uint16
	XID     uint32
}

// BodyLen returns the number of bytes following the header.
func (h Header) BodyLen() int {
	return int(h.Length) - HeaderLen
}

// WriteTo serializes the header in network byte order.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	var buf [HeaderLen]byte
	buf[0] = h.Version
	buf[1] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint32(buf[4:8], h.XID)

	n, err := w.Write(buf[:])
	return int64(n), err
}

// ReadFrom deserializes the header from network byte order. The caller
// must supply a reader that will block until HeaderLen bytes are
// available or report an error; frame.Reader does this via io.ReadFull.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	var buf [HeaderLen]byte

	n, err := io.ReadFull(r, buf[:])
	if err == io.ErrUnexpectedEOF {
		return int64(n), ErrShortHeader
	}
	if err != nil {
		return int64(n), err
	}

	h.Version = buf[0]
	h.Type = Type(buf[1])
	h.Length = binary.BigEndian.Uint16(buf[2:4])
	h.XID = binary.BigEndian.Uint32(buf[4:8])

	if h.Length < HeaderLen {
		return int64(n), ErrBadLength
	}

	return int64(n), nil
}
