package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	SubprotocolJSON    = "portfolio-sync.json"
	SubprotocolMsgpack = "portfolio-sync.msgpack"
)

// Codec turns frames into WebSocket payloads and back.
type Codec interface {
	Name() string
	Subprotocol() string
	// FrameType is the WebSocket message type the payloads travel in.
	FrameType() int
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// Subprotocols lists the supported subprotocols in server preference order.
func Subprotocols() []string {
	return []string{SubprotocolMsgpack, SubprotocolJSON}
}

// ForSubprotocol returns the codec for a negotiated subprotocol, JSON when none was negotiated.
func ForSubprotocol(name string) Codec {
	if name == SubprotocolMsgpack {
		return Msgpack
	}
	return JSON
}

// ByName resolves a codec from its short name ("json" or "msgpack").
func ByName(name string) (Codec, error) {
	switch name {
	case "", JSON.Name():
		return JSON, nil
	case Msgpack.Name():
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string        { return "json" }
func (jsonCodec) Subprotocol() string { return SubprotocolJSON }
func (jsonCodec) FrameType() int      { return websocket.TextMessage }

func (jsonCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

// msgpackCodec reuses the json struct tags so both codecs share one set of field names.
type msgpackCodec struct{}

func (msgpackCodec) Name() string        { return "msgpack" }
func (msgpackCodec) Subprotocol() string { return SubprotocolMsgpack }
func (msgpackCodec) FrameType() int      { return websocket.BinaryMessage }

func (msgpackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	return nil
}
