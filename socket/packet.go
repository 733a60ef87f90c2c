// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import "encoding/json"

// Packet is one frame on the socket: {"cmd": ..., "val": ..., "listener": ...}.
type Packet struct {
	Cmd string `json:"cmd"`

	// Val is the command's payload, usually a string or an object.
	Val json.RawMessage `json:"val,omitempty"`

	// Listener correlates a response with the request that carried
	// the same id.
	Listener string `json:"listener,omitempty"`
}

// pingPacket is the heartbeat frame.
var pingPacket = Packet{Cmd: "ping", Val: json.RawMessage(`""`)}

// parsePacket decodes one inbound frame. ok is false for frames that
// are not a JSON object with a non-empty cmd.
func parsePacket(data []byte) (packet Packet, ok bool) {
	if err := json.Unmarshal(data, &packet); err != nil {
		return Packet{}, false
	}
	return packet, packet.Cmd != ""
}
