// Package serialization provides message body encoding for the relay
// messaging server.
//
// Message bodies are opaque bytes to the rest of the system. The codec pairs
// an encoding (JSON) with an explicit type registry: registration supplies
// the type tag and a factory function, so decoding never relies on
// reflection-based dispatch.
package serialization
