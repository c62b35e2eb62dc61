// Package wire implements the cluster wire protocol.
//
// A frame is the JSON encoding of a Message followed by a single 0x00
// terminator byte. encoding/json escapes every control character inside
// strings, so the terminator never appears inside a valid body.
//
// Timestamps travel as tagged strings ("{timestamp}<epoch-millis>") and are
// revived into time.Time values on decode. All other strings are left as is.
package wire
