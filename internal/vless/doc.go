// Package vless decodes the VLESS request header carried in the first
// message of a client session and encodes the two-byte response header.
//
// Wire format (all multi-byte integers big-endian):
//
//	ver(1) uuid(16) optLen(1) opts(optLen) cmd(1) port(2) atyp(1) addr(var) payload(*)
//
// addr is 4 raw bytes for atyp=IPv4, a 1-byte length prefix followed by that
// many bytes for atyp=Domain, or 16 raw bytes for atyp=IPv6.
//
// The response header is exactly two bytes: the request's version byte
// followed by 0x00, and is emitted at most once per session.
package vless
