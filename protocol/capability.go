// Package protocol implements the MySQL/MariaDB payload codecs: one
// encoder/decoder per command and response packet, plus the column-type
// bridge that maps wire type codes to a language-neutral representation.
//
// http://dev.mysql.com/doc/internals/en/client-server-protocol.html
package protocol

// CapabilityFlag is the client/server capability bitset negotiated during
// the handshake.  "Wire constants (must match exactly)".
type CapabilityFlag uint32

const (
	ClientConnectWithDB             CapabilityFlag = 0x00000008
	ClientSSL                       CapabilityFlag = 0x00000800
	ClientProtocol41                CapabilityFlag = 0x00000200
	ClientSecureConnection          CapabilityFlag = 0x00008000
	ClientMultiStatements           CapabilityFlag = 0x00010000
	ClientMultiResults              CapabilityFlag = 0x00020000
	ClientPluginAuth                CapabilityFlag = 0x00080000
	ClientPluginAuthLenEncClientData CapabilityFlag = 0x00200000
)

// ClientCapabilities is the capability set this client always advertises in
// its handshake response, . CLIENT_SSL and CLIENT_CONNECT_WITH_DB
// are added conditionally by the caller.
const ClientCapabilities = ClientProtocol41 |
	ClientSecureConnection |
	ClientPluginAuth |
	ClientPluginAuthLenEncClientData |
	ClientMultiStatements |
	ClientMultiResults

// MaxPacketSize is the max_packet_size field the client advertises: 50 MiB.
const MaxPacketSize = 50 * 1024 * 1024

// StatusFlag is the server status bitset carried by OK/EOF packets.
type StatusFlag uint16

// ServerMoreResultsExists drives multi-result-set continuation.
const ServerMoreResultsExists StatusFlag = 0x0008

// Has reports whether flags contains f.
func (flags CapabilityFlag) Has(f CapabilityFlag) bool { return flags&f != 0 }

// Has reports whether flags contains f.
func (flags StatusFlag) Has(f StatusFlag) bool { return flags&f != 0 }

// Command type bytes.
const (
	ComQuit        byte = 0x01
	ComInitDB      byte = 0x02
	ComQuery       byte = 0x03
	ComStmtPrepare byte = 0x16
	ComStmtExecute byte = 0x17
	ComStmtClose   byte = 0x19
)

// Generic response packet tag bytes.
const (
	tagOK           byte = 0x00
	tagEOF          byte = 0xfe
	tagErr          byte = 0xff
	tagAuthMoreData byte = 0x01
	tagAuthSwitch   byte = 0xfe
)

// BinaryRowTag is the leading byte of every binary-protocol result row.
const BinaryRowTag byte = 0x00

// BinaryCollationID is the reserved "binary" collation id.
const BinaryCollationID = 63

// ColumnFlagBinary is the column-definition flag bit marking a blob-family
// column as binary rather than textual.
const ColumnFlagBinary uint16 = 0x80
